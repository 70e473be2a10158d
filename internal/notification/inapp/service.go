package inapp

import (
	"context"
	"strings"

	"premunia_crm_backend/internal/notification/sse"
	"premunia_crm_backend/platform/apperr"
	"premunia_crm_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	CategoryInfo    = "info"
	CategorySuccess = "success"
	CategoryWarning = "warning"
)

// Store persists in-app notifications.
type Store interface {
	Create(ctx context.Context, p CreateParams) (Notification, error)
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]Notification, int, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type Service struct {
	repo Store
	sse  *sse.Service
	log  *logger.Logger
}

func NewService(repo Store, sseSvc *sse.Service, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		sse:  sseSvc,
		log:  log,
	}
}

type SendParams struct {
	UserID       uuid.UUID
	Title        string
	Content      string
	ResourceID   *uuid.UUID
	ResourceType string
	Category     string
}

// Send persists the notification and pushes it via SSE if the user is online.
func (s *Service) Send(ctx context.Context, p SendParams) error {
	if s == nil || s.repo == nil {
		return apperr.Internal("in-app notification service not configured")
	}
	if p.UserID == uuid.Nil {
		return apperr.Validation("userId is required")
	}
	p.Title = strings.TrimSpace(p.Title)
	p.Content = strings.TrimSpace(p.Content)
	if p.Title == "" || p.Content == "" {
		return apperr.Validation("title and content are required")
	}
	if p.Category == "" {
		p.Category = CategoryInfo
	}

	var resourceType *string
	if p.ResourceType != "" {
		resourceType = &p.ResourceType
	}

	notif, err := s.repo.Create(ctx, CreateParams{
		UserID:       p.UserID,
		Title:        p.Title,
		Content:      p.Content,
		ResourceID:   p.ResourceID,
		ResourceType: resourceType,
		Category:     p.Category,
	})
	if err != nil {
		s.log.Error("failed to persist in-app notification", "error", err, "userId", p.UserID)
		return err
	}

	if s.sse != nil {
		s.sse.Publish(p.UserID, sse.Event{
			Type:    sse.EventNotification,
			Message: notif.Title,
			Data:    notif,
		})
	}
	return nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, pageSize int) ([]Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}

	offset := (page - 1) * pageSize
	return s.repo.List(ctx, userID, unreadOnly, pageSize, offset)
}

func (s *Service) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.Delete(ctx, userID, id)
}
