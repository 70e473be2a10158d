package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"premunia_crm_backend/internal/campaigns/catalogue"
	"premunia_crm_backend/internal/campaigns/repository"
	"premunia_crm_backend/internal/campaigns/transport"
	"premunia_crm_backend/internal/events"
	"premunia_crm_backend/internal/scheduler"
	"premunia_crm_backend/platform/apperr"
	"premunia_crm_backend/platform/httpkit"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/sanitize"

	"github.com/google/uuid"
)

const campaignNotFoundMsg = "campaign not found"

type Repository interface {
	Create(ctx context.Context, params repository.CreateCampaignParams) (repository.Campaign, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Campaign, error)
	Update(ctx context.Context, id uuid.UUID, params repository.UpdateCampaignParams) (repository.Campaign, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string, from ...string) (repository.Campaign, error)
	AddEngagement(ctx context.Context, id uuid.UUID, opened, clicked, converted int) (repository.Campaign, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params repository.ListParams) ([]repository.Campaign, int, error)
}

type Service struct {
	repo      Repository
	templates *catalogue.Catalogue
	enqueuer  scheduler.CampaignEnqueuer
	eventBus  events.Bus
	log       *logger.Logger
	now       func() time.Time
}

func New(repo Repository, templates *catalogue.Catalogue, enqueuer scheduler.CampaignEnqueuer, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		templates: templates,
		enqueuer:  enqueuer,
		eventBus:  eventBus,
		log:       log,
		now:       time.Now,
	}
}

// RegisterTriggers schedules the catalogue templates started by prospect
// intake. Without a job queue the triggers are not subscribed.
func (s *Service) RegisterTriggers(bus events.Bus) {
	if s.enqueuer == nil {
		s.log.Warn("job queue not configured; triggered campaign templates disabled")
		return
	}
	bus.Subscribe(events.ProspectCreated{}.EventName(), events.HandlerFunc(s.handleProspectCreated))
}

func (s *Service) handleProspectCreated(ctx context.Context, e events.Event) error {
	created, ok := e.(events.ProspectCreated)
	if !ok {
		return nil
	}
	var errs []error
	for _, t := range s.templates.Triggered(catalogue.TriggerProspectCreated, created.Segment) {
		err := s.enqueuer.ScheduleTemplateSend(ctx, scheduler.TemplateSendPayload{
			TemplateKey: t.Key,
			ProspectID:  created.ProspectID.String(),
		}, s.now().Add(t.Delay()))
		if err != nil {
			s.log.Error("failed to schedule triggered template", "template", t.Key, "prospectId", created.ProspectID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// canManage reports whether the caller may create and run campaigns.
func canManage(identity httpkit.Identity) bool {
	return identity.IsManager() || identity.HasRole(httpkit.RoleMarketing)
}

func (s *Service) Create(ctx context.Context, identity httpkit.Identity, req transport.CreateCampaignRequest) (transport.CampaignResponse, error) {
	if !canManage(identity) {
		return transport.CampaignResponse{}, apperr.Forbidden("not allowed to manage campaigns")
	}

	segment := req.TargetSegment
	if segment == "" {
		segment = transport.SegmentAll
	}
	templateKey := strings.TrimSpace(req.TemplateKey)
	if err := s.checkTemplate(templateKey, req.Type); err != nil {
		return transport.CampaignResponse{}, err
	}

	c, err := s.repo.Create(ctx, repository.CreateCampaignParams{
		Name:          sanitize.Text(req.Name),
		Description:   optionalString(sanitize.Text(req.Description)),
		Type:          req.Type,
		TargetSegment: segment,
		TemplateKey:   optionalString(templateKey),
		CreatedBy:     identity.UserID(),
		ScheduledAt:   req.ScheduledAt,
	})
	if err != nil {
		return transport.CampaignResponse{}, apperr.Unavailable("campaigns.Create", err)
	}
	s.publishChange(ctx, c.ID, events.ChangeCreated)
	return toResponse(c), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.CampaignResponse, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.CampaignResponse{}, mapRepoError("campaigns.Get", err)
	}
	return toResponse(c), nil
}

// Update edits a draft or paused campaign.
func (s *Service) Update(ctx context.Context, identity httpkit.Identity, id uuid.UUID, req transport.UpdateCampaignRequest) (transport.CampaignResponse, error) {
	if !canManage(identity) {
		return transport.CampaignResponse{}, apperr.Forbidden("not allowed to manage campaigns")
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.CampaignResponse{}, mapRepoError("campaigns.Update", err)
	}
	if !isEditable(current.Status) {
		return transport.CampaignResponse{}, apperr.Conflict("only draft or paused campaigns can be edited")
	}

	campaignType := current.Type
	if req.Type != nil {
		campaignType = *req.Type
	}
	templateKey := derefString(current.TemplateKey)
	if req.TemplateKey != nil {
		templateKey = strings.TrimSpace(*req.TemplateKey)
		req.TemplateKey = &templateKey
	}
	if err := s.checkTemplate(templateKey, campaignType); err != nil {
		return transport.CampaignResponse{}, err
	}

	c, err := s.repo.Update(ctx, id, repository.UpdateCampaignParams{
		Name:          sanitize.TextPtr(req.Name),
		Description:   sanitize.TextPtr(req.Description),
		Type:          req.Type,
		TargetSegment: req.TargetSegment,
		TemplateKey:   req.TemplateKey,
		ScheduledAt:   req.ScheduledAt,
	})
	if errors.Is(err, repository.ErrNotFound) {
		// status changed since the read
		return transport.CampaignResponse{}, apperr.Conflict("only draft or paused campaigns can be edited")
	}
	if err != nil {
		return transport.CampaignResponse{}, apperr.Unavailable("campaigns.Update", err)
	}
	s.publishChange(ctx, c.ID, events.ChangeUpdated)
	return toResponse(c), nil
}

// Launch activates a draft or paused campaign and queues its dispatch.
func (s *Service) Launch(ctx context.Context, identity httpkit.Identity, id uuid.UUID) (transport.CampaignResponse, error) {
	if !canManage(identity) {
		return transport.CampaignResponse{}, apperr.Forbidden("not allowed to manage campaigns")
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.CampaignResponse{}, mapRepoError("campaigns.Launch", err)
	}
	if current.Type == transport.TypeEmail && derefString(current.TemplateKey) == "" {
		return transport.CampaignResponse{}, apperr.Validation("email campaigns need a template before launch")
	}

	c, err := s.repo.SetStatus(ctx, id, string(transport.CampaignStatusActive),
		string(transport.CampaignStatusDraft), string(transport.CampaignStatusPaused))
	if errors.Is(err, repository.ErrNotFound) {
		return transport.CampaignResponse{}, apperr.Conflict("campaign cannot be launched from status " + current.Status)
	}
	if err != nil {
		return transport.CampaignResponse{}, apperr.Unavailable("campaigns.Launch", err)
	}

	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueCampaignDispatch(ctx, scheduler.CampaignDispatchPayload{
			CampaignID:  c.ID.String(),
			RequestedBy: identity.UserID().String(),
		}); err != nil {
			return transport.CampaignResponse{}, apperr.Unavailable("campaigns.Launch.enqueue", err)
		}
	}

	s.eventBus.Publish(ctx, events.CampaignLaunched{
		BaseEvent:     events.NewBaseEvent(),
		CampaignID:    c.ID,
		Type:          c.Type,
		TargetSegment: c.TargetSegment,
	})
	return toResponse(c), nil
}

func (s *Service) Pause(ctx context.Context, identity httpkit.Identity, id uuid.UUID) (transport.CampaignResponse, error) {
	if !canManage(identity) {
		return transport.CampaignResponse{}, apperr.Forbidden("not allowed to manage campaigns")
	}

	c, err := s.repo.SetStatus(ctx, id, string(transport.CampaignStatusPaused), string(transport.CampaignStatusActive))
	if errors.Is(err, repository.ErrNotFound) {
		if _, getErr := s.repo.GetByID(ctx, id); getErr != nil {
			return transport.CampaignResponse{}, mapRepoError("campaigns.Pause", getErr)
		}
		return transport.CampaignResponse{}, apperr.Conflict("only active campaigns can be paused")
	}
	if err != nil {
		return transport.CampaignResponse{}, apperr.Unavailable("campaigns.Pause", err)
	}
	s.publishChange(ctx, c.ID, events.ChangePaused)
	return toResponse(c), nil
}

// RecordEngagement adds tracked opens, clicks and conversions.
func (s *Service) RecordEngagement(ctx context.Context, id uuid.UUID, req transport.RecordEngagementRequest) (transport.CampaignResponse, error) {
	if req.Opened < 0 || req.Clicked < 0 || req.Converted < 0 {
		return transport.CampaignResponse{}, apperr.Validation("engagement counts cannot be negative")
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.CampaignResponse{}, mapRepoError("campaigns.RecordEngagement", err)
	}
	if current.Status == string(transport.CampaignStatusDraft) {
		return transport.CampaignResponse{}, apperr.Conflict("draft campaigns have no engagement")
	}

	c, err := s.repo.AddEngagement(ctx, id, req.Opened, req.Clicked, req.Converted)
	if err != nil {
		return transport.CampaignResponse{}, mapRepoError("campaigns.RecordEngagement", err)
	}
	s.publishChange(ctx, c.ID, events.ChangeEngaged)
	return toResponse(c), nil
}

func (s *Service) Delete(ctx context.Context, identity httpkit.Identity, id uuid.UUID) error {
	if !canManage(identity) {
		return apperr.Forbidden("not allowed to manage campaigns")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("draft campaign not found")
		}
		return apperr.Unavailable("campaigns.Delete", err)
	}
	s.publishChange(ctx, id, events.ChangeDeleted)
	return nil
}

func (s *Service) List(ctx context.Context, req transport.ListCampaignsRequest) (transport.CampaignListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	items, total, err := s.repo.List(ctx, repository.ListParams{
		Status:        optionalString(req.Status),
		Type:          optionalString(req.Type),
		TargetSegment: optionalString(req.TargetSegment),
		Search:        strings.TrimSpace(req.Search),
		Offset:        (req.Page - 1) * req.PageSize,
		Limit:         req.PageSize,
	})
	if err != nil {
		return transport.CampaignListResponse{}, apperr.Unavailable("campaigns.List", err)
	}

	resp := make([]transport.CampaignResponse, len(items))
	for i, c := range items {
		resp[i] = toResponse(c)
	}
	return transport.CampaignListResponse{
		Items:      resp,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: (total + req.PageSize - 1) / req.PageSize,
	}, nil
}

// Templates lists the built-in catalogue.
func (s *Service) Templates() []transport.TemplateResponse {
	out := make([]transport.TemplateResponse, 0, len(s.templates.Templates))
	for _, t := range s.templates.Templates {
		out = append(out, transport.TemplateResponse{
			Key:         t.Key,
			Name:        t.Name,
			Description: t.Description,
			Channel:     t.Channel,
			Target:      t.Target,
			Trigger:     t.Trigger,
			DelayDays:   t.DelayDays,
			Subject:     t.Subject,
			Body:        t.Body,
		})
	}
	return out
}

// checkTemplate accepts an empty key or a known template on the campaign's channel.
func (s *Service) publishChange(ctx context.Context, id uuid.UUID, change string) {
	s.eventBus.Publish(ctx, events.CampaignChanged{
		BaseEvent:  events.NewBaseEvent(),
		CampaignID: id,
		Change:     change,
	})
}

func (s *Service) checkTemplate(key, campaignType string) error {
	if key == "" {
		return nil
	}
	t, ok := s.templates.Get(key)
	if !ok {
		return apperr.Validation("unknown template " + key)
	}
	if t.Channel != campaignType {
		return apperr.Validation("template " + key + " is for " + t.Channel + " campaigns")
	}
	return nil
}

func isEditable(status string) bool {
	return status == string(transport.CampaignStatusDraft) || status == string(transport.CampaignStatusPaused)
}

func toResponse(c repository.Campaign) transport.CampaignResponse {
	return transport.CampaignResponse{
		ID:             c.ID,
		Name:           c.Name,
		Description:    c.Description,
		Type:           c.Type,
		TargetSegment:  c.TargetSegment,
		Status:         transport.CampaignStatus(c.Status),
		TemplateKey:    c.TemplateKey,
		SentCount:      c.SentCount,
		OpenedCount:    c.OpenedCount,
		ClickedCount:   c.ClickedCount,
		ConvertedCount: c.ConvertedCount,
		OpenRate:       c.OpenRate,
		ClickRate:      c.ClickRate,
		ConversionRate: c.ConversionRate,
		CreatedBy:      c.CreatedBy,
		ScheduledAt:    c.ScheduledAt,
		LaunchedAt:     c.LaunchedAt,
		CompletedAt:    c.CompletedAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func mapRepoError(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(campaignNotFoundMsg)
	}
	return apperr.Unavailable(op, err)
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
