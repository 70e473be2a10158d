// Package adapter exposes auth data to other modules through the interfaces
// those modules declare.
package adapter

import (
	"context"
	"errors"
	"strings"

	"premunia_crm_backend/internal/auth/repository"
	"premunia_crm_backend/internal/notification"

	"github.com/google/uuid"
)

// UserDirectoryAdapter implements notification.UserDirectory.
type UserDirectoryAdapter struct {
	repo repository.UserReader
}

func NewUserDirectoryAdapter(repo repository.UserReader) *UserDirectoryAdapter {
	return &UserDirectoryAdapter{repo: repo}
}

func (a *UserDirectoryAdapter) Contact(ctx context.Context, userID uuid.UUID) (notification.Contact, error) {
	user, err := a.repo.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return notification.Contact{}, notification.ErrUnknownUser
	}
	if err != nil {
		return notification.Contact{}, err
	}

	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		name = user.Email
	}
	return notification.Contact{Email: user.Email, FullName: name, Active: user.IsActive}, nil
}

var _ notification.UserDirectory = (*UserDirectoryAdapter)(nil)
