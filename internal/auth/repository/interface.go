package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuthRepository is the storage the auth service depends on.
type AuthRepository interface {
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (User, error)
	UpdateNames(ctx context.Context, userID uuid.UUID, firstName, lastName *string) (User, error)
	SetRole(ctx context.Context, userID uuid.UUID, role string) (User, error)
	SetActive(ctx context.Context, userID uuid.UUID, active bool) (User, error)
	TouchSignIn(ctx context.Context, userID uuid.UUID) error
	ListUsers(ctx context.Context, params ListParams) ([]User, error)
	CountUsers(ctx context.Context) (int, error)

	CreateRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	ConsumeRefreshToken(ctx context.Context, tokenHash string) (uuid.UUID, time.Time, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllRefreshTokens(ctx context.Context, userID uuid.UUID) error
}

// UserReader is the read-only subset other modules use through adapters.
type UserReader interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (User, error)
}

var _ AuthRepository = (*Repository)(nil)
