package transport

import (
	"time"

	"github.com/google/uuid"
)

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	AccessToken string          `json:"accessToken"`
	ExpiresAt   time.Time       `json:"expiresAt"`
	User        ProfileResponse `json:"user"`
}

type ProfileResponse struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"isActive"`
	LastSignInAt *time.Time `json:"lastSignInAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

type UpdateProfileRequest struct {
	FirstName *string `json:"firstName,omitempty" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"lastName,omitempty" validate:"omitempty,min=1,max=100"`
}

type CreateUserRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"firstName" validate:"required,min=1,max=100"`
	LastName  string `json:"lastName" validate:"required,min=1,max=100"`
	Role      string `json:"role" validate:"required,oneof=admin manager commercial marketing"`
}

type ListUsersRequest struct {
	Role   string `form:"role" validate:"omitempty,oneof=admin manager commercial marketing"`
	Active *bool  `form:"active"`
	Search string `form:"search" validate:"omitempty,max=100"`
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin manager commercial marketing"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type DiagnosticsResponse struct {
	Database  string    `json:"database"`
	Users     int       `json:"users"`
	CheckedAt time.Time `json:"checkedAt"`
}
