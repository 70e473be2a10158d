package transport

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
)

// ConvertProspectRequest carries the signed contract terms.
type ConvertProspectRequest struct {
	Product        string     `json:"product" validate:"required,min=2,max=200"`
	Insurer        string     `json:"insurer" validate:"required,min=2,max=200"`
	MonthlyPremium float64    `json:"monthlyPremium" validate:"required,gt=0,lte=10000"`
	StartDate      *time.Time `json:"startDate,omitempty"`
}

type UpdateClientRequest struct {
	Email          *string    `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone          *string    `json:"phone,omitempty" validate:"omitempty,min=6,max=20"`
	Product        *string    `json:"product,omitempty" validate:"omitempty,min=2,max=200"`
	Insurer        *string    `json:"insurer,omitempty" validate:"omitempty,min=2,max=200"`
	MonthlyPremium *float64   `json:"monthlyPremium,omitempty" validate:"omitempty,gt=0,lte=10000"`
	AssignedTo     *uuid.UUID `json:"assignedTo,omitempty"`
}

type ListClientsRequest struct {
	Status   string `form:"status" validate:"omitempty,oneof=active cancelled"`
	Search   string `form:"search" validate:"max=100"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type ClientResponse struct {
	ID             uuid.UUID  `json:"id"`
	ProspectID     uuid.UUID  `json:"prospectId"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	Email          *string    `json:"email,omitempty"`
	Phone          *string    `json:"phone,omitempty"`
	ContractNumber string     `json:"contractNumber"`
	Product        string     `json:"product"`
	Insurer        string     `json:"insurer"`
	MonthlyPremium float64    `json:"monthlyPremium"`
	AnnualPremium  float64    `json:"annualPremium"`
	StartDate      time.Time  `json:"startDate"`
	AssignedTo     *uuid.UUID `json:"assignedTo,omitempty"`
	Status         string     `json:"status"`
	CancelledAt    *time.Time `json:"cancelledAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type ClientListResponse struct {
	Items      []ClientResponse `json:"items"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}
