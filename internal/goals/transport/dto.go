package transport

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeRevenue      = "revenue"
	TypeProspects    = "prospects"
	TypeDeals        = "deals"
	TypeAppointments = "appointments"

	PeriodMonthly   = "monthly"
	PeriodQuarterly = "quarterly"
	PeriodYearly    = "yearly"
)

// CreateGoalRequest sets a target for a user. Dates are YYYY-MM-DD; the end
// date defaults to the last day of the period starting at StartDate.
type CreateGoalRequest struct {
	UserID      uuid.UUID `json:"userId" validate:"required"`
	Type        string    `json:"type" validate:"required,oneof=revenue prospects deals appointments"`
	Period      string    `json:"period" validate:"required,oneof=monthly quarterly yearly"`
	TargetValue float64   `json:"targetValue" validate:"required,gt=0"`
	StartDate   string    `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string    `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Description string    `json:"description,omitempty" validate:"max=1000"`
}

type UpdateGoalRequest struct {
	TargetValue *float64 `json:"targetValue,omitempty" validate:"omitempty,gt=0"`
	StartDate   *string  `json:"startDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate     *string  `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=1000"`
}

type ListGoalsRequest struct {
	UserID     string `form:"userId" validate:"omitempty,uuid"`
	Type       string `form:"type" validate:"omitempty,oneof=revenue prospects deals appointments"`
	Period     string `form:"period" validate:"omitempty,oneof=monthly quarterly yearly"`
	ActiveOnly bool   `form:"activeOnly"`
	Page       int    `form:"page" validate:"omitempty,min=1"`
	PageSize   int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type GoalResponse struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"userId"`
	Type         string     `json:"type"`
	Period       string     `json:"period"`
	TargetValue  float64    `json:"targetValue"`
	CurrentValue float64    `json:"currentValue"`
	Progress     float64    `json:"progress"`
	StartDate    string     `json:"startDate"`
	EndDate      string     `json:"endDate"`
	Description  *string    `json:"description,omitempty"`
	CreatedBy    *uuid.UUID `json:"createdBy,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type GoalListResponse struct {
	Items      []GoalResponse `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}
