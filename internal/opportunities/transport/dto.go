package transport

import (
	"time"

	"github.com/google/uuid"
)

type Stage string

const (
	StageDiscovery     Stage = "discovery"
	StageNeedsAnalysis Stage = "needs_analysis"
	StageProposal      Stage = "proposal"
	StageNegotiation   Stage = "negotiation"
	StageClosedWon     Stage = "closed_won"
	StageClosedLost    Stage = "closed_lost"
)

type CreateOpportunityRequest struct {
	ProspectID        uuid.UUID  `json:"prospectId" validate:"required"`
	Title             string     `json:"title" validate:"required,min=2,max=200"`
	Value             float64    `json:"value" validate:"gte=0"`
	Stage             Stage      `json:"stage,omitempty" validate:"omitempty,oneof=discovery needs_analysis proposal negotiation"`
	Probability       *int       `json:"probability,omitempty" validate:"omitempty,min=0,max=100"`
	ExpectedCloseDate *time.Time `json:"expectedCloseDate,omitempty"`
	AssignedTo        *uuid.UUID `json:"assignedTo,omitempty"`
}

type UpdateOpportunityRequest struct {
	Title             *string    `json:"title,omitempty" validate:"omitempty,min=2,max=200"`
	Value             *float64   `json:"value,omitempty" validate:"omitempty,gte=0"`
	Probability       *int       `json:"probability,omitempty" validate:"omitempty,min=0,max=100"`
	ExpectedCloseDate *time.Time `json:"expectedCloseDate,omitempty"`
	AssignedTo        *uuid.UUID `json:"assignedTo,omitempty"`
}

type MoveStageRequest struct {
	Stage       Stage `json:"stage" validate:"required,oneof=discovery needs_analysis proposal negotiation closed_won closed_lost"`
	Probability *int  `json:"probability,omitempty" validate:"omitempty,min=0,max=100"`
}

type ListOpportunitiesRequest struct {
	Stage      string `form:"stage" validate:"omitempty,oneof=discovery needs_analysis proposal negotiation closed_won closed_lost"`
	ProspectID string `form:"prospectId" validate:"omitempty,uuid"`
	Page       int    `form:"page" validate:"omitempty,min=1"`
	PageSize   int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type OpportunityResponse struct {
	ID                uuid.UUID  `json:"id"`
	ProspectID        uuid.UUID  `json:"prospectId"`
	Title             string     `json:"title"`
	Value             float64    `json:"value"`
	Stage             Stage      `json:"stage"`
	Probability       int        `json:"probability"`
	WeightedValue     float64    `json:"weightedValue"`
	ExpectedCloseDate *time.Time `json:"expectedCloseDate,omitempty"`
	AssignedTo        *uuid.UUID `json:"assignedTo,omitempty"`
	ClosedAt          *time.Time `json:"closedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

type OpportunityListResponse struct {
	Items      []OpportunityResponse `json:"items"`
	Total      int                   `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"pageSize"`
	TotalPages int                   `json:"totalPages"`
}
