package transport

import (
	"time"

	"github.com/google/uuid"
)

// Date accepts "2006-01-02" in JSON bodies.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		return nil
	}
	if len(s) < 2 {
		return &time.ParseError{Layout: time.DateOnly, Value: s}
	}
	parsed, err := time.Parse(time.DateOnly, s[1:len(s)-1])
	if err != nil {
		return err
	}
	d.Time = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(time.DateOnly) + `"`), nil
}

// Request DTOs
type CreateProspectRequest struct {
	FirstName        string       `json:"firstName" validate:"required,min=1,max=100"`
	LastName         string       `json:"lastName" validate:"required,min=1,max=100"`
	Email            string       `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone            string       `json:"phone,omitempty" validate:"omitempty,min=6,max=20"`
	BirthDate        *Date        `json:"birthDate,omitempty"`
	Age              int          `json:"age,omitempty" validate:"omitempty,min=18,max=120"`
	Address          string       `json:"address,omitempty" validate:"omitempty,max=255"`
	City             string       `json:"city,omitempty" validate:"omitempty,max=100"`
	PostalCode       string       `json:"postalCode,omitempty" validate:"omitempty,fr_postal_code"`
	BudgetMonthly    float64      `json:"budgetMonthly" validate:"required,gt=0,lte=10000"`
	HealthStatus     string       `json:"healthStatus" validate:"required,health_status"`
	UrgencyLevel     string       `json:"urgencyLevel" validate:"required,urgency_level"`
	AssignedTo       OptionalUUID `json:"assignedTo,omitempty" validate:"-"`
	Source           string       `json:"source,omitempty" validate:"omitempty,max=100"`
	Notes            string       `json:"notes,omitempty" validate:"omitempty,max=5000"`
	CurrentInsurance string       `json:"currentInsurance,omitempty" validate:"omitempty,max=255"`
	NextFollowUp     *time.Time   `json:"nextFollowUp,omitempty"`
}

// UpdateProspectRequest carries a partial update. Score and segment are not
// accepted: they are always derived.
type UpdateProspectRequest struct {
	FirstName        *string    `json:"firstName,omitempty" validate:"omitempty,min=1,max=100"`
	LastName         *string    `json:"lastName,omitempty" validate:"omitempty,min=1,max=100"`
	Email            *string    `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone            *string    `json:"phone,omitempty" validate:"omitempty,min=6,max=20"`
	BirthDate        *Date      `json:"birthDate,omitempty"`
	Age              *int       `json:"age,omitempty" validate:"omitempty,min=18,max=120"`
	Address          *string    `json:"address,omitempty" validate:"omitempty,max=255"`
	City             *string    `json:"city,omitempty" validate:"omitempty,max=100"`
	PostalCode       *string    `json:"postalCode,omitempty" validate:"omitempty,fr_postal_code"`
	BudgetMonthly    *float64   `json:"budgetMonthly,omitempty" validate:"omitempty,gt=0,lte=10000"`
	HealthStatus     *string    `json:"healthStatus,omitempty" validate:"omitempty,health_status"`
	UrgencyLevel     *string    `json:"urgencyLevel,omitempty" validate:"omitempty,urgency_level"`
	Source           *string    `json:"source,omitempty" validate:"omitempty,max=100"`
	Notes            *string    `json:"notes,omitempty" validate:"omitempty,max=5000"`
	CurrentInsurance *string    `json:"currentInsurance,omitempty" validate:"omitempty,max=255"`
	NextFollowUp     *time.Time `json:"nextFollowUp,omitempty"`
}

type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required,prospect_status"`
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type AssignProspectRequest struct {
	AssigneeID OptionalUUID `json:"assigneeId" validate:"-"`
}

type ScorePreviewRequest struct {
	BirthDate     *Date   `json:"birthDate,omitempty"`
	Age           int     `json:"age,omitempty" validate:"omitempty,min=18,max=120"`
	BudgetMonthly float64 `json:"budgetMonthly" validate:"required,gt=0,lte=10000"`
	HealthStatus  string  `json:"healthStatus" validate:"required,health_status"`
	UrgencyLevel  string  `json:"urgencyLevel" validate:"required,urgency_level"`
}

type ListProspectsRequest struct {
	Status        string     `form:"status" validate:"omitempty,prospect_status"`
	Segment       string     `form:"segment" validate:"omitempty,oneof=premium standard"`
	HealthStatus  string     `form:"healthStatus" validate:"omitempty,health_status"`
	UrgencyLevel  string     `form:"urgencyLevel" validate:"omitempty,urgency_level"`
	AssignedTo    string     `form:"assignedTo" validate:"omitempty,uuid"`
	MinScore      *int       `form:"minScore" validate:"omitempty,min=0,max=100"`
	MaxScore      *int       `form:"maxScore" validate:"omitempty,min=0,max=100"`
	Search        string     `form:"search" validate:"max=100"`
	CreatedAtFrom *time.Time `form:"createdAtFrom" time_format:"2006-01-02"`
	CreatedAtTo   *time.Time `form:"createdAtTo" time_format:"2006-01-02"`
	Page          int        `form:"page" validate:"omitempty,min=1"`
	PageSize      int        `form:"pageSize" validate:"omitempty,min=1,max=100"`
	SortBy        string     `form:"sortBy" validate:"omitempty,oneof=createdAt score lastName budget nextFollowUp"`
	SortOrder     string     `form:"sortOrder" validate:"omitempty,oneof=asc desc"`
}

type SearchProspectsRequest struct {
	Query string `form:"q" validate:"required,min=2,max=100"`
	Limit int    `form:"limit" validate:"omitempty,min=1,max=50"`
}

// Response DTOs
type ProspectResponse struct {
	ID               uuid.UUID  `json:"id"`
	FirstName        string     `json:"firstName"`
	LastName         string     `json:"lastName"`
	Email            *string    `json:"email,omitempty"`
	Phone            *string    `json:"phone,omitempty"`
	BirthDate        *Date      `json:"birthDate,omitempty"`
	Age              int        `json:"age"`
	Address          *string    `json:"address,omitempty"`
	City             *string    `json:"city,omitempty"`
	PostalCode       *string    `json:"postalCode,omitempty"`
	BudgetMonthly    float64    `json:"budgetMonthly"`
	HealthStatus     string     `json:"healthStatus"`
	UrgencyLevel     string     `json:"urgencyLevel"`
	Score            int        `json:"score"`
	Segment          string     `json:"segment"`
	Status           string     `json:"status"`
	AssignedTo       *uuid.UUID `json:"assignedTo,omitempty"`
	Source           *string    `json:"source,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
	CurrentInsurance *string    `json:"currentInsurance,omitempty"`
	LastContact      *time.Time `json:"lastContact,omitempty"`
	NextFollowUp     *time.Time `json:"nextFollowUp,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

type ProspectListResponse struct {
	Items      []ProspectResponse `json:"items"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"pageSize"`
	TotalPages int                `json:"totalPages"`
}

type ScorePreviewResponse struct {
	Age     int    `json:"age"`
	Score   int    `json:"score"`
	Segment string `json:"segment"`
}

type StatusHistoryItem struct {
	ID         uuid.UUID  `json:"id"`
	FromStatus string     `json:"fromStatus"`
	ToStatus   string     `json:"toStatus"`
	ChangedBy  *uuid.UUID `json:"changedBy,omitempty"`
	Reason     *string    `json:"reason,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

type SearchHit struct {
	ID        string  `json:"id"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	City      string  `json:"city,omitempty"`
	Segment   string  `json:"segment"`
	Status    string  `json:"status"`
	Score     int     `json:"score"`
	Relevance float64 `json:"relevance,omitempty"`
}

type SearchProspectsResponse struct {
	Items  []SearchHit `json:"items"`
	Total  int         `json:"total"`
	Engine string      `json:"engine"`
}
