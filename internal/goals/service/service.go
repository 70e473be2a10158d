package service

import (
	"context"
	"errors"
	"math"
	"time"

	"premunia_crm_backend/internal/goals/repository"
	"premunia_crm_backend/internal/goals/transport"
	"premunia_crm_backend/platform/apperr"
	"premunia_crm_backend/platform/httpkit"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/sanitize"

	"github.com/google/uuid"
)

const msgGoalNotFound = "goal not found"

type Repository interface {
	Create(ctx context.Context, params repository.CreateGoalParams) (repository.Goal, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Goal, error)
	Update(ctx context.Context, id uuid.UUID, params repository.UpdateGoalParams) (repository.Goal, error)
	SetCurrentValue(ctx context.Context, id uuid.UUID, value float64) (repository.Goal, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params repository.ListParams) ([]repository.Goal, int, error)
	Measure(ctx context.Context, goalType string, userID uuid.UUID, start, end time.Time) (float64, error)
}

type Service struct {
	repo Repository
	log  *logger.Logger
	now  func() time.Time
}

func New(repo Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

func (s *Service) Create(ctx context.Context, identity httpkit.Identity, req transport.CreateGoalRequest) (transport.GoalResponse, error) {
	if !identity.IsManager() {
		return transport.GoalResponse{}, apperr.Forbidden("only managers can set goals")
	}

	start, err := time.Parse(time.DateOnly, req.StartDate)
	if err != nil {
		return transport.GoalResponse{}, apperr.Validation("invalid startDate")
	}
	end := PeriodEnd(start, req.Period)
	if req.EndDate != "" {
		if end, err = time.Parse(time.DateOnly, req.EndDate); err != nil {
			return transport.GoalResponse{}, apperr.Validation("invalid endDate")
		}
	}
	if end.Before(start) {
		return transport.GoalResponse{}, apperr.Validation("endDate must not be before startDate")
	}

	g, err := s.repo.Create(ctx, repository.CreateGoalParams{
		UserID:      req.UserID,
		Type:        req.Type,
		Period:      req.Period,
		TargetValue: req.TargetValue,
		StartDate:   start,
		EndDate:     end,
		Description: optionalString(sanitize.Text(req.Description)),
		CreatedBy:   identity.UserID(),
	})
	if err != nil {
		return transport.GoalResponse{}, apperr.Unavailable("goals.Create", err)
	}
	return toResponse(g), nil
}

func (s *Service) Get(ctx context.Context, identity httpkit.Identity, id uuid.UUID) (transport.GoalResponse, error) {
	g, err := s.ensureAccess(ctx, identity, id)
	if err != nil {
		return transport.GoalResponse{}, err
	}
	return toResponse(g), nil
}

func (s *Service) Update(ctx context.Context, identity httpkit.Identity, id uuid.UUID, req transport.UpdateGoalRequest) (transport.GoalResponse, error) {
	if !identity.IsManager() {
		return transport.GoalResponse{}, apperr.Forbidden("only managers can change goals")
	}
	current, err := s.ensureAccess(ctx, identity, id)
	if err != nil {
		return transport.GoalResponse{}, err
	}

	params := repository.UpdateGoalParams{
		TargetValue: req.TargetValue,
		Description: sanitize.TextPtr(req.Description),
	}
	start, end := current.StartDate, current.EndDate
	if req.StartDate != nil {
		if start, err = time.Parse(time.DateOnly, *req.StartDate); err != nil {
			return transport.GoalResponse{}, apperr.Validation("invalid startDate")
		}
		params.StartDate = &start
	}
	if req.EndDate != nil {
		if end, err = time.Parse(time.DateOnly, *req.EndDate); err != nil {
			return transport.GoalResponse{}, apperr.Validation("invalid endDate")
		}
		params.EndDate = &end
	}
	if end.Before(start) {
		return transport.GoalResponse{}, apperr.Validation("endDate must not be before startDate")
	}

	g, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return transport.GoalResponse{}, mapRepoError("goals.Update", err)
	}
	return toResponse(g), nil
}

func (s *Service) Delete(ctx context.Context, identity httpkit.Identity, id uuid.UUID) error {
	if !identity.IsManager() {
		return apperr.Forbidden("only managers can delete goals")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoError("goals.Delete", err)
	}
	return nil
}

// Refresh recomputes the achieved value from live pipeline data.
func (s *Service) Refresh(ctx context.Context, identity httpkit.Identity, id uuid.UUID) (transport.GoalResponse, error) {
	g, err := s.ensureAccess(ctx, identity, id)
	if err != nil {
		return transport.GoalResponse{}, err
	}

	value, err := s.repo.Measure(ctx, g.Type, g.UserID, g.StartDate, g.EndDate)
	if err != nil {
		return transport.GoalResponse{}, apperr.Unavailable("goals.Refresh.measure", err)
	}
	if value == g.CurrentValue {
		return toResponse(g), nil
	}

	updated, err := s.repo.SetCurrentValue(ctx, id, value)
	if err != nil {
		return transport.GoalResponse{}, mapRepoError("goals.Refresh", err)
	}
	s.log.Debug("goal refreshed", "goalId", id, "from", g.CurrentValue, "to", value)
	return toResponse(updated), nil
}

// List returns the caller's goals; managers may list anyone's.
func (s *Service) List(ctx context.Context, identity httpkit.Identity, req transport.ListGoalsRequest) (transport.GoalListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	params := repository.ListParams{
		Offset: (req.Page - 1) * req.PageSize,
		Limit:  req.PageSize,
	}
	switch {
	case !identity.IsManager():
		userID := identity.UserID()
		params.UserID = &userID
	case req.UserID != "":
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			return transport.GoalListResponse{}, apperr.Validation("invalid userId")
		}
		params.UserID = &userID
	}
	if req.Type != "" {
		params.Type = &req.Type
	}
	if req.Period != "" {
		params.Period = &req.Period
	}
	if req.ActiveOnly {
		today := s.now()
		params.ActiveOn = &today
	}

	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.GoalListResponse{}, apperr.Unavailable("goals.List", err)
	}

	resp := make([]transport.GoalResponse, len(items))
	for i, g := range items {
		resp[i] = toResponse(g)
	}
	return transport.GoalListResponse{
		Items:      resp,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: (total + req.PageSize - 1) / req.PageSize,
	}, nil
}

func (s *Service) ensureAccess(ctx context.Context, identity httpkit.Identity, id uuid.UUID) (repository.Goal, error) {
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.Goal{}, mapRepoError("goals.Get", err)
	}
	if !identity.IsManager() && g.UserID != identity.UserID() {
		return repository.Goal{}, apperr.NotFound(msgGoalNotFound)
	}
	return g, nil
}

// PeriodEnd is the last day of the period that starts on start.
func PeriodEnd(start time.Time, period string) time.Time {
	months := 1
	switch period {
	case transport.PeriodQuarterly:
		months = 3
	case transport.PeriodYearly:
		months = 12
	}
	return start.AddDate(0, months, -1)
}

// Progress is current/target as a percentage, capped at 100.
func Progress(current, target float64) float64 {
	if target <= 0 {
		return 0
	}
	pct := math.Round(current/target*10000) / 100
	return math.Min(pct, 100)
}

func toResponse(g repository.Goal) transport.GoalResponse {
	return transport.GoalResponse{
		ID:           g.ID,
		UserID:       g.UserID,
		Type:         g.Type,
		Period:       g.Period,
		TargetValue:  g.TargetValue,
		CurrentValue: g.CurrentValue,
		Progress:     Progress(g.CurrentValue, g.TargetValue),
		StartDate:    g.StartDate.Format(time.DateOnly),
		EndDate:      g.EndDate.Format(time.DateOnly),
		Description:  g.Description,
		CreatedBy:    g.CreatedBy,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
}

func mapRepoError(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(msgGoalNotFound)
	}
	return apperr.Unavailable(op, err)
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
