// Package service implements prospect intake, scoring, assignment and the
// sales funnel.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"premunia_crm_backend/internal/comparator"
	"premunia_crm_backend/internal/events"
	"premunia_crm_backend/internal/prospects/lifecycle"
	"premunia_crm_backend/internal/prospects/repository"
	"premunia_crm_backend/internal/prospects/scoring"
	"premunia_crm_backend/internal/prospects/transport"
	"premunia_crm_backend/internal/search"
	"premunia_crm_backend/platform/apperr"
	"premunia_crm_backend/platform/httpkit"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/metrics"
	"premunia_crm_backend/platform/phone"
	"premunia_crm_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	msgProspectNotFound = "prospect not found"
	defaultPageSize     = 20
	maxPageSize         = 100
)

// Repository is the data access the service needs.
type Repository interface {
	Create(ctx context.Context, params repository.CreateProspectParams) (repository.Prospect, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Prospect, error)
	Update(ctx context.Context, id uuid.UUID, params repository.UpdateProspectParams) (repository.Prospect, error)
	UpdateScore(ctx context.Context, id uuid.UUID, score int, segment string) error
	Archive(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params repository.ListParams) ([]repository.Prospect, int, error)
	ChangeStatus(ctx context.Context, params repository.ChangeStatusParams) (repository.Prospect, error)
	ListStatusHistory(ctx context.Context, prospectID uuid.UUID) ([]repository.StatusChange, error)
	ForEach(ctx context.Context, batchSize int, fn func(repository.Prospect) error) error
}

type Service struct {
	repo       Repository
	eventBus   events.Bus
	index      search.ProspectIndex
	comparator *comparator.Config
	metrics    *metrics.Registry
	log        *logger.Logger
	now        func() time.Time
}

func New(repo Repository, eventBus events.Bus, index search.ProspectIndex, cmp *comparator.Config, m *metrics.Registry, log *logger.Logger) *Service {
	if index == nil {
		index = search.Noop{}
	}
	return &Service{
		repo:       repo,
		eventBus:   eventBus,
		index:      index,
		comparator: cmp,
		metrics:    m,
		log:        log,
		now:        time.Now,
	}
}

func (s *Service) Create(ctx context.Context, identity httpkit.Identity, req transport.CreateProspectRequest) (transport.ProspectResponse, error) {
	age, birthDate, err := s.resolveAge(req.BirthDate, req.Age)
	if err != nil {
		return transport.ProspectResponse{}, err
	}
	budget, err := storedBudget(req.BudgetMonthly)
	if err != nil {
		return transport.ProspectResponse{}, err
	}

	inputs := scoring.Inputs{
		Age:           age,
		MonthlyBudget: budget,
		HealthStatus:  scoring.HealthStatus(req.HealthStatus),
		UrgencyLevel:  scoring.UrgencyLevel(req.UrgencyLevel),
	}
	result := scoring.Evaluate(inputs)

	params := repository.CreateProspectParams{
		FirstName:        sanitize.Name(req.FirstName),
		LastName:         sanitize.Name(req.LastName),
		Email:            optionalString(strings.ToLower(req.Email)),
		Phone:            optionalString(phone.NormalizeE164(req.Phone)),
		BirthDate:        birthDate,
		Age:              age,
		Address:          optionalString(sanitize.Text(req.Address)),
		City:             optionalString(sanitize.Name(req.City)),
		PostalCode:       optionalString(req.PostalCode),
		BudgetMonthly:    budget,
		HealthStatus:     req.HealthStatus,
		UrgencyLevel:     req.UrgencyLevel,
		Score:            result.Score,
		Segment:          string(result.Segment),
		Status:           string(lifecycle.StatusNew),
		Source:           optionalString(sanitize.Text(req.Source)),
		Notes:            optionalString(sanitize.Text(req.Notes)),
		CurrentInsurance: optionalString(sanitize.Text(req.CurrentInsurance)),
		NextFollowUp:     req.NextFollowUp,
	}

	switch {
	case req.AssignedTo.Set && identity.IsManager():
		params.AssignedTo = req.AssignedTo.Value
	case identity.HasRole(httpkit.RoleCommercial):
		userID := identity.UserID()
		params.AssignedTo = &userID
	}

	p, err := s.repo.Create(ctx, params)
	if err != nil {
		return transport.ProspectResponse{}, apperr.Unavailable("prospects.Create", err)
	}

	s.log.ProspectScored(p.ID.String(), p.Score, p.Segment, scoring.Reason(inputs))
	s.metrics.ObserveProspect(p.Segment, p.Score)
	s.indexProspect(ctx, p)
	s.eventBus.Publish(ctx, events.ProspectCreated{
		BaseEvent:  events.NewBaseEvent(),
		ProspectID: p.ID,
		FullName:   fullName(p),
		Score:      p.Score,
		Segment:    p.Segment,
		AssignedTo: p.AssignedTo,
		CreatedBy:  identity.UserID(),
	})

	return toProspectResponse(p), nil
}

func (s *Service) Get(ctx context.Context, identity httpkit.Identity, id uuid.UUID) (transport.ProspectResponse, error) {
	p, err := s.loadScoped(ctx, identity, id)
	if err != nil {
		return transport.ProspectResponse{}, err
	}
	return toProspectResponse(p), nil
}

func (s *Service) List(ctx context.Context, identity httpkit.Identity, req transport.ListProspectsRequest) (transport.ProspectListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	params := repository.ListParams{
		ScopeUserID:   identity.ScopeUserID(),
		Status:        optionalString(req.Status),
		Segment:       optionalString(req.Segment),
		HealthStatus:  optionalString(req.HealthStatus),
		UrgencyLevel:  optionalString(req.UrgencyLevel),
		MinScore:      req.MinScore,
		MaxScore:      req.MaxScore,
		Search:        strings.TrimSpace(req.Search),
		CreatedAtFrom: req.CreatedAtFrom,
		CreatedAtTo:   req.CreatedAtTo,
		Offset:        (req.Page - 1) * req.PageSize,
		Limit:         req.PageSize,
		SortBy:        req.SortBy,
		SortOrder:     req.SortOrder,
	}
	if req.AssignedTo != "" {
		assignee, err := uuid.Parse(req.AssignedTo)
		if err != nil {
			return transport.ProspectListResponse{}, apperr.BadRequest("invalid assignedTo")
		}
		params.AssignedTo = &assignee
	}

	prospects, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.ProspectListResponse{}, apperr.Unavailable("prospects.List", err)
	}

	items := make([]transport.ProspectResponse, len(prospects))
	for i, p := range prospects {
		items[i] = toProspectResponse(p)
	}

	return transport.ProspectListResponse{
		Items:      items,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: (total + req.PageSize - 1) / req.PageSize,
	}, nil
}

// Update applies a partial update. The score and segment are recomputed from
// the merged record whenever a scoring input changes.
func (s *Service) Update(ctx context.Context, identity httpkit.Identity, id uuid.UUID, req transport.UpdateProspectRequest) (transport.ProspectResponse, error) {
	current, err := s.loadScoped(ctx, identity, id)
	if err != nil {
		return transport.ProspectResponse{}, err
	}
	if req.BirthDate != nil && !req.BirthDate.IsZero() && req.BirthDate.After(s.now()) {
		return transport.ProspectResponse{}, apperr.Validation("birth date cannot be in the future")
	}
	if req.BudgetMonthly != nil {
		budget, err := storedBudget(*req.BudgetMonthly)
		if err != nil {
			return transport.ProspectResponse{}, err
		}
		req.BudgetMonthly = &budget
	}

	params := repository.UpdateProspectParams{
		FirstName:        mapPtr(req.FirstName, sanitize.Name),
		LastName:         mapPtr(req.LastName, sanitize.Name),
		Email:            mapPtr(req.Email, strings.ToLower),
		Phone:            mapPtr(req.Phone, phone.NormalizeE164),
		Address:          sanitize.TextPtr(req.Address),
		City:             mapPtr(req.City, sanitize.Name),
		PostalCode:       req.PostalCode,
		BudgetMonthly:    req.BudgetMonthly,
		HealthStatus:     req.HealthStatus,
		UrgencyLevel:     req.UrgencyLevel,
		Source:           sanitize.TextPtr(req.Source),
		Notes:            sanitize.TextPtr(req.Notes),
		CurrentInsurance: sanitize.TextPtr(req.CurrentInsurance),
		NextFollowUp:     req.NextFollowUp,
	}

	rescore := req.BirthDate != nil || req.Age != nil || req.BudgetMonthly != nil ||
		req.HealthStatus != nil || req.UrgencyLevel != nil
	if rescore {
		inputs := mergeScoringInputs(current, req, s.now())
		result := scoring.Evaluate(inputs)
		segment := string(result.Segment)
		params.Age = &inputs.Age
		params.Score = &result.Score
		params.Segment = &segment
		switch {
		case req.BirthDate != nil && !req.BirthDate.IsZero():
			birthDate := req.BirthDate.Time
			params.BirthDate = &birthDate
		case req.Age != nil:
			// An explicit age replaces the birth date so rescoring keeps it.
			params.ClearBirthDate = true
		}
	}

	updated, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return transport.ProspectResponse{}, s.mapRepoError("prospects.Update", err)
	}

	if rescore {
		s.metrics.ObserveProspect(updated.Segment, updated.Score)
	}
	s.indexProspect(ctx, updated)
	s.eventBus.Publish(ctx, events.ProspectUpdated{
		BaseEvent:  events.NewBaseEvent(),
		ProspectID: updated.ID,
		Score:      updated.Score,
		Segment:    updated.Segment,
		UpdatedBy:  identity.UserID(),
	})

	return toProspectResponse(updated), nil
}

// ChangeStatus moves a prospect through the funnel and records the change.
func (s *Service) ChangeStatus(ctx context.Context, identity httpkit.Identity, id uuid.UUID, req transport.ChangeStatusRequest) (transport.ProspectResponse, error) {
	current, err := s.loadScoped(ctx, identity, id)
	if err != nil {
		return transport.ProspectResponse{}, err
	}

	to, err := lifecycle.Parse(req.Status)
	if err != nil {
		return transport.ProspectResponse{}, apperr.Validation(err.Error())
	}
	from := lifecycle.Status(current.Status)
	if !lifecycle.CanTransition(from, to) {
		return transport.ProspectResponse{}, apperr.Conflict(fmt.Sprintf("cannot move prospect from %s to %s", from, to))
	}
	if from == to {
		return toProspectResponse(current), nil
	}

	changedBy := identity.UserID()
	updated, err := s.repo.ChangeStatus(ctx, repository.ChangeStatusParams{
		ProspectID: id,
		FromStatus: string(from),
		ToStatus:   string(to),
		ChangedBy:  &changedBy,
		Reason:     optionalString(sanitize.Text(req.Reason)),
	})
	if errors.Is(err, repository.ErrNotFound) {
		return transport.ProspectResponse{}, apperr.Conflict("prospect status changed concurrently, reload and retry")
	}
	if err != nil {
		return transport.ProspectResponse{}, apperr.Unavailable("prospects.ChangeStatus", err)
	}

	s.indexProspect(ctx, updated)
	s.eventBus.Publish(ctx, events.ProspectStatusChanged{
		BaseEvent:  events.NewBaseEvent(),
		ProspectID: id,
		FromStatus: string(from),
		ToStatus:   string(to),
		ChangedBy:  changedBy,
		Reason:     req.Reason,
	})

	return toProspectResponse(updated), nil
}

// Assign hands a prospect to a commercial, or unassigns it with a null id.
func (s *Service) Assign(ctx context.Context, identity httpkit.Identity, id uuid.UUID, req transport.AssignProspectRequest) (transport.ProspectResponse, error) {
	if !identity.IsManager() {
		return transport.ProspectResponse{}, apperr.Forbidden("only managers can assign prospects")
	}
	if !req.AssigneeID.Set {
		return transport.ProspectResponse{}, apperr.Validation("assigneeId is required")
	}

	current, err := s.loadScoped(ctx, identity, id)
	if err != nil {
		return transport.ProspectResponse{}, err
	}

	updated, err := s.repo.Update(ctx, id, repository.UpdateProspectParams{
		AssignedTo:    req.AssigneeID.Value,
		AssignedToSet: true,
	})
	if err != nil {
		return transport.ProspectResponse{}, s.mapRepoError("prospects.Assign", err)
	}

	s.indexProspect(ctx, updated)
	if req.AssigneeID.Value != nil {
		s.eventBus.Publish(ctx, events.ProspectAssigned{
			BaseEvent:    events.NewBaseEvent(),
			ProspectID:   id,
			ProspectName: fullName(updated),
			Segment:      updated.Segment,
			Score:        updated.Score,
			PreviousID:   current.AssignedTo,
			AssigneeID:   *req.AssigneeID.Value,
			AssignedBy:   identity.UserID(),
		})
	}

	return toProspectResponse(updated), nil
}

// Archive soft-deletes a prospect. Tasks and appointments keep their link.
func (s *Service) Archive(ctx context.Context, identity httpkit.Identity, id uuid.UUID) error {
	if _, err := s.loadScoped(ctx, identity, id); err != nil {
		return err
	}
	if err := s.repo.Archive(ctx, id); err != nil {
		return s.mapRepoError("prospects.Archive", err)
	}

	if err := s.index.Delete(ctx, id); err != nil {
		s.log.Warn("failed to remove prospect from search index", "prospectId", id, "error", err)
	}
	s.eventBus.Publish(ctx, events.ProspectArchived{
		BaseEvent:  events.NewBaseEvent(),
		ProspectID: id,
		ArchivedBy: identity.UserID(),
	})
	return nil
}

func (s *Service) History(ctx context.Context, identity httpkit.Identity, id uuid.UUID) ([]transport.StatusHistoryItem, error) {
	if _, err := s.loadScoped(ctx, identity, id); err != nil {
		return nil, err
	}
	changes, err := s.repo.ListStatusHistory(ctx, id)
	if err != nil {
		return nil, apperr.Unavailable("prospects.History", err)
	}

	items := make([]transport.StatusHistoryItem, len(changes))
	for i, c := range changes {
		items[i] = transport.StatusHistoryItem{
			ID:         c.ID,
			FromStatus: c.FromStatus,
			ToStatus:   c.ToStatus,
			ChangedBy:  c.ChangedBy,
			Reason:     c.Reason,
			CreatedAt:  c.CreatedAt,
		}
	}
	return items, nil
}

// ScorePreview evaluates unsaved form values.
func (s *Service) ScorePreview(req transport.ScorePreviewRequest) (transport.ScorePreviewResponse, error) {
	age, _, err := s.resolveAge(req.BirthDate, req.Age)
	if err != nil {
		return transport.ScorePreviewResponse{}, err
	}
	budget, err := storedBudget(req.BudgetMonthly)
	if err != nil {
		return transport.ScorePreviewResponse{}, err
	}
	result := scoring.Evaluate(scoring.Inputs{
		Age:           age,
		MonthlyBudget: budget,
		HealthStatus:  scoring.HealthStatus(req.HealthStatus),
		UrgencyLevel:  scoring.UrgencyLevel(req.UrgencyLevel),
	})
	return transport.ScorePreviewResponse{Age: age, Score: result.Score, Segment: string(result.Segment)}, nil
}

// Comparator returns the comparison widget configuration for a prospect.
func (s *Service) Comparator(ctx context.Context, identity httpkit.Identity, id uuid.UUID) (comparator.Widget, error) {
	p, err := s.loadScoped(ctx, identity, id)
	if err != nil {
		return comparator.Widget{}, err
	}
	subject := comparator.Subject{Age: p.Age, Budget: p.BudgetMonthly}
	if p.PostalCode != nil {
		subject.PostalCode = *p.PostalCode
	}
	return s.comparator.WidgetConfig(subject)
}

// Rescore recomputes every live prospect and persists the ones whose score or
// segment moved. Age is re-derived from the birth date as time passes.
func (s *Service) Rescore(ctx context.Context) (int, error) {
	changed := 0
	now := s.now()
	err := s.repo.ForEach(ctx, 500, func(p repository.Prospect) error {
		age := p.Age
		if p.BirthDate != nil {
			age = scoring.AgeAt(*p.BirthDate, now)
		}
		inputs := scoring.Inputs{
			Age:           age,
			MonthlyBudget: p.BudgetMonthly,
			HealthStatus:  scoring.HealthStatus(p.HealthStatus),
			UrgencyLevel:  scoring.UrgencyLevel(p.UrgencyLevel),
		}
		result := scoring.Evaluate(inputs)
		if result.Score == p.Score && string(result.Segment) == p.Segment && age == p.Age {
			return nil
		}

		if age != p.Age {
			if _, err := s.repo.Update(ctx, p.ID, repository.UpdateProspectParams{Age: &age}); err != nil {
				return err
			}
		}
		if err := s.repo.UpdateScore(ctx, p.ID, result.Score, string(result.Segment)); err != nil {
			return err
		}
		s.log.ProspectScored(p.ID.String(), result.Score, string(result.Segment), scoring.Reason(inputs))
		changed++
		return nil
	})
	return changed, err
}

// Reindex pushes every live prospect into the search index.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	if !s.index.Enabled() {
		return 0, apperr.BadRequest("search index is not configured")
	}
	if err := s.index.EnsureIndex(ctx); err != nil {
		return 0, apperr.Unavailable("prospects.Reindex", err)
	}

	indexed := 0
	err := s.repo.ForEach(ctx, 500, func(p repository.Prospect) error {
		if err := s.index.Index(ctx, toDocument(p)); err != nil {
			return err
		}
		indexed++
		return nil
	})
	return indexed, err
}

// loadScoped fetches a prospect the caller may see. Prospects outside a
// commercial's portfolio are reported as missing.
func (s *Service) loadScoped(ctx context.Context, identity httpkit.Identity, id uuid.UUID) (repository.Prospect, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.Prospect{}, s.mapRepoError("prospects.Get", err)
	}
	if scope := identity.ScopeUserID(); scope != nil {
		if p.AssignedTo == nil || *p.AssignedTo != *scope {
			return repository.Prospect{}, apperr.NotFound(msgProspectNotFound)
		}
	}
	return p, nil
}

func (s *Service) resolveAge(birthDate *transport.Date, age int) (int, *time.Time, error) {
	if birthDate != nil && !birthDate.IsZero() {
		if birthDate.After(s.now()) {
			return 0, nil, apperr.Validation("birth date cannot be in the future")
		}
		t := birthDate.Time
		return scoring.AgeAt(t, s.now()), &t, nil
	}
	if age > 0 {
		return age, nil, nil
	}
	return 0, nil, apperr.Validation("age or birth date is required")
}

// storedBudget returns the budget as budget_monthly will hold it, so the
// score is computed from the stored value.
func storedBudget(budget float64) (float64, error) {
	rounded := roundCents(budget)
	if rounded <= 0 {
		return 0, apperr.Validation("monthly budget must be at least 0.01")
	}
	return rounded, nil
}

// roundCents rounds half away from zero on the shortest decimal form of v,
// which is what a NUMERIC(10,2) column does with the value pgx sends.
func roundCents(v float64) float64 {
	if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	whole, frac, _ := strings.Cut(strconv.FormatFloat(v, 'f', -1, 64), ".")
	if len(frac) <= 2 {
		return v
	}
	cents, err := strconv.ParseInt(whole+frac[:2], 10, 64)
	if err != nil {
		return math.Round(v*100) / 100
	}
	if frac[2] >= '5' {
		cents++
	}
	return float64(cents) / 100
}

func (s *Service) indexProspect(ctx context.Context, p repository.Prospect) {
	if !s.index.Enabled() {
		return
	}
	if err := s.index.Index(ctx, toDocument(p)); err != nil {
		s.log.Warn("failed to index prospect", "prospectId", p.ID, "error", err)
	}
}

func (s *Service) mapRepoError(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(msgProspectNotFound)
	}
	return apperr.Unavailable(op, err)
}

func mergeScoringInputs(current repository.Prospect, req transport.UpdateProspectRequest, now time.Time) scoring.Inputs {
	inputs := scoring.Inputs{
		Age:           current.Age,
		MonthlyBudget: current.BudgetMonthly,
		HealthStatus:  scoring.HealthStatus(current.HealthStatus),
		UrgencyLevel:  scoring.UrgencyLevel(current.UrgencyLevel),
	}
	switch {
	case req.BirthDate != nil && !req.BirthDate.IsZero():
		inputs.Age = scoring.AgeAt(req.BirthDate.Time, now)
	case req.Age != nil:
		inputs.Age = *req.Age
	case current.BirthDate != nil:
		inputs.Age = scoring.AgeAt(*current.BirthDate, now)
	}
	if req.BudgetMonthly != nil {
		inputs.MonthlyBudget = *req.BudgetMonthly
	}
	if req.HealthStatus != nil {
		inputs.HealthStatus = scoring.HealthStatus(*req.HealthStatus)
	}
	if req.UrgencyLevel != nil {
		inputs.UrgencyLevel = scoring.UrgencyLevel(*req.UrgencyLevel)
	}
	return inputs
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func mapPtr(value *string, fn func(string) string) *string {
	if value == nil {
		return nil
	}
	result := fn(*value)
	return &result
}
