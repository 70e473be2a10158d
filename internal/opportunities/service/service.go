package service

import (
	"context"
	"errors"

	"premunia_crm_backend/internal/events"
	"premunia_crm_backend/internal/opportunities/repository"
	"premunia_crm_backend/internal/opportunities/transport"
	prospectrepo "premunia_crm_backend/internal/prospects/repository"
	"premunia_crm_backend/platform/apperr"
	"premunia_crm_backend/platform/httpkit"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/sanitize"

	"github.com/google/uuid"
)

const msgOpportunityNotFound = "opportunity not found"

// defaultProbability is the win probability given to a stage when none is supplied.
var defaultProbability = map[transport.Stage]int{
	transport.StageDiscovery:     10,
	transport.StageNeedsAnalysis: 25,
	transport.StageProposal:      50,
	transport.StageNegotiation:   75,
	transport.StageClosedWon:     100,
	transport.StageClosedLost:    0,
}

type Repository interface {
	Create(ctx context.Context, params repository.CreateOpportunityParams) (repository.Opportunity, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Opportunity, error)
	Update(ctx context.Context, id uuid.UUID, params repository.UpdateOpportunityParams) (repository.Opportunity, error)
	MoveStage(ctx context.Context, id uuid.UUID, stage string, probability int) (repository.Opportunity, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params repository.ListParams) ([]repository.Opportunity, int, error)
}

// ProspectReader resolves the prospect an opportunity is attached to.
type ProspectReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (prospectrepo.Prospect, error)
}

type Service struct {
	repo      Repository
	prospects ProspectReader
	eventBus  events.Bus
	log       *logger.Logger
}

func New(repo Repository, prospects ProspectReader, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, prospects: prospects, eventBus: eventBus, log: log}
}

func (s *Service) Create(ctx context.Context, identity httpkit.Identity, req transport.CreateOpportunityRequest) (transport.OpportunityResponse, error) {
	prospect, err := s.prospects.GetByID(ctx, req.ProspectID)
	if errors.Is(err, prospectrepo.ErrNotFound) {
		return transport.OpportunityResponse{}, apperr.NotFound("prospect not found")
	}
	if err != nil {
		return transport.OpportunityResponse{}, apperr.Unavailable("opportunities.Create.prospect", err)
	}
	if scope := identity.ScopeUserID(); scope != nil && (prospect.AssignedTo == nil || *prospect.AssignedTo != *scope) {
		return transport.OpportunityResponse{}, apperr.NotFound("prospect not found")
	}

	stage := req.Stage
	if stage == "" {
		stage = transport.StageDiscovery
	}
	probability := defaultProbability[stage]
	if req.Probability != nil {
		probability = *req.Probability
	}

	assignee := req.AssignedTo
	if !identity.IsManager() || assignee == nil {
		assignee = prospect.AssignedTo
	}
	if assignee == nil {
		userID := identity.UserID()
		assignee = &userID
	}

	o, err := s.repo.Create(ctx, repository.CreateOpportunityParams{
		ProspectID:        req.ProspectID,
		Title:             sanitize.Text(req.Title),
		Value:             req.Value,
		Stage:             string(stage),
		Probability:       probability,
		ExpectedCloseDate: req.ExpectedCloseDate,
		AssignedTo:        assignee,
	})
	if err != nil {
		return transport.OpportunityResponse{}, apperr.Unavailable("opportunities.Create", err)
	}
	s.publishChange(ctx, o, events.ChangeCreated)
	return toResponse(o), nil
}

func (s *Service) Get(ctx context.Context, identity httpkit.Identity, id uuid.UUID) (transport.OpportunityResponse, error) {
	o, err := s.ensureAccess(ctx, identity, id)
	if err != nil {
		return transport.OpportunityResponse{}, err
	}
	return toResponse(o), nil
}

func (s *Service) Update(ctx context.Context, identity httpkit.Identity, id uuid.UUID, req transport.UpdateOpportunityRequest) (transport.OpportunityResponse, error) {
	current, err := s.ensureAccess(ctx, identity, id)
	if err != nil {
		return transport.OpportunityResponse{}, err
	}
	if req.AssignedTo != nil && !identity.IsManager() {
		return transport.OpportunityResponse{}, apperr.Forbidden("only managers can reassign opportunities")
	}
	if req.Probability != nil && isClosed(transport.Stage(current.Stage)) {
		return transport.OpportunityResponse{}, apperr.Conflict("closed opportunities keep their probability")
	}

	o, err := s.repo.Update(ctx, id, repository.UpdateOpportunityParams{
		Title:             sanitize.TextPtr(req.Title),
		Value:             req.Value,
		Probability:       req.Probability,
		ExpectedCloseDate: req.ExpectedCloseDate,
		AssignedTo:        req.AssignedTo,
	})
	if err != nil {
		return transport.OpportunityResponse{}, mapRepoError("opportunities.Update", err)
	}
	s.publishChange(ctx, o, events.ChangeUpdated)
	return toResponse(o), nil
}

// MoveStage moves the opportunity through the pipeline. Won deals are certain
// and lost deals are worth nothing, whatever probability was requested.
func (s *Service) MoveStage(ctx context.Context, identity httpkit.Identity, id uuid.UUID, req transport.MoveStageRequest) (transport.OpportunityResponse, error) {
	current, err := s.ensureAccess(ctx, identity, id)
	if err != nil {
		return transport.OpportunityResponse{}, err
	}

	probability := stageProbability(req.Stage, req.Probability, current)

	o, err := s.repo.MoveStage(ctx, id, string(req.Stage), probability)
	if err != nil {
		return transport.OpportunityResponse{}, mapRepoError("opportunities.MoveStage", err)
	}

	if current.Stage != o.Stage {
		s.eventBus.Publish(ctx, events.OpportunityStageChanged{
			BaseEvent:     events.NewBaseEvent(),
			OpportunityID: o.ID,
			ProspectID:    o.ProspectID,
			FromStage:     current.Stage,
			ToStage:       o.Stage,
			Value:         o.Value,
			AssignedTo:    o.AssignedTo,
		})
	}
	return toResponse(o), nil
}

func (s *Service) Delete(ctx context.Context, identity httpkit.Identity, id uuid.UUID) error {
	o, err := s.ensureAccess(ctx, identity, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoError("opportunities.Delete", err)
	}
	s.publishChange(ctx, o, events.ChangeDeleted)
	return nil
}

func (s *Service) List(ctx context.Context, identity httpkit.Identity, req transport.ListOpportunitiesRequest) (transport.OpportunityListResponse, error) {
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
		ScopeUserID: identity.ScopeUserID(),
		Offset:      (req.Page - 1) * req.PageSize,
		Limit:       req.PageSize,
	}
	if req.Stage != "" {
		params.Stage = &req.Stage
	}
	if req.ProspectID != "" {
		prospectID, err := uuid.Parse(req.ProspectID)
		if err != nil {
			return transport.OpportunityListResponse{}, apperr.Validation("invalid prospectId")
		}
		params.ProspectID = &prospectID
	}

	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.OpportunityListResponse{}, apperr.Unavailable("opportunities.List", err)
	}

	resp := make([]transport.OpportunityResponse, len(items))
	for i, o := range items {
		resp[i] = toResponse(o)
	}
	return transport.OpportunityListResponse{
		Items:      resp,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: (total + req.PageSize - 1) / req.PageSize,
	}, nil
}

func (s *Service) ensureAccess(ctx context.Context, identity httpkit.Identity, id uuid.UUID) (repository.Opportunity, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.Opportunity{}, mapRepoError("opportunities.Get", err)
	}
	if scope := identity.ScopeUserID(); scope != nil && (o.AssignedTo == nil || *o.AssignedTo != *scope) {
		return repository.Opportunity{}, apperr.NotFound(msgOpportunityNotFound)
	}
	return o, nil
}

func (s *Service) publishChange(ctx context.Context, o repository.Opportunity, change string) {
	s.eventBus.Publish(ctx, events.OpportunityChanged{
		BaseEvent:     events.NewBaseEvent(),
		OpportunityID: o.ID,
		ProspectID:    o.ProspectID,
		Change:        change,
	})
}

func stageProbability(stage transport.Stage, requested *int, current repository.Opportunity) int {
	switch {
	case stage == transport.StageClosedWon:
		return 100
	case stage == transport.StageClosedLost:
		return 0
	case requested != nil:
		return *requested
	case string(stage) == current.Stage:
		return current.Probability
	default:
		return defaultProbability[stage]
	}
}

func isClosed(stage transport.Stage) bool {
	return stage == transport.StageClosedWon || stage == transport.StageClosedLost
}

func toResponse(o repository.Opportunity) transport.OpportunityResponse {
	return transport.OpportunityResponse{
		ID:                o.ID,
		ProspectID:        o.ProspectID,
		Title:             o.Title,
		Value:             o.Value,
		Stage:             transport.Stage(o.Stage),
		Probability:       o.Probability,
		WeightedValue:     weighted(o.Value, o.Probability),
		ExpectedCloseDate: o.ExpectedCloseDate,
		AssignedTo:        o.AssignedTo,
		ClosedAt:          o.ClosedAt,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

// weighted is value * probability / 100 rounded to the cent.
func weighted(value float64, probability int) float64 {
	cents := value * float64(probability)
	return float64(int64(cents+0.5)) / 100
}

func mapRepoError(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(msgOpportunityNotFound)
	}
	return apperr.Unavailable(op, err)
}

