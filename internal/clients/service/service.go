package service

import (
	"context"
	"errors"
	"time"

	"premunia_crm_backend/internal/clients/repository"
	"premunia_crm_backend/internal/clients/transport"
	"premunia_crm_backend/internal/events"
	"premunia_crm_backend/internal/prospects/lifecycle"
	prospectrepo "premunia_crm_backend/internal/prospects/repository"
	"premunia_crm_backend/platform/apperr"
	"premunia_crm_backend/platform/httpkit"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/phone"
	"premunia_crm_backend/platform/sanitize"

	"github.com/google/uuid"
)

const msgClientNotFound = "client not found"

type Repository interface {
	Convert(ctx context.Context, params repository.ConvertParams) (repository.Client, prospectrepo.Prospect, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Client, error)
	Update(ctx context.Context, id uuid.UUID, params repository.UpdateClientParams) (repository.Client, error)
	Cancel(ctx context.Context, id uuid.UUID) (repository.Client, error)
	List(ctx context.Context, params repository.ListParams) ([]repository.Client, int, error)
}

type Service struct {
	repo     Repository
	eventBus events.Bus
	log      *logger.Logger
	now      func() time.Time
}

func New(repo Repository, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, eventBus: eventBus, log: log, now: time.Now}
}

// Convert signs a prospect as a client. The prospect moves to closed_won in the
// same transaction; a prospect can only be converted once.
func (s *Service) Convert(ctx context.Context, identity httpkit.Identity, prospectID uuid.UUID, req transport.ConvertProspectRequest) (transport.ClientResponse, error) {
	startDate := s.now().UTC().Truncate(24 * time.Hour)
	if req.StartDate != nil {
		startDate = req.StartDate.UTC()
	}

	scope := identity.ScopeUserID()
	var fromStatus string
	client, prospect, err := s.repo.Convert(ctx, repository.ConvertParams{
		ProspectID: prospectID,
		ChangedBy:  identity.UserID(),
		Terms: repository.ContractTerms{
			Product:        sanitize.Text(req.Product),
			Insurer:        sanitize.Text(req.Insurer),
			MonthlyPremium: req.MonthlyPremium,
			StartDate:      startDate,
		},
		Check: func(p prospectrepo.Prospect) error {
			if scope != nil && (p.AssignedTo == nil || *p.AssignedTo != *scope) {
				return prospectrepo.ErrNotFound
			}
			if !lifecycle.CanTransition(lifecycle.Status(p.Status), lifecycle.StatusClosedWon) {
				return apperr.Conflict("prospect cannot be converted from status " + p.Status)
			}
			fromStatus = p.Status
			return nil
		},
	})
	switch {
	case errors.Is(err, prospectrepo.ErrNotFound):
		return transport.ClientResponse{}, apperr.NotFound("prospect not found")
	case errors.Is(err, repository.ErrAlreadyConverted):
		return transport.ClientResponse{}, apperr.Conflict("prospect already converted")
	case apperr.GetKind(err) != apperr.KindUnknown:
		return transport.ClientResponse{}, err
	case err != nil:
		return transport.ClientResponse{}, apperr.Unavailable("clients.Convert", err)
	}

	s.log.Info("prospect converted", "prospectId", prospect.ID, "contractNumber", client.ContractNumber)
	s.eventBus.Publish(ctx, events.ProspectStatusChanged{
		BaseEvent:  events.NewBaseEvent(),
		ProspectID: prospect.ID,
		FromStatus: fromStatus,
		ToStatus:   prospect.Status,
		ChangedBy:  identity.UserID(),
		Reason:     "converted to client " + client.ContractNumber,
	})
	s.eventBus.Publish(ctx, events.ProspectConverted{
		BaseEvent:      events.NewBaseEvent(),
		ProspectID:     prospect.ID,
		ClientID:       client.ID,
		ContractNumber: client.ContractNumber,
		MonthlyPremium: client.MonthlyPremium,
		AssignedTo:     client.AssignedTo,
	})
	return toResponse(client), nil
}

func (s *Service) Get(ctx context.Context, identity httpkit.Identity, id uuid.UUID) (transport.ClientResponse, error) {
	c, err := s.ensureAccess(ctx, identity, id)
	if err != nil {
		return transport.ClientResponse{}, err
	}
	return toResponse(c), nil
}

func (s *Service) Update(ctx context.Context, identity httpkit.Identity, id uuid.UUID, req transport.UpdateClientRequest) (transport.ClientResponse, error) {
	current, err := s.ensureAccess(ctx, identity, id)
	if err != nil {
		return transport.ClientResponse{}, err
	}
	if current.Status != transport.StatusActive {
		return transport.ClientResponse{}, apperr.Conflict("cancelled clients cannot be edited")
	}
	if req.AssignedTo != nil && !identity.IsManager() {
		return transport.ClientResponse{}, apperr.Forbidden("only managers can reassign clients")
	}

	params := repository.UpdateClientParams{
		Email:          req.Email,
		Product:        sanitize.TextPtr(req.Product),
		Insurer:        sanitize.TextPtr(req.Insurer),
		MonthlyPremium: req.MonthlyPremium,
		AssignedTo:     req.AssignedTo,
	}
	if req.Phone != nil {
		normalized := phone.NormalizeE164(*req.Phone)
		params.Phone = &normalized
	}

	c, err := s.repo.Update(ctx, id, params)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.ClientResponse{}, apperr.Conflict("cancelled clients cannot be edited")
	}
	if err != nil {
		return transport.ClientResponse{}, apperr.Unavailable("clients.Update", err)
	}
	return toResponse(c), nil
}

// Cancel ends the contract. The prospect history is left as is.
func (s *Service) Cancel(ctx context.Context, identity httpkit.Identity, id uuid.UUID) (transport.ClientResponse, error) {
	if !identity.IsManager() {
		return transport.ClientResponse{}, apperr.Forbidden("only managers can cancel contracts")
	}
	current, err := s.ensureAccess(ctx, identity, id)
	if err != nil {
		return transport.ClientResponse{}, err
	}
	if current.Status == transport.StatusCancelled {
		return transport.ClientResponse{}, apperr.Conflict("contract already cancelled")
	}

	c, err := s.repo.Cancel(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.ClientResponse{}, apperr.Conflict("contract already cancelled")
	}
	if err != nil {
		return transport.ClientResponse{}, apperr.Unavailable("clients.Cancel", err)
	}
	return toResponse(c), nil
}

func (s *Service) List(ctx context.Context, identity httpkit.Identity, req transport.ListClientsRequest) (transport.ClientListResponse, error) {
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
		Search:      sanitize.Text(req.Search),
		Offset:      (req.Page - 1) * req.PageSize,
		Limit:       req.PageSize,
	}
	if req.Status != "" {
		params.Status = &req.Status
	}

	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.ClientListResponse{}, apperr.Unavailable("clients.List", err)
	}

	resp := make([]transport.ClientResponse, len(items))
	for i, c := range items {
		resp[i] = toResponse(c)
	}
	return transport.ClientListResponse{
		Items:      resp,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: (total + req.PageSize - 1) / req.PageSize,
	}, nil
}

func (s *Service) ensureAccess(ctx context.Context, identity httpkit.Identity, id uuid.UUID) (repository.Client, error) {
	c, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Client{}, apperr.NotFound(msgClientNotFound)
	}
	if err != nil {
		return repository.Client{}, apperr.Unavailable("clients.Get", err)
	}
	if scope := identity.ScopeUserID(); scope != nil && (c.AssignedTo == nil || *c.AssignedTo != *scope) {
		return repository.Client{}, apperr.NotFound(msgClientNotFound)
	}
	return c, nil
}

func toResponse(c repository.Client) transport.ClientResponse {
	return transport.ClientResponse{
		ID:             c.ID,
		ProspectID:     c.ProspectID,
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		Email:          c.Email,
		Phone:          c.Phone,
		ContractNumber: c.ContractNumber,
		Product:        c.Product,
		Insurer:        c.Insurer,
		MonthlyPremium: c.MonthlyPremium,
		AnnualPremium:  c.MonthlyPremium * 12,
		StartDate:      c.StartDate,
		AssignedTo:     c.AssignedTo,
		Status:         c.Status,
		CancelledAt:    c.CancelledAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}
