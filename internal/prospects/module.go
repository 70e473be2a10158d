// Package prospects is the prospect bounded context: intake, scoring,
// segmentation, assignment and the sales funnel.
package prospects

import (
	"premunia_crm_backend/internal/comparator"
	"premunia_crm_backend/internal/events"
	apphttp "premunia_crm_backend/internal/http"
	"premunia_crm_backend/internal/prospects/handler"
	"premunia_crm_backend/internal/prospects/repository"
	"premunia_crm_backend/internal/prospects/service"
	"premunia_crm_backend/internal/search"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/metrics"
	"premunia_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the prospects module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule wires the prospects repository, service and handler.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, index search.ProspectIndex, cmp *comparator.Config, m *metrics.Registry, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, eventBus, index, cmp, m, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "prospects"
}

// Service exposes the prospect service to the imports module and the CLI.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository exposes the prospect repository to campaign dispatch and exports.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts the prospect routes on /api/v1/prospects.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/prospects"))
}

var _ apphttp.Module = (*Module)(nil)
