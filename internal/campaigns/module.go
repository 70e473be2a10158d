// Package campaigns provides marketing campaigns and their delivery.
package campaigns

import (
	"premunia_crm_backend/internal/campaigns/catalogue"
	"premunia_crm_backend/internal/campaigns/handler"
	"premunia_crm_backend/internal/campaigns/repository"
	"premunia_crm_backend/internal/campaigns/service"
	"premunia_crm_backend/internal/events"
	apphttp "premunia_crm_backend/internal/http"
	"premunia_crm_backend/internal/scheduler"
	"premunia_crm_backend/platform/httpkit"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	repo    *repository.Repository
	Service *service.Service
}

func NewModule(pool *pgxpool.Pool, templates *catalogue.Catalogue, enqueuer scheduler.CampaignEnqueuer, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, templates, enqueuer, eventBus, log)
	return &Module{
		handler: handler.New(svc, val),
		repo:    repo,
		Service: svc,
	}
}

// RegisterHandlers subscribes the template triggers to the event bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	m.Service.RegisterTriggers(bus)
}

// Repository exposes the store to the dispatch worker.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

func (m *Module) Name() string {
	return "campaigns"
}

// RegisterRoutes mounts /api/campaigns. Every staff role may read campaigns;
// the service restricts changes to managers and marketing.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/campaigns")
	group.Use(httpkit.RequireRole(httpkit.RoleAdmin, httpkit.RoleManager, httpkit.RoleMarketing, httpkit.RoleCommercial))
	m.handler.RegisterRoutes(group)
}

var (
	_ apphttp.Module          = (*Module)(nil)
	_ apphttp.EventSubscriber = (*Module)(nil)
)
