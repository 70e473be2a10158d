// Package reporting serves dashboard counters and sales analytics.
package reporting

import (
	"time"

	"premunia_crm_backend/internal/events"
	apphttp "premunia_crm_backend/internal/http"
	"premunia_crm_backend/internal/reporting/handler"
	"premunia_crm_backend/internal/reporting/repository"
	"premunia_crm_backend/internal/reporting/service"
	"premunia_crm_backend/platform/cache"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	Service *service.Service
}

func NewModule(
	pool *pgxpool.Pool,
	prospects service.ProspectCounter,
	campaigns service.CampaignStats,
	c cache.Cache,
	ttl time.Duration,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	svc := service.New(repository.New(pool), prospects, campaigns, c, ttl, log)
	return &Module{handler: handler.New(svc, val), Service: svc}
}

// RegisterHandlers drops cached reports on the events that make them stale.
func (m *Module) RegisterHandlers(bus events.Bus) {
	m.Service.RegisterInvalidation(bus)
}

func (m *Module) Name() string {
	return "reporting"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/reports"))
}

var (
	_ apphttp.Module          = (*Module)(nil)
	_ apphttp.EventSubscriber = (*Module)(nil)
)
