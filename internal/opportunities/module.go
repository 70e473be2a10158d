// Package opportunities tracks deals through the sales pipeline.
package opportunities

import (
	"premunia_crm_backend/internal/events"
	apphttp "premunia_crm_backend/internal/http"
	"premunia_crm_backend/internal/opportunities/handler"
	"premunia_crm_backend/internal/opportunities/repository"
	"premunia_crm_backend/internal/opportunities/service"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(pool *pgxpool.Pool, prospects service.ProspectReader, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), prospects, eventBus, log)
	return &Module{handler: handler.New(svc, val)}
}

func (m *Module) Name() string {
	return "opportunities"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/opportunities"))
}

var _ apphttp.Module = (*Module)(nil)
