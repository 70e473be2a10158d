// Package clients holds signed contracts and prospect conversion.
package clients

import (
	"premunia_crm_backend/internal/clients/handler"
	"premunia_crm_backend/internal/clients/repository"
	"premunia_crm_backend/internal/clients/service"
	"premunia_crm_backend/internal/events"
	apphttp "premunia_crm_backend/internal/http"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), eventBus, log)
	return &Module{handler: handler.New(svc, val)}
}

func (m *Module) Name() string {
	return "clients"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/clients"))
	m.handler.RegisterConvert(ctx.Protected)
}

var _ apphttp.Module = (*Module)(nil)
