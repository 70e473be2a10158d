// Package goals provides sales targets and their progress.
package goals

import (
	"premunia_crm_backend/internal/goals/handler"
	"premunia_crm_backend/internal/goals/repository"
	"premunia_crm_backend/internal/goals/service"
	apphttp "premunia_crm_backend/internal/http"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), log)
	return &Module{handler: handler.New(svc, val)}
}

func (m *Module) Name() string {
	return "goals"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/goals"))
}

var _ apphttp.Module = (*Module)(nil)
