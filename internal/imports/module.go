// Package imports loads prospects in bulk from CSV files.
package imports

import (
	apphttp "premunia_crm_backend/internal/http"
	"premunia_crm_backend/internal/imports/handler"
	"premunia_crm_backend/internal/imports/repository"
	"premunia_crm_backend/internal/imports/service"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(pool *pgxpool.Pool, prospects service.ProspectCreator, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), prospects, val, log)
	return &Module{handler: handler.New(svc, val)}
}

func (m *Module) Name() string {
	return "imports"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/imports"))
}

var _ apphttp.Module = (*Module)(nil)
