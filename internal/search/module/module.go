// Package module wires the global search endpoint.
package module

import (
	apphttp "premunia_crm_backend/internal/http"
	"premunia_crm_backend/internal/search"
	"premunia_crm_backend/internal/search/handler"
	"premunia_crm_backend/internal/search/repository"
	"premunia_crm_backend/internal/search/service"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(pool *pgxpool.Pool, index search.ProspectIndex, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, index, log)
	h := handler.New(svc, val)

	return &Module{handler: h}
}

func (m *Module) Name() string {
	return "search"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/search")
	m.handler.RegisterRoutes(group)
}

var _ apphttp.Module = (*Module)(nil)
