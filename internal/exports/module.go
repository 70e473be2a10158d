// Package exports streams CRM data as CSV files.
package exports

import (
	apphttp "premunia_crm_backend/internal/http"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the exports bounded context module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates and initializes the exports module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	return &Module{handler: NewHandler(NewRepository(pool), val, log)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "exports"
}

// RegisterRoutes mounts export routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/exports/prospects.csv", m.handler.ExportProspectsCSV)
}

var _ apphttp.Module = (*Module)(nil)
