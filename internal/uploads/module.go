// Package uploads stores documents attached to prospect files.
package uploads

import (
	apphttp "premunia_crm_backend/internal/http"
	"premunia_crm_backend/internal/uploads/handler"
	"premunia_crm_backend/internal/uploads/service"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/validator"
)

type Module struct {
	handler *handler.Handler
}

// NewModule falls back to a disabled store when store is nil.
func NewModule(store service.Storage, bucket string, val *validator.Validator, log *logger.Logger) *Module {
	if store == nil {
		store = service.Disabled{}
	}
	return &Module{handler: handler.New(service.New(store, bucket, log), val)}
}

func (m *Module) Name() string {
	return "uploads"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/uploads"))
}

var _ apphttp.Module = (*Module)(nil)
