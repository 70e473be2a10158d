// Package appointments provides the appointments domain module.
package appointments

import (
	"premunia_crm_backend/internal/appointments/handler"
	"premunia_crm_backend/internal/appointments/repository"
	"premunia_crm_backend/internal/appointments/service"
	"premunia_crm_backend/internal/events"
	apphttp "premunia_crm_backend/internal/http"
	"premunia_crm_backend/internal/scheduler"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the appointments domain module
type Module struct {
	handler *handler.Handler
	Service *service.Service
	repo    *repository.Repository
}

// NewModule creates a new appointments module with all dependencies wired
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, reminders scheduler.ReminderScheduler, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, eventBus, reminders, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		Service: svc,
		repo:    repo,
	}
}

// Repository exposes the store to the reminder worker.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "appointments"
}

// RegisterRoutes registers the module's routes under /api/appointments
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	appointments := ctx.Protected.Group("/appointments")
	m.handler.RegisterRoutes(appointments)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
