// Package tasks provides the follow-up task module.
package tasks

import (
	"premunia_crm_backend/internal/events"
	apphttp "premunia_crm_backend/internal/http"
	"premunia_crm_backend/internal/scheduler"
	"premunia_crm_backend/internal/tasks/handler"
	"premunia_crm_backend/internal/tasks/repository"
	"premunia_crm_backend/internal/tasks/service"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/metrics"
	"premunia_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(pool *pgxpool.Pool, eventBus events.Bus, reminders scheduler.ReminderScheduler, m *metrics.Registry, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), eventBus, reminders, m, log)
	return &Module{handler: handler.New(svc, val)}
}

func (m *Module) Name() string {
	return "tasks"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/tasks"))
}

var _ apphttp.Module = (*Module)(nil)
