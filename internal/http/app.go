package http

import (
	"context"

	"premunia_crm_backend/internal/events"
	"premunia_crm_backend/platform/config"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/metrics"
)

// RouterConfig is the slice of the CRM configuration the router reads.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker backs /readyz.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is assembled by cmd/api and handed to the router. Metrics is optional.
type App struct {
	Config   RouterConfig
	Logger   *logger.Logger
	Health   HealthChecker
	Metrics  *metrics.Registry
	EventBus events.Bus
	Modules  []Module
}

// SubscribeModules attaches every module that implements EventSubscriber to
// the event bus and returns the names of the subscribed modules.
func (a *App) SubscribeModules() []string {
	if a.EventBus == nil {
		return nil
	}
	var names []string
	for _, m := range a.Modules {
		sub, ok := m.(EventSubscriber)
		if !ok {
			continue
		}
		sub.RegisterHandlers(a.EventBus)
		names = append(names, m.Name())
	}
	if a.Logger != nil && len(names) > 0 {
		a.Logger.Info("modules subscribed to domain events", "modules", names)
	}
	return names
}
