// Package auth provides the authentication bounded context module.
package auth

import (
	"premunia_crm_backend/internal/auth/adapter"
	"premunia_crm_backend/internal/auth/handler"
	"premunia_crm_backend/internal/auth/repository"
	"premunia_crm_backend/internal/auth/service"
	"premunia_crm_backend/internal/events"
	apphttp "premunia_crm_backend/internal/http"
	"premunia_crm_backend/platform/config"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ModuleConfig is the slice of configuration the auth module reads.
type ModuleConfig interface {
	config.AuthServiceConfig
	config.CookieConfig
}

// Module is the auth bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the auth module with all its dependencies.
func NewModule(pool *pgxpool.Pool, cfg ModuleConfig, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, cfg, eventBus, log)

	return &Module{
		handler: handler.New(svc, cfg, val),
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "auth"
}

// Service returns the auth service for the CLI.
func (m *Module) Service() *service.Service {
	return m.service
}

// Directory resolves staff contacts for notifications.
func (m *Module) Directory() *adapter.UserDirectoryAdapter {
	return adapter.NewUserDirectoryAdapter(m.repo)
}

// RegisterRoutes mounts auth routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public auth routes with stricter rate limiting
	authGroup := ctx.V1.Group("/auth")
	authGroup.Use(ctx.AuthRateLimiter.RateLimit())
	m.handler.RegisterRoutes(authGroup)

	ctx.Protected.GET("/users/me", m.handler.GetMe)
	ctx.Protected.PATCH("/users/me", m.handler.UpdateMe)

	ctx.Manager.GET("/users", m.handler.ListUsers)

	ctx.Admin.GET("/users", m.handler.ListUsers)
	ctx.Admin.POST("/users", m.handler.CreateUser)
	ctx.Admin.PATCH("/users/:id/role", m.handler.SetRole)
	ctx.Admin.PATCH("/users/:id/active", m.handler.SetActive)
	ctx.Admin.GET("/diagnostics", m.handler.Diagnostics)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
