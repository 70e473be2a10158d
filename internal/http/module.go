// Package http holds the composition contract between the CRM domain modules
// and the gin router.
package http

import (
	"premunia_crm_backend/internal/events"
	"premunia_crm_backend/platform/config"
	"premunia_crm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module is a CRM area (prospects, tasks, campaigns, ...) that serves routes.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// EventSubscriber is implemented by modules that react to domain events, such
// as notifications on assignment or campaign triggers on prospect intake.
type EventSubscriber interface {
	RegisterHandlers(bus events.Bus)
}

// RouterContext carries the route groups a module mounts onto. Sales agents
// reach Protected; Manager admits managers and admins; Admin is admin only.
type RouterContext struct {
	Engine          *gin.Engine
	V1              *gin.RouterGroup
	Protected       *gin.RouterGroup
	Manager         *gin.RouterGroup
	Admin           *gin.RouterGroup
	Config          config.JWTConfig
	AuthMiddleware  gin.HandlerFunc
	AuthRateLimiter *httpkit.AuthRateLimiter
}
