// Package events re-exports the platform event bus so internal modules only
// import internal/events.
package events

import (
	platformevents "premunia_crm_backend/platform/events"
	"premunia_crm_backend/platform/logger"
)

// InMemoryBus is a type alias to the platform InMemoryBus
type InMemoryBus = platformevents.InMemoryBus

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return platformevents.NewInMemoryBus(log)
}
