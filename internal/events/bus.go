package events

import (
	platformevents "funnel_backend/platform/events"
	"funnel_backend/platform/logger"
)

// InMemoryBus is a type alias to the platform InMemoryBus
type InMemoryBus = platformevents.InMemoryBus

// NewInMemoryBus creates a new in-memory event bus sized by the dispatch config.
func NewInMemoryBus(log *logger.Logger, workers, queueSize int) *InMemoryBus {
	return platformevents.NewInMemoryBus(log,
		platformevents.WithWorkers(workers),
		platformevents.WithQueueSize(queueSize),
	)
}
