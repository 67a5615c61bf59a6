package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is one entry in a container's history.
type Event struct {
	ID          uuid.UUID      `json:"id"`
	ContainerID uuid.UUID      `json:"container_id"`
	ActorID     uuid.UUID      `json:"actor_id"`
	EventType   string         `json:"event_type"`
	Params      map[string]any `json:"params,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Validate checks if the event has all required fields
func (e *Event) Validate() error {
	if e.ContainerID == uuid.Nil {
		return fmt.Errorf("%w: container id is required", ErrEventValidation)
	}
	if e.EventType == "" {
		return fmt.Errorf("%w: event type is required", ErrEventValidation)
	}
	return nil
}

// Storage persists single events.
type Storage interface {
	Store(ctx context.Context, event Event) error
}

// BatchWriter persists events in bulk. A batch is written atomically.
type BatchWriter interface {
	StoreBatch(ctx context.Context, events []Event) error
}

// Lister reads a container's history oldest first.
type Lister interface {
	Events(ctx context.Context, containerID uuid.UUID) ([]Event, error)
}
