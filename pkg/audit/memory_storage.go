package audit

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryStorage keeps events in process. It implements Storage, BatchWriter and Lister.
type MemoryStorage struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryStorage returns an empty storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Store(ctx context.Context, event Event) error {
	return m.StoreBatch(ctx, []Event{event})
}

func (m *MemoryStorage) StoreBatch(_ context.Context, events []Event) error {
	for i := range events {
		if err := events[i].Validate(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range events {
		e.Params = maps.Clone(e.Params)
		m.events = append(m.events, e)
	}
	return nil
}

// Events returns a container's history oldest first.
func (m *MemoryStorage) Events(_ context.Context, containerID uuid.UUID) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Collect(func(yield func(Event) bool) {
		for _, e := range m.events {
			if e.ContainerID == containerID && !yield(e) {
				return
			}
		}
	}), nil
}

// Len returns the number of stored events.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}
