package audit

import (
	"context"
	"maps"
	"time"

	"github.com/google/uuid"
)

// Recorder writes container history events.
// It satisfies moderation.EventRecorder.
type Recorder struct {
	storage Storage
	now     func() time.Time
	params  []ParamsExtractor
}

// ParamsExtractor pulls extra event params out of the request context,
// e.g. a request id. It returns ok=false when the value is absent.
type ParamsExtractor func(ctx context.Context) (key string, value any, ok bool)

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock overrides time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithParamsExtractor adds context-derived params to every event.
// Explicit params passed to RecordEvent win over extracted ones.
func WithParamsExtractor(fn ParamsExtractor) Option {
	return func(r *Recorder) {
		if fn != nil {
			r.params = append(r.params, fn)
		}
	}
}

// NewRecorder returns a Recorder writing to storage.
func NewRecorder(storage Storage, opts ...Option) (*Recorder, error) {
	if storage == nil {
		return nil, ErrNilStorage
	}

	r := &Recorder{storage: storage, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RecordEvent appends an event to the container's history.
func (r *Recorder) RecordEvent(ctx context.Context, containerID uuid.UUID, eventType string, params map[string]any, actor uuid.UUID) error {
	event := Event{
		ID:          uuid.New(),
		ContainerID: containerID,
		ActorID:     actor,
		EventType:   eventType,
		CreatedAt:   r.now().UTC(),
	}

	if len(r.params) > 0 || len(params) > 0 {
		event.Params = make(map[string]any, len(params)+len(r.params))
		for _, extract := range r.params {
			if key, value, ok := extract(ctx); ok {
				event.Params[key] = value
			}
		}
		maps.Copy(event.Params, params)
	}

	if err := event.Validate(); err != nil {
		return err
	}
	return r.storage.Store(ctx, event)
}
