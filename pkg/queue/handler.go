package queue

import (
	"context"
	"encoding/json"
)

type (
	// Handler processes the payload of one task name.
	Handler interface {
		Name() string
		Handle(ctx context.Context, payload json.RawMessage) error
	}

	TaskHandlerFunc[T any] func(ctx context.Context, payload T) error
)

// NewTaskHandler registers fn under the qualified type name of T, matching Enqueue's default task name.
func NewTaskHandler[T any](fn TaskHandlerFunc[T]) Handler {
	var payload T
	return &taskHandler[T]{
		name:    taskNameOf(payload),
		handler: fn,
	}
}

// NewNamedTaskHandler registers fn under an explicit task name (see WithTaskName).
func NewNamedTaskHandler[T any](name string, fn TaskHandlerFunc[T]) Handler {
	return &taskHandler[T]{
		name:    name,
		handler: fn,
	}
}

type taskHandler[T any] struct {
	name    string
	handler TaskHandlerFunc[T]
}

func (h *taskHandler[T]) Name() string {
	return h.name
}

func (h *taskHandler[T]) Handle(ctx context.Context, payload json.RawMessage) error {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return err
	}
	return h.handler(ctx, t)
}
