package moderation

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/reviewkit/pkg/statemachine"
)

// Option configures an Engine.
type Option func(*Engine)

// WithTable replaces the default transition table.
func WithTable(t *statemachine.Table) Option {
	return func(e *Engine) {
		if t != nil {
			e.table = t
		}
	}
}

// WithNotifier sets where deferred publication tasks go. Without one, no tasks are scheduled.
func WithNotifier(n *Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithEventRecorder sets the container history collaborator.
func WithEventRecorder(r EventRecorder) Option {
	return func(e *Engine) {
		e.events = r
	}
}

// WithLocker replaces the in-process per-item lock, e.g. with a Redis lock
// when several processes fire triggers against the same store.
func WithLocker(l Locker) Option {
	return func(e *Engine) {
		if l != nil {
			e.locker = l
		}
	}
}

// WithClock replaces time.Now for action and publication timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the engine logger. Default slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records transitions, rejections and publication changes.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}
