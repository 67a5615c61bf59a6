package moderation

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/reviewkit/pkg/logger"
	"github.com/dmitrymomot/reviewkit/pkg/queue"
)

// DefaultQueue is the task queue deferred moderation work goes to.
const DefaultQueue = "moderation"

// Enqueuer is the task queue collaborator. *queue.Enqueuer satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) error
}

// Notifier defers task enqueueing to the commit boundary of a unit of work.
// Tasks scheduled under the same key are enqueued with that ordering key, so
// the queue delivers them in commit order. Enqueue failures after commit are
// logged and counted; the transition itself has already landed.
type Notifier struct {
	enqueuer Enqueuer
	queue    string
	logger   *slog.Logger
	metrics  *Metrics
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithNotifierQueue sets the queue tasks are enqueued on. Default DefaultQueue.
func WithNotifierQueue(name string) NotifierOption {
	return func(n *Notifier) {
		if name != "" {
			n.queue = name
		}
	}
}

// WithNotifierLogger sets where enqueue failures are logged. Default slog.Default().
func WithNotifierLogger(l *slog.Logger) NotifierOption {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithNotifierMetrics counts enqueued and failed tasks.
func WithNotifierMetrics(m *Metrics) NotifierOption {
	return func(n *Notifier) {
		n.metrics = m
	}
}

// NewNotifier returns a Notifier that hands scheduled payloads to enq once
// their unit of work commits.
func NewNotifier(enq Enqueuer, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		enqueuer: enq,
		queue:    DefaultQueue,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Schedule registers payload for enqueueing after uow commits. A nil Notifier drops the work.
func (n *Notifier) Schedule(uow UnitOfWork, key string, payload any) {
	if n == nil || n.enqueuer == nil {
		return
	}
	uow.AfterCommit(func(ctx context.Context) {
		err := n.enqueuer.Enqueue(ctx, payload,
			queue.WithQueue(n.queue),
			queue.WithOrderingKey(key),
		)
		if err != nil {
			n.metrics.deferredFailed()
			n.logger.ErrorContext(ctx, "failed to enqueue deferred moderation task",
				logger.Component("notifier"),
				logger.Queue(n.queue),
				slog.String("ordering_key", key),
				logger.Error(err))
		}
	})
}
