package queue

import (
	"log/slog"
	"time"
)

// EnqueuerOption changes the defaults applied to every task of an Enqueuer.
type EnqueuerOption func(*enqueueOptions)

// EnqueueOption changes a single Enqueue call.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	queue       string
	taskName    string
	orderingKey string
	priority    Priority
	maxRetries  int8
	delay       time.Duration
	scheduledAt time.Time
}

func (o enqueueOptions) validate() error {
	if !o.priority.Valid() {
		return ErrInvalidPriority
	}
	if o.maxRetries < 0 || o.maxRetries > 10 {
		return ErrInvalidMaxRetries
	}
	return nil
}

// runAt resolves the schedule; an explicit time wins over a delay.
func (o enqueueOptions) runAt(now time.Time) time.Time {
	switch {
	case !o.scheduledAt.IsZero():
		return o.scheduledAt
	case o.delay > 0:
		return now.Add(o.delay)
	default:
		return now
	}
}

// WithDefaultQueue sets the queue used when Enqueue gets no WithQueue.
func WithDefaultQueue(queue string) EnqueuerOption {
	return func(o *enqueueOptions) {
		if queue != "" {
			o.queue = queue
		}
	}
}

// WithDefaultPriority sets the default priority. Invalid values are ignored.
func WithDefaultPriority(priority Priority) EnqueuerOption {
	return func(o *enqueueOptions) {
		if priority.Valid() {
			o.priority = priority
		}
	}
}

// WithQueue sets the queue for the task.
func WithQueue(queue string) EnqueueOption {
	return func(o *enqueueOptions) {
		if queue != "" {
			o.queue = queue
		}
	}
}

// WithPriority overrides the priority; values outside 0..100 fail Enqueue.
func WithPriority(priority Priority) EnqueueOption {
	return func(o *enqueueOptions) { o.priority = priority }
}

// WithMaxRetries sets how many times a failed task is retried before it is
// dead-lettered. Values outside 0..10 fail Enqueue.
func WithMaxRetries(n int8) EnqueueOption {
	return func(o *enqueueOptions) { o.maxRetries = n }
}

// WithDelay makes the task claimable after d. WithScheduledAt wins over it.
func WithDelay(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if d > 0 {
			o.delay = d
		}
	}
}

// WithScheduledAt makes the task claimable at a fixed time.
func WithScheduledAt(at time.Time) EnqueueOption {
	return func(o *enqueueOptions) { o.scheduledAt = at }
}

// WithTaskName routes the task to a handler built with NewNamedTaskHandler.
func WithTaskName(name string) EnqueueOption {
	return func(o *enqueueOptions) {
		if name != "" {
			o.taskName = name
		}
	}
}

// WithOrderingKey serializes delivery of all tasks that share the key.
func WithOrderingKey(key string) EnqueueOption {
	return func(o *enqueueOptions) { o.orderingKey = key }
}

// WorkerOption configures a Worker.
type WorkerOption func(*workerOptions)

type workerOptions struct {
	queues             []string
	pullInterval       time.Duration
	lockTimeout        time.Duration
	maxConcurrentTasks int
	logger             *slog.Logger
}

// WithQueues sets the queues the worker claims from. Default DefaultQueueName.
func WithQueues(queues ...string) WorkerOption {
	return func(o *workerOptions) {
		if len(queues) > 0 {
			o.queues = queues
		}
	}
}

// WithPullInterval is the idle wait between claim attempts.
func WithPullInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pullInterval = d
		}
	}
}

// WithLockTimeout bounds how long a claimed task stays invisible to other workers.
func WithLockTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithMaxConcurrentTasks bounds the handlers running at once. Default 1.
func WithMaxConcurrentTasks(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.maxConcurrentTasks = n
		}
	}
}

// WithWorkerLogger sets the worker logger. Default slog.Default().
func WithWorkerLogger(l *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}
