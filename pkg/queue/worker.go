package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/reviewkit/pkg/logger"
)

// WorkerRepository defines the interface for worker operations
type WorkerRepository interface {
	// ClaimTask atomically claims the next deliverable task. It returns
	// ErrNoTaskToClaim when nothing is ready.
	ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error)

	// CompleteTask marks task as completed
	CompleteTask(ctx context.Context, taskID uuid.UUID) error

	// FailTask records the error and increments the retry count. The task is
	// rescheduled while retries remain and marked failed otherwise.
	FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error

	// MoveToDLQ moves task to dead letter queue
	MoveToDLQ(ctx context.Context, taskID uuid.UUID) error

	// ExtendLock extends the lock timeout for long-running tasks
	ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error
}

// Worker claims tasks from a WorkerRepository and runs the registered handlers.
type Worker struct {
	repo     WorkerRepository
	queues   []string
	workerID uuid.UUID
	logger   *slog.Logger

	pullInterval time.Duration
	lockTimeout  time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler
	cancel   context.CancelFunc
	stopping bool

	slots    chan struct{}
	wake     chan struct{}
	inflight sync.WaitGroup
}

// NewWorker returns a stopped worker. Register handlers before Start.
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	o := workerOptions{
		queues:             []string{DefaultQueueName},
		pullInterval:       5 * time.Second,
		lockTimeout:        5 * time.Minute,
		maxConcurrentTasks: 1,
		logger:             slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.New()
	return &Worker{
		repo:         repo,
		queues:       o.queues,
		workerID:     id,
		logger:       o.logger.With(logger.Component("queue.worker"), logger.WorkerID(id.String())),
		pullInterval: o.pullInterval,
		lockTimeout:  o.lockTimeout,
		handlers:     make(map[string]Handler),
		slots:        make(chan struct{}, o.maxConcurrentTasks),
		wake:         make(chan struct{}, 1),
	}, nil
}

// RegisterHandler adds handler, replacing any handler with the same name.
func (w *Worker) RegisterHandler(handler Handler) error {
	if handler == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return ErrWorkerStarted
	}
	w.handlers[handler.Name()] = handler
	return nil
}

// RegisterHandlers registers each handler, stopping at the first error.
func (w *Worker) RegisterHandlers(handlers ...Handler) error {
	for _, h := range handlers {
		if err := w.RegisterHandler(h); err != nil {
			return err
		}
	}
	return nil
}

// Start polls in the background until Stop or until ctx is done.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case w.cancel != nil:
		return ErrWorkerStarted
	case len(w.handlers) == 0:
		return ErrNoHandlers
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.stopping = false
	go w.poll(ctx)

	w.logger.InfoContext(ctx, "worker started",
		slog.Any("queues", w.queues),
		slog.Int("max_concurrent", cap(w.slots)))
	return nil
}

// Stop cancels polling and waits for in-flight tasks to finish.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return ErrWorkerNotStarted
	}
	w.stopping = true
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.logger.Info("worker stopping, waiting for active tasks to complete")
	w.inflight.Wait()
	w.logger.Info("worker stopped")
	return nil
}

// Run adapts the worker to errgroup: it starts, blocks until ctx is done, then stops.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return w.Stop()
	}
}

// poll claims on every tick. A slot that just finished a task wakes the loop
// early, so a backlog drains without waiting for the next tick.
func (w *Worker) poll(ctx context.Context) {
	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.wake:
		}

		select {
		case w.slots <- struct{}{}:
		default:
			w.logger.Debug("all worker slots busy, skipping tick")
			continue
		}
		if !w.track() {
			<-w.slots
			return
		}
		go func() {
			defer w.inflight.Done()
			defer func() { <-w.slots }()

			err := w.claimAndProcess(ctx)
			switch {
			case errors.Is(err, ErrNoTaskToClaim), ctx.Err() != nil:
				return
			case err != nil && !errors.Is(err, ErrHandlerNotFound):
				w.logger.Error("failed to process task", logger.Error(err))
			}
			select {
			case w.wake <- struct{}{}:
			default:
			}
		}()
	}
}

// track registers an in-flight task unless Stop has begun.
func (w *Worker) track() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopping {
		return false
	}
	w.inflight.Add(1)
	return true
}

// ProcessNext claims and runs a single task. It returns ErrNoTaskToClaim when
// the queues are idle, which makes it usable for draining in tests and CLIs.
func (w *Worker) ProcessNext(ctx context.Context) error {
	return w.claimAndProcess(ctx)
}

func (w *Worker) claimAndProcess(ctx context.Context) error {
	task, err := w.repo.ClaimTask(ctx, w.workerID, w.queues, w.lockTimeout)
	if err != nil {
		if errors.Is(err, ErrNoTaskToClaim) {
			return err
		}
		return fmt.Errorf("failed to claim task: %w", err)
	}
	if task == nil {
		return ErrNoTaskToClaim
	}

	w.logger.DebugContext(ctx, "claimed task", taskAttrs(task)...)

	return w.processTask(ctx, task)
}

func (w *Worker) processTask(ctx context.Context, task *Task) (retErr error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in handler: %v", r)
			w.logger.ErrorContext(ctx, "handler panicked",
				append(taskAttrs(task), slog.Any("panic", r))...)
			_ = w.handleTaskFailure(ctx, task, retErr, time.Since(start))
		}
	}()

	w.mu.RLock()
	handler, ok := w.handlers[task.TaskName]
	w.mu.RUnlock()

	if !ok {
		return w.handleMissingHandler(ctx, task)
	}

	// Shutdown lets running handlers finish; only the lock timeout bounds them.
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.lockTimeout)
	defer cancel()

	err := handler.Handle(hctx, task.Payload)
	duration := time.Since(start)

	if err != nil {
		return w.handleTaskFailure(ctx, task, err, duration)
	}
	return w.handleTaskSuccess(ctx, task, duration)
}

// handleMissingHandler sends the task straight to the DLQ. Retrying cannot
// help until a handler is deployed, after which the entry can be requeued.
func (w *Worker) handleMissingHandler(ctx context.Context, task *Task) error {
	w.logger.ErrorContext(ctx, "no handler registered for task", taskAttrs(task)...)

	ctx = context.WithoutCancel(ctx)
	errorMsg := "no handler registered for task type: " + task.TaskName
	if err := w.repo.FailTask(ctx, task.ID, errorMsg); err != nil {
		return fmt.Errorf("failed to mark task %s as failed: %w", task.ID, err)
	}
	if err := w.repo.MoveToDLQ(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to move task %s to DLQ: %w", task.ID, err)
	}

	return ErrHandlerNotFound
}

// handleTaskFailure records the failure and dead-letters the task once the
// attempt just made was its last one.
func (w *Worker) handleTaskFailure(ctx context.Context, task *Task, execErr error, duration time.Duration) error {
	w.logger.ErrorContext(ctx, "task failed",
		append(taskAttrs(task),
			logger.RetryCount(int(task.RetryCount)),
			slog.Int("max_retries", int(task.MaxRetries)),
			logger.Duration(duration),
			logger.Error(execErr))...)

	ctx = context.WithoutCancel(ctx)
	if err := w.repo.FailTask(ctx, task.ID, execErr.Error()); err != nil {
		return fmt.Errorf("failed to update task %s status to failed: %w", task.ID, err)
	}

	if task.RetryCount+1 < task.MaxRetries {
		return nil
	}

	if err := w.repo.MoveToDLQ(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to move task %s to DLQ after max retries: %w", task.ID, err)
	}
	w.logger.WarnContext(ctx, "task moved to dead letter queue", taskAttrs(task)...)

	return nil
}

func (w *Worker) handleTaskSuccess(ctx context.Context, task *Task, duration time.Duration) error {
	if err := w.repo.CompleteTask(context.WithoutCancel(ctx), task.ID); err != nil {
		return fmt.Errorf("failed to mark task %s as completed: %w", task.ID, err)
	}

	w.logger.InfoContext(ctx, "task completed",
		append(taskAttrs(task), logger.Duration(duration))...)

	return nil
}

// ExtendLockForTask extends the lock of a long-running task.
func (w *Worker) ExtendLockForTask(ctx context.Context, taskID uuid.UUID, extension time.Duration) error {
	return w.repo.ExtendLock(ctx, taskID, extension)
}

// ID returns the identifier the worker claims tasks under.
func (w *Worker) ID() uuid.UUID {
	return w.workerID
}

func taskAttrs(task *Task) []any {
	attrs := []any{
		logger.TaskID(task.ID.String()),
		logger.TaskName(task.TaskName),
		logger.Queue(task.Queue),
	}
	if task.OrderingKey != "" {
		attrs = append(attrs, slog.String("ordering_key", task.OrderingKey))
	}
	return attrs
}
