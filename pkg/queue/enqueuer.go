package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxRetries is the retry budget of a task enqueued without WithMaxRetries.
const DefaultMaxRetries int8 = 3

// EnqueuerRepository persists new tasks.
type EnqueuerRepository interface {
	CreateTask(ctx context.Context, task *Task) error
}

// Enqueuer turns payloads into pending tasks.
type Enqueuer struct {
	repo     EnqueuerRepository
	defaults enqueueOptions
	now      func() time.Time
}

// NewEnqueuer returns an Enqueuer writing to repo.
func NewEnqueuer(repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	e := &Enqueuer{
		repo: repo,
		defaults: enqueueOptions{
			queue:      DefaultQueueName,
			priority:   PriorityDefault,
			maxRetries: DefaultMaxRetries,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(&e.defaults)
	}
	return e, nil
}

// Enqueue stores payload as a pending task. Unless WithTaskName is given the
// task is named after the payload type, which is the name NewTaskHandler
// registers under.
func (e *Enqueuer) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) error {
	if payload == nil {
		return ErrPayloadNil
	}

	o := e.defaults
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return err
	}

	task, err := e.newTask(payload, o)
	if err != nil {
		return err
	}
	if err := e.repo.CreateTask(ctx, task); err != nil {
		return fmt.Errorf("failed to create task %q in queue %q: %w", task.TaskName, task.Queue, err)
	}
	return nil
}

func (e *Enqueuer) newTask(payload any, o enqueueOptions) (*Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload of type %T: %w", payload, err)
	}

	name := o.taskName
	if name == "" {
		name = taskNameOf(payload)
	}

	now := e.now()
	return &Task{
		ID:          uuid.New(),
		Queue:       o.queue,
		TaskName:    name,
		OrderingKey: o.orderingKey,
		Payload:     raw,
		Status:      TaskStatusPending,
		Priority:    o.priority,
		MaxRetries:  o.maxRetries,
		ScheduledAt: o.runAt(now),
		CreatedAt:   now,
	}, nil
}

// taskNameOf names a payload by its package-qualified type, ignoring pointers.
func taskNameOf(v any) string {
	return strings.TrimLeft(fmt.Sprintf("%T", v), "*")
}
