package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements the queue repository interfaces in process memory.
// It is meant for tests and single-process development setups.
type MemoryStorage struct {
	mu      sync.Mutex
	tasks   map[uuid.UUID]*Task
	dlq     map[uuid.UUID]*TasksDlq
	nextSeq int64

	// Pending and processing task ids; terminal tasks are not indexed.
	active []uuid.UUID

	lockTicker *time.Ticker
	done       chan struct{}
	closeOnce  sync.Once
}

// NewMemoryStorage creates a new in-memory storage implementation
func NewMemoryStorage() *MemoryStorage {
	ms := &MemoryStorage{
		tasks: make(map[uuid.UUID]*Task),
		dlq:   make(map[uuid.UUID]*TasksDlq),
		done:  make(chan struct{}),
	}

	ms.lockTicker = time.NewTicker(time.Second)
	go ms.lockExpirationManager()

	return ms
}

// Close stops the background lock expiration loop
func (ms *MemoryStorage) Close() error {
	ms.closeOnce.Do(func() {
		close(ms.done)
		ms.lockTicker.Stop()
	})
	return nil
}

// CreateTask implements EnqueuerRepository
func (ms *MemoryStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.tasks[task.ID]; exists {
		return fmt.Errorf("%w: %s", ErrTaskExists, task.ID)
	}

	ms.nextSeq++
	task.Seq = ms.nextSeq

	taskCopy := *task
	ms.tasks[task.ID] = &taskCopy
	ms.active = append(ms.active, task.ID)

	return nil
}

// ClaimTask implements WorkerRepository.
// Highest priority wins, then the lowest Seq. A task is skipped while an older
// task with the same ordering key is still active.
func (ms *MemoryStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()

	// Oldest active seq per ordering key.
	heads := make(map[string]int64)
	for _, id := range ms.active {
		task := ms.tasks[id]
		if task.OrderingKey == "" {
			continue
		}
		if seq, ok := heads[task.OrderingKey]; !ok || task.Seq < seq {
			heads[task.OrderingKey] = task.Seq
		}
	}

	var best *Task
	for _, id := range ms.active {
		task := ms.tasks[id]

		if task.Status != TaskStatusPending {
			continue
		}
		if !slices.Contains(queues, task.Queue) {
			continue
		}
		if task.ScheduledAt.After(now) {
			continue
		}
		if task.OrderingKey != "" && heads[task.OrderingKey] != task.Seq {
			continue
		}

		if best == nil ||
			task.Priority > best.Priority ||
			(task.Priority == best.Priority && task.Seq < best.Seq) {
			best = task
		}
	}

	if best == nil {
		return nil, ErrNoTaskToClaim
	}

	lockUntil := now.Add(lockDuration)
	best.Status = TaskStatusProcessing
	best.LockedUntil = &lockUntil
	best.LockedBy = &workerID

	taskCopy := *best
	return &taskCopy, nil
}

// CompleteTask implements WorkerRepository
func (ms *MemoryStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.claimed(taskID)
	if err != nil {
		return err
	}

	now := time.Now()
	task.Status = TaskStatusCompleted
	task.ProcessedAt = &now
	task.LockedUntil = nil
	task.LockedBy = nil
	ms.deactivate(taskID)

	return nil
}

// FailTask implements WorkerRepository.
// The task goes back to pending with a linear backoff until MaxRetries is reached.
func (ms *MemoryStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.claimed(taskID)
	if err != nil {
		return err
	}

	task.RetryCount++
	task.Error = &errorMsg
	task.LockedUntil = nil
	task.LockedBy = nil

	if task.RetryCount >= task.MaxRetries {
		task.Status = TaskStatusFailed
		return nil
	}

	task.Status = TaskStatusPending
	task.ScheduledAt = time.Now().Add(time.Duration(task.RetryCount) * 30 * time.Second)

	return nil
}

// MoveToDLQ implements WorkerRepository
func (ms *MemoryStorage) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, exists := ms.tasks[taskID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	now := time.Now()
	entry := &TasksDlq{
		ID:          uuid.New(),
		TaskID:      task.ID,
		Queue:       task.Queue,
		TaskName:    task.TaskName,
		OrderingKey: task.OrderingKey,
		Payload:     task.Payload,
		Priority:    task.Priority,
		RetryCount:  task.RetryCount,
		FailedAt:    now,
		CreatedAt:   now,
	}
	if task.Error != nil {
		entry.Error = *task.Error
	}

	ms.dlq[entry.ID] = entry
	ms.deactivate(taskID)
	delete(ms.tasks, taskID)

	return nil
}

// ExtendLock implements WorkerRepository
func (ms *MemoryStorage) ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.claimed(taskID)
	if err != nil {
		return err
	}

	lockUntil := time.Now().Add(duration)
	task.LockedUntil = &lockUntil

	return nil
}

// Tasks returns copies of every stored task ordered by Seq.
func (ms *MemoryStorage) Tasks() []Task {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	out := make([]Task, 0, len(ms.tasks))
	for _, task := range ms.tasks {
		out = append(out, *task)
	}
	slices.SortFunc(out, func(a, b Task) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	return out
}

// DeadLetters returns copies of the dead letter entries.
func (ms *MemoryStorage) DeadLetters() []TasksDlq {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	out := make([]TasksDlq, 0, len(ms.dlq))
	for _, entry := range ms.dlq {
		out = append(out, *entry)
	}
	return out
}

func (ms *MemoryStorage) claimed(taskID uuid.UUID) (*Task, error) {
	task, exists := ms.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if task.Status != TaskStatusProcessing {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotClaimed, taskID)
	}
	return task, nil
}

func (ms *MemoryStorage) deactivate(taskID uuid.UUID) {
	ms.active = slices.DeleteFunc(ms.active, func(id uuid.UUID) bool {
		return id == taskID
	})
}

// lockExpirationManager returns tasks held by crashed workers to pending.
func (ms *MemoryStorage) lockExpirationManager() {
	for {
		select {
		case <-ms.lockTicker.C:
			ms.expireLocks()
		case <-ms.done:
			return
		}
	}
}

func (ms *MemoryStorage) expireLocks() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	for _, id := range ms.active {
		task := ms.tasks[id]
		if task.Status == TaskStatusProcessing && task.LockedUntil != nil && task.LockedUntil.Before(now) {
			task.Status = TaskStatusPending
			task.LockedUntil = nil
			task.LockedBy = nil
		}
	}
}
