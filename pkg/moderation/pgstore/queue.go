package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/reviewkit/pkg/pg"
	"github.com/dmitrymomot/reviewkit/pkg/queue"
)

// TaskStore implements queue.EnqueuerRepository and queue.WorkerRepository.
// Claiming uses FOR UPDATE SKIP LOCKED so several workers can share a queue,
// and honours per-key ordering the same way queue.MemoryStorage does.
type TaskStore struct {
	pool    *pgxpool.Pool
	backoff time.Duration
}

// NewTaskStore returns a task store on pool. Failed tasks are rescheduled
// after backoff multiplied by their retry count.
func NewTaskStore(pool *pgxpool.Pool, backoff time.Duration) *TaskStore {
	return &TaskStore{pool: pool, backoff: backoff}
}

// CreateTask inserts the task and assigns its Seq.
func (s *TaskStore) CreateTask(ctx context.Context, task *queue.Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO queue_tasks (id, queue, task_name, ordering_key, payload, status, priority,
			retry_count, max_retries, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING seq`,
		task.ID, task.Queue, task.TaskName, task.OrderingKey, task.Payload, string(task.Status),
		int16(task.Priority), int16(task.RetryCount), int16(task.MaxRetries), task.ScheduledAt, task.CreatedAt,
	).Scan(&task.Seq)
	if pg.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", queue.ErrTaskExists, task.ID)
	}
	return err
}

// ClaimTask locks the best deliverable task. A keyed task is deliverable only
// when no older task with the same key is still pending, processing or failed.
// Expired locks are treated as pending.
func (s *TaskStore) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*queue.Task, error) {
	var task *queue.Task
	err := pg.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			WITH candidate AS (
				SELECT t.id
				FROM queue_tasks t
				WHERE t.queue = ANY($1)
				  AND t.scheduled_at <= NOW()
				  AND (t.status = 'pending'
				       OR (t.status = 'processing' AND t.locked_until < NOW()))
				  AND (t.ordering_key = '' OR NOT EXISTS (
				       SELECT 1 FROM queue_tasks o
				       WHERE o.ordering_key = t.ordering_key
				         AND o.seq < t.seq
				         AND o.status IN ('pending', 'processing', 'failed')))
				ORDER BY t.priority DESC, t.seq
				LIMIT 1
				FOR UPDATE SKIP LOCKED
			)
			UPDATE queue_tasks q
			SET status = 'processing',
			    locked_until = NOW() + make_interval(secs => $2),
			    locked_by = $3
			FROM candidate
			WHERE q.id = candidate.id
			RETURNING q.id, q.seq, q.queue, q.task_name, q.ordering_key, q.payload, q.status,
			          q.priority, q.retry_count, q.max_retries, q.scheduled_at, q.locked_until,
			          q.locked_by, q.created_at`,
			queues, lockDuration.Seconds(), workerID)

		t, err := scanTask(row)
		if err != nil {
			return err
		}
		task = t
		return nil
	})
	if pg.IsNotFoundError(err) {
		return nil, queue.ErrNoTaskToClaim
	}
	return task, err
}

func scanTask(row pgx.Row) (*queue.Task, error) {
	var (
		t                              queue.Task
		status                         string
		priority, retries, maxRetries int16
	)
	err := row.Scan(&t.ID, &t.Seq, &t.Queue, &t.TaskName, &t.OrderingKey, &t.Payload, &status,
		&priority, &retries, &maxRetries, &t.ScheduledAt, &t.LockedUntil, &t.LockedBy, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = queue.TaskStatus(status)
	t.Priority = queue.Priority(priority)
	t.RetryCount = int8(retries)
	t.MaxRetries = int8(maxRetries)
	return &t, nil
}

// CompleteTask marks a claimed task completed.
func (s *TaskStore) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	return s.updateClaimed(ctx, taskID, `
		UPDATE queue_tasks
		SET status = 'completed', processed_at = NOW(), locked_until = NULL, locked_by = NULL
		WHERE id = $1 AND status = 'processing'`)
}

// FailTask reschedules with a linear backoff, or marks the task failed once
// its retries are used up. Failed tasks still block their ordering key until
// they are moved to the dead letter queue.
func (s *TaskStore) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	return s.updateClaimed(ctx, taskID, `
		UPDATE queue_tasks
		SET retry_count = retry_count + 1,
		    error = $2,
		    locked_until = NULL,
		    locked_by = NULL,
		    status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
		    scheduled_at = CASE WHEN retry_count + 1 >= max_retries THEN scheduled_at
		                        ELSE NOW() + make_interval(secs => $3 * (retry_count + 1)) END
		WHERE id = $1 AND status = 'processing'`,
		errorMsg, s.backoff.Seconds())
}

// ExtendLock pushes the lock of a claimed task forward by duration.
func (s *TaskStore) ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error {
	return s.updateClaimed(ctx, taskID, `
		UPDATE queue_tasks
		SET locked_until = NOW() + make_interval(secs => $2)
		WHERE id = $1 AND status = 'processing'`,
		duration.Seconds())
}

func (s *TaskStore) updateClaimed(ctx context.Context, taskID uuid.UUID, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, append([]any{taskID}, args...)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM queue_tasks WHERE id = $1)`, taskID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", queue.ErrTaskNotFound, taskID)
	}
	return fmt.Errorf("%w: %s", queue.ErrTaskNotClaimed, taskID)
}

// MoveToDLQ copies the task into the dead letter table and deletes it.
func (s *TaskStore) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	return pg.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			WITH moved AS (
				DELETE FROM queue_tasks WHERE id = $1
				RETURNING id, queue, task_name, ordering_key, payload, priority, error, retry_count
			)
			INSERT INTO queue_tasks_dlq (id, task_id, queue, task_name, ordering_key, payload,
				priority, error, retry_count, failed_at, created_at)
			SELECT $2, id, queue, task_name, ordering_key, payload,
				priority, COALESCE(error, ''), retry_count, NOW(), NOW()
			FROM moved`,
			taskID, uuid.New())
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", queue.ErrTaskNotFound, taskID)
		}
		return nil
	})
}

// Purge deletes completed tasks processed before the cutoff.
func (s *TaskStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM queue_tasks WHERE status = 'completed' AND processed_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Waiting counts tasks that are not completed yet, including tasks scheduled
// for a later retry.
func (s *TaskStore) Waiting(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM queue_tasks WHERE status IN ('pending', 'processing')`).Scan(&n)
	return n, err
}
