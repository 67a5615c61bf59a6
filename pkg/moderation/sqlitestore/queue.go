package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/dmitrymomot/reviewkit/pkg/queue"
)

// TaskStore implements queue.EnqueuerRepository and queue.WorkerRepository on
// the same database file as the moderation store, so tasks deferred after a
// failure survive a restart. Writes share the store's writer slot.
type TaskStore struct {
	store   *Store
	backoff time.Duration
}

// NewTaskStore returns a task store on s. Failed tasks are rescheduled after
// backoff multiplied by their retry count.
func NewTaskStore(s *Store, backoff time.Duration) *TaskStore {
	return &TaskStore{store: s, backoff: backoff}
}

func nanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// CreateTask inserts the task and assigns its Seq.
func (s *TaskStore) CreateTask(ctx context.Context, task *queue.Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}
	release, err := s.store.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO queue_tasks (id, queue, task_name, ordering_key, payload, status, priority,
			retry_count, max_retries, scheduled_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID.String(), task.Queue, task.TaskName, task.OrderingKey, task.Payload, string(task.Status),
		int(task.Priority), int(task.RetryCount), int(task.MaxRetries), nanos(task.ScheduledAt), nanos(task.CreatedAt))
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%w: %s", queue.ErrTaskExists, task.ID)
		}
		return err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return err
	}
	task.Seq = seq
	return nil
}

// ClaimTask locks the best deliverable task. A keyed task is deliverable only
// when no older task with the same key is still pending, processing or failed.
// Expired locks are treated as pending.
func (s *TaskStore) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*queue.Task, error) {
	if len(queues) == 0 {
		return nil, queue.ErrNoTaskToClaim
	}
	release, err := s.store.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	args := make([]any, 0, len(queues)+2)
	for _, q := range queues {
		args = append(args, q)
	}
	args = append(args, nanos(now), nanos(now))

	row := tx.QueryRowContext(ctx, `
		SELECT t.id
		FROM queue_tasks t
		WHERE t.queue IN (`+placeholders(len(queues))+`)
		  AND t.scheduled_at <= ?
		  AND (t.status = 'pending'
		       OR (t.status = 'processing' AND t.locked_until < ?))
		  AND (t.ordering_key = '' OR NOT EXISTS (
		       SELECT 1 FROM queue_tasks o
		       WHERE o.ordering_key = t.ordering_key
		         AND o.seq < t.seq
		         AND o.status IN ('pending', 'processing', 'failed')))
		ORDER BY t.priority DESC, t.seq
		LIMIT 1`, args...)

	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, queue.ErrNoTaskToClaim
		}
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE queue_tasks SET status = 'processing', locked_until = ?, locked_by = ?
		WHERE id = ?`,
		nanos(now.Add(lockDuration)), workerID.String(), id); err != nil {
		return nil, err
	}

	task, err := scanTask(tx.QueryRowContext(ctx, `
		SELECT id, seq, queue, task_name, ordering_key, payload, status, priority, retry_count,
		       max_retries, scheduled_at, locked_until, locked_by, created_at
		FROM queue_tasks WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return task, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func scanTask(row *sql.Row) (*queue.Task, error) {
	var (
		t                              queue.Task
		id, status                     string
		priority, retries, maxRetries int
		scheduledAt, createdAt         int64
		lockedUntil                    sql.NullInt64
		lockedBy                       sql.NullString
	)
	err := row.Scan(&id, &t.Seq, &t.Queue, &t.TaskName, &t.OrderingKey, &t.Payload, &status,
		&priority, &retries, &maxRetries, &scheduledAt, &lockedUntil, &lockedBy, &createdAt)
	if err != nil {
		return nil, err
	}
	if t.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	t.Status = queue.TaskStatus(status)
	t.Priority = queue.Priority(priority)
	t.RetryCount = int8(retries)
	t.MaxRetries = int8(maxRetries)
	t.ScheduledAt = fromNanos(scheduledAt)
	t.CreatedAt = fromNanos(createdAt)
	if lockedUntil.Valid {
		until := fromNanos(lockedUntil.Int64)
		t.LockedUntil = &until
	}
	if lockedBy.Valid {
		by, err := uuid.Parse(lockedBy.String)
		if err != nil {
			return nil, err
		}
		t.LockedBy = &by
	}
	return &t, nil
}

// CompleteTask marks a claimed task completed.
func (s *TaskStore) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	return s.updateClaimed(ctx, taskID, `
		UPDATE queue_tasks
		SET status = 'completed', processed_at = ?, locked_until = NULL, locked_by = NULL
		WHERE id = ? AND status = 'processing'`,
		nanos(time.Now()))
}

// FailTask reschedules with a linear backoff, or marks the task failed once
// its retries are used up.
func (s *TaskStore) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	now := nanos(time.Now())
	return s.updateClaimed(ctx, taskID, `
		UPDATE queue_tasks
		SET retry_count = retry_count + 1,
		    error = ?,
		    locked_until = NULL,
		    locked_by = NULL,
		    status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
		    scheduled_at = CASE WHEN retry_count + 1 >= max_retries THEN scheduled_at
		                        ELSE ? + ? * (retry_count + 1) END
		WHERE id = ? AND status = 'processing'`,
		errorMsg, now, s.backoff.Nanoseconds())
}

// ExtendLock pushes the lock of a claimed task forward by duration.
func (s *TaskStore) ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error {
	return s.updateClaimed(ctx, taskID, `
		UPDATE queue_tasks SET locked_until = ?
		WHERE id = ? AND status = 'processing'`,
		nanos(time.Now().Add(duration)))
}

// updateClaimed runs query with args followed by the task id and maps a
// no-op update to ErrTaskNotFound or ErrTaskNotClaimed.
func (s *TaskStore) updateClaimed(ctx context.Context, taskID uuid.UUID, query string, args ...any) error {
	release, err := s.store.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	res, err := s.store.db.ExecContext(ctx, query, append(args, taskID.String())...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n > 0 {
		return nil
	}

	var exists bool
	if err := s.store.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM queue_tasks WHERE id = ?)`, taskID.String()).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", queue.ErrTaskNotFound, taskID)
	}
	return fmt.Errorf("%w: %s", queue.ErrTaskNotClaimed, taskID)
}

// MoveToDLQ copies the task into the dead letter table and deletes it.
func (s *TaskStore) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	release, err := s.store.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := nanos(time.Now())
	res, err := tx.ExecContext(ctx, `
		INSERT INTO queue_tasks_dlq (id, task_id, queue, task_name, ordering_key, payload,
			priority, error, retry_count, failed_at, created_at)
		SELECT ?, id, queue, task_name, ordering_key, payload,
			priority, COALESCE(error, ''), retry_count, ?, ?
		FROM queue_tasks WHERE id = ?`,
		uuid.New().String(), now, now, taskID.String())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("%w: %s", queue.ErrTaskNotFound, taskID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM queue_tasks WHERE id = ?`, taskID.String()); err != nil {
		return err
	}
	return tx.Commit()
}

// Purge deletes completed tasks processed before the cutoff.
func (s *TaskStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	release, err := s.store.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	res, err := s.store.db.ExecContext(ctx,
		`DELETE FROM queue_tasks WHERE status = 'completed' AND processed_at < ?`, nanos(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Waiting counts tasks that are not completed yet, including tasks scheduled
// for a later retry.
func (s *TaskStore) Waiting(ctx context.Context) (int, error) {
	var n int
	err := s.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queue_tasks WHERE status IN ('pending', 'processing')`).Scan(&n)
	return n, err
}
