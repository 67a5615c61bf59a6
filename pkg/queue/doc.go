// Package queue provides a repository-agnostic task queue with retries,
// delayed execution, per-key ordering and a dead letter queue.
//
// The package is organised around two components:
//
//   - Enqueuer adds tasks to the queue
//   - Worker claims deliverable tasks and dispatches them to a Handler
//
// Components interact only through the EnqueuerRepository and WorkerRepository
// interfaces. MemoryStorage implements both in process; the pg store in
// pkg/moderation/pgstore implements them on PostgreSQL.
//
// # Ordering
//
// Tasks enqueued with WithOrderingKey are delivered one at a time per key, in
// the order they were created. A task is not claimable while an older task
// with the same key is pending, processing or waiting for a retry. Once the
// older task completes or is moved to the dead letter queue the next one
// becomes claimable.
//
// A worker polls every pull interval. A slot that just ran a task polls again
// immediately, so a backlog drains without waiting for ticks.
//
// # Usage
//
//	type ReviewablePublished struct {
//		ReviewableID uuid.UUID
//	}
//
//	e, err := queue.NewEnqueuer(repo)
//	if err != nil {
//		return err
//	}
//	err = e.Enqueue(ctx, ReviewablePublished{ReviewableID: id},
//		queue.WithQueue("moderation"),
//		queue.WithOrderingKey(id.String()),
//	)
//
//	w, _ := queue.NewWorker(repo, queue.WithQueues("moderation"))
//	_ = w.RegisterHandler(queue.NewTaskHandler(func(ctx context.Context, p ReviewablePublished) error {
//		return index(ctx, p.ReviewableID)
//	}))
//	g.Go(w.Run(ctx))
//
// # Error Handling
//
// Package-level sentinel errors (e.g. ErrInvalidPriority, ErrNoHandlers) signal
// violations of business invariants and can be checked with errors.Is.
package queue
