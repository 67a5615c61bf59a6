package queue

import "errors"

var (
	ErrRepositoryNil     = errors.New("repository cannot be nil")
	ErrPayloadNil        = errors.New("payload cannot be nil")
	ErrInvalidPriority   = errors.New("priority must be between 0 and 100")
	ErrInvalidMaxRetries = errors.New("max retries must be between 0 and 10")
	ErrHandlerNotFound   = errors.New("no handler registered for task type")
	ErrNoHandlers        = errors.New("no task handlers registered")
	ErrWorkerStarted     = errors.New("worker already started")
	ErrWorkerNotStarted  = errors.New("worker not started")
	ErrTaskNotFound      = errors.New("task not found")
	ErrTaskNotClaimed    = errors.New("task is not in processing state")
	ErrTaskExists        = errors.New("task already exists")

	// ErrNoTaskToClaim is returned by ClaimTask when nothing is ready; workers treat it as idle.
	ErrNoTaskToClaim = errors.New("no task to claim")
)
