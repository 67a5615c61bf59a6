package queue

import "time"

// Config holds the worker settings loaded from the environment.
type Config struct {
	PollInterval       time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"5s"`
	LockTimeout        time.Duration `env:"QUEUE_LOCK_TIMEOUT" envDefault:"5m"`
	ShutdownTimeout    time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	MaxConcurrentTasks int           `env:"QUEUE_MAX_CONCURRENT_TASKS" envDefault:"10"`
	// RetryBackoff is multiplied by the retry count to schedule a failed task.
	RetryBackoff time.Duration `env:"QUEUE_RETRY_BACKOFF" envDefault:"30s"`
	// Completed tasks older than PurgeAfter are deleted every PurgeInterval.
	// A zero PurgeInterval disables purging.
	PurgeAfter    time.Duration `env:"QUEUE_PURGE_AFTER" envDefault:"168h"`
	PurgeInterval time.Duration `env:"QUEUE_PURGE_INTERVAL" envDefault:"1h"`
}

// WorkerOptions translates the configuration into worker options.
func (c Config) WorkerOptions(queues ...string) []WorkerOption {
	opts := []WorkerOption{
		WithPullInterval(c.PollInterval),
		WithLockTimeout(c.LockTimeout),
		WithMaxConcurrentTasks(c.MaxConcurrentTasks),
	}
	if len(queues) > 0 {
		opts = append(opts, WithQueues(queues...))
	}
	return opts
}
