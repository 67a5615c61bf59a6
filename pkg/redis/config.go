package redis

import "time"

// Config holds the Redis connection and lock settings.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL,required" envDefault:"redis://localhost:6379/0"` // ConnectionURL is the URL of the database. It should be in the format "redis://:password@localhost:6379/0"
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`                      // RetryAttempts is the number of retry attempts to connect to the database.
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`                     // RetryInterval is the interval between retry attempts.
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`                   // ConnectTimeout bounds the whole connection procedure.

	LockPrefix       string        `env:"REDIS_LOCK_PREFIX" envDefault:"reviewkit:lock:"` // LockPrefix namespaces lock keys.
	LockTTL          time.Duration `env:"REDIS_LOCK_TTL" envDefault:"30s"`                // LockTTL expires locks whose holder died.
	LockPollInterval time.Duration `env:"REDIS_LOCK_POLL_INTERVAL" envDefault:"25ms"`     // LockPollInterval is the wait between acquisition attempts.
}
