package opensearch

import "time"

// Config is the cluster connection, loaded with pkg/config.
type Config struct {
	Addresses    []string `env:"OPENSEARCH_ADDRESSES,required"`
	Username     string   `env:"OPENSEARCH_USERNAME,notEmpty"`
	Password     string   `env:"OPENSEARCH_PASSWORD,notEmpty"`
	MaxRetries   int      `env:"OPENSEARCH_MAX_RETRIES" envDefault:"3"`
	DisableRetry bool     `env:"OPENSEARCH_DISABLE_RETRY" envDefault:"false"`

	ReadyAttempts int           `env:"OPENSEARCH_READY_ATTEMPTS" envDefault:"3"`
	ReadyInterval time.Duration `env:"OPENSEARCH_READY_INTERVAL" envDefault:"2s"`
}

// IndexConfig names the index the moderation search indexer writes to.
type IndexConfig struct {
	Index   string `env:"OPENSEARCH_INDEX" envDefault:"reviewables"`
	Refresh bool   `env:"OPENSEARCH_REFRESH" envDefault:"false"` // Refresh makes writes visible immediately; for tests and small installs.
}
