package moderation

import "time"

// Config holds the moderation settings read from the environment.
type Config struct {
	LockTTL           time.Duration `env:"MODERATION_LOCK_TTL" envDefault:"30s"`
	ProvidersFile     string        `env:"MODERATION_PROVIDERS_FILE" envDefault:"providers.yaml"`
	Queue             string        `env:"MODERATION_QUEUE" envDefault:"moderation"`
	IdentifierURL     string        `env:"MODERATION_IDENTIFIER_URL"`
	IdentifierSecret  string        `env:"MODERATION_IDENTIFIER_SECRET"`
	IdentifierTimeout time.Duration `env:"MODERATION_IDENTIFIER_TIMEOUT" envDefault:"10s"`
	SearchIndex       string        `env:"MODERATION_SEARCH_INDEX" envDefault:"reviewables"`
}
