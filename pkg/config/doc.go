// Package config loads typed configuration from environment variables.
//
// Structs declare their variables with caarlos0/env tags; Load parses them
// once per type and caches the result. A .env file in the working directory
// is read on first use through godotenv, and LoadEnvFiles lets a command
// point at other files first.
//
//	type Config struct {
//		LockTTL time.Duration `env:"MODERATION_LOCK_TTL" envDefault:"30s"`
//	}
//
//	var cfg Config
//	config.MustLoad(&cfg)
package config
