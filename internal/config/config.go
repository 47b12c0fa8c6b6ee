package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"      validate:"required"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency" validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Auth        AuthConfig        `mapstructure:"auth"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"             validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level"        validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// IdempotencyConfig controls the idempotency record store.
type IdempotencyConfig struct {
	// Backend selects the record store: "memory" or "postgres".
	Backend string `mapstructure:"backend" validate:"required,oneof=memory postgres"`

	// Retention is how long a committed record deduplicates replays.
	// Older records are treated as absent.
	Retention time.Duration `mapstructure:"retention" validate:"required,gt=0"`

	// WaitTimeout bounds how long a request that lost the per-key race
	// waits for the winner's result before failing with a retryable
	// conflict.
	WaitTimeout time.Duration `mapstructure:"wait_timeout" validate:"required,gt=0"`

	// SweepInterval is how often expired records are proactively removed.
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"required,gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
// Only used when the postgres idempotency backend is selected.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// AuthConfig contains authentication settings for the optional bearer-token
// middleware. When JWTSecret is empty the middleware is not installed.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
}
