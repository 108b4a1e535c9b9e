// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the settings shared by the server and the worker.
type Config struct {
	AppEnv          string        `envconfig:"APP_ENV" default:"development"`
	AppAddr         string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout  time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"30s"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"2"`

	// RedisAddr enables the distributed delivery lock when set.
	RedisAddr       string        `envconfig:"REDIS_ADDR"`
	DeliveryLockTTL time.Duration `envconfig:"DELIVERY_LOCK_TTL" default:"30s"`

	IdempotencyEnabled bool          `envconfig:"IDEMPOTENCY_ENABLED" default:"false"`
	IdempotencyTTL     time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`

	OutboxPollInterval time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"2s"`
	OutboxBatchSize    int           `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL must be provided")
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return nil, errors.New("DB_MIN_CONNS must not exceed DB_MAX_CONNS")
	}
	if cfg.OutboxBatchSize <= 0 {
		return nil, errors.New("OUTBOX_BATCH_SIZE must be positive")
	}
	return &cfg, nil
}

// IsProduction reports whether the process runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// LockEnabled reports whether deliveries take the Redis lock.
func (c *Config) LockEnabled() bool {
	return c.RedisAddr != ""
}
