package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	Environment   string `envconfig:"ENV" default:"development"`
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"postgres"`
	DBDSN         string `envconfig:"DB_DSN"`
	// MigrationsDir overrides the migrations embedded in the binary.
	MigrationsDir string `envconfig:"MIGRATIONS_DIR"`

	MaxActiveBookings       int     `envconfig:"MAX_ACTIVE_BOOKINGS" default:"3"`
	CancellationPenaltyRate float64 `envconfig:"CANCELLATION_PENALTY_RATE" default:"0.10"`

	MaxSyncAttempts   int           `envconfig:"MAX_SYNC_ATTEMPTS" default:"5"`
	SyncRetryInterval time.Duration `envconfig:"SYNC_RETRY_INTERVAL" default:"1m"`
	SyncBatchSize     int           `envconfig:"SYNC_BATCH_SIZE" default:"100"`

	HealthCheckInterval time.Duration `envconfig:"HEALTH_CHECK_INTERVAL" default:"30s"`
	// MetricsAddr enables the Prometheus listener when set, e.g. ":9090".
	MetricsAddr string `envconfig:"METRICS_ADDR"`
}

// Load reads .env when present, then the environment, and validates the result.
func Load() (*Config, error) {
	// .env is optional, the process environment wins over it
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	} else {
		log.Println("Loaded configuration from .env file")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects combinations the process cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DBDSN == "" {
			errs = append(errs, errors.New("DB_DSN is required for the postgres storage driver"))
		}
	case StorageDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageDriverPostgres, StorageDriverMemory, c.StorageDriver))
	}

	if c.MaxActiveBookings < 1 {
		errs = append(errs, fmt.Errorf("MAX_ACTIVE_BOOKINGS must be positive, got %d", c.MaxActiveBookings))
	}
	if c.CancellationPenaltyRate < 0 || c.CancellationPenaltyRate > 1 {
		errs = append(errs, fmt.Errorf("CANCELLATION_PENALTY_RATE must be within [0, 1], got %v", c.CancellationPenaltyRate))
	}
	if c.MaxSyncAttempts < 1 {
		errs = append(errs, fmt.Errorf("MAX_SYNC_ATTEMPTS must be positive, got %d", c.MaxSyncAttempts))
	}
	if c.SyncRetryInterval <= 0 {
		errs = append(errs, fmt.Errorf("SYNC_RETRY_INTERVAL must be positive, got %s", c.SyncRetryInterval))
	}
	if c.SyncBatchSize < 1 {
		errs = append(errs, fmt.Errorf("SYNC_BATCH_SIZE must be positive, got %d", c.SyncBatchSize))
	}
	if c.HealthCheckInterval <= 0 {
		errs = append(errs, fmt.Errorf("HEALTH_CHECK_INTERVAL must be positive, got %s", c.HealthCheckInterval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// IsProduction reports whether ENV is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
