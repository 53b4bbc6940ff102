package app

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/dance_studio/internal/config"
	"github.com/Freeeeeet/dance_studio/internal/repository"
	"github.com/Freeeeeet/dance_studio/internal/repository/memory"
	"github.com/Freeeeeet/dance_studio/internal/repository/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// OpenStore connects the storage engine selected by cfg. For postgres it also applies migrations.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		logger.Warn("Using in-memory storage, data is lost on exit")
		return memory.NewStore(), nil
	case config.StorageDriverPostgres:
		return openPostgres(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("Connected to database")

	migrator, err := NewMigrator(pool, cfg.MigrationsDir, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.Warn("Failed to close migrator", zap.Error(err))
		}
	}()

	if err := migrator.Run(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return postgres.NewStore(pool), nil
}
