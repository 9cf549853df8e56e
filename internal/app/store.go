package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/statuspulse/internal/config"
	"github.com/hamed0406/statuspulse/internal/repo"
	"github.com/hamed0406/statuspulse/internal/repo/memory"
	"github.com/hamed0406/statuspulse/internal/repo/postgres"
	"github.com/hamed0406/statuspulse/internal/repo/sqlite"
)

// OpenStore builds the store selected by cfg.StoreDriver.
func OpenStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Warn("memory_store_in_use", zap.String("note", "data is lost on restart"))
		return memory.New(), nil
	case config.DriverSQLite, "":
		return sqlite.New(ctx, cfg.SQLitePath, logger.Named("sqlite"))
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.DatabaseURL, logger.Named("postgres"))
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
