package cli

import (
	"context"
	"fmt"
	"log/slog"

	"greenctf/internal/platform/config"
	"greenctf/internal/platform/database"
	"greenctf/internal/platform/logger"
)

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	log, err := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(log)
	return log, nil
}

// openDatabase connects and applies pending migrations so every command
// sees the current schema.
func openDatabase(ctx context.Context, cfg *config.Config, log *slog.Logger) (*database.Pool, error) {
	pool, err := database.Open(ctx, cfg.DatabaseSettings())
	if err != nil {
		return nil, err
	}
	applied, err := database.Migrate(ctx, pool)
	if err != nil {
		pool.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if len(applied) > 0 {
		log.InfoContext(ctx, "applied migrations", "driver", pool.Driver(), "versions", applied)
	}
	return pool, nil
}
