// Package database persists users, fall events and image records.
//
// Two drivers implement Store: MongoStore for deployments and SQLiteStore for
// local development and tests. Open picks one from configuration.
package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"caidasapi/internal/config"
)

// Open connects to the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		return OpenMongo(ctx, MongoOptions{
			URI:            cfg.URI,
			Database:       cfg.Name,
			ConnectTimeout: cfg.ConnectTimeout,
			Timeout:        cfg.Timeout,
		}, logger)
	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		return OpenSQLite(ctx, cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
