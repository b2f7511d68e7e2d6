package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
)

// Open builds the store selected by cfg.Driver. The "none" driver returns a
// nil store and no error.
func Open(ctx context.Context, cfg domain.AuditConfig, logger *logrus.Logger) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "none":
		logger.Info("Run audit store disabled")
		return nil, nil
	case "sqlite":
		store, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite audit store: %w", err)
		}
		logger.WithField("path", cfg.SQLitePath).Info("Run audit store ready")
		return store, nil
	case "postgres":
		if cfg.AutoMigrate {
			if err := migrateSchema(ctx, cfg.PostgresURL, logger); err != nil {
				return nil, err
			}
		}
		store, err := NewPostgresStoreFromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("opening postgres audit store: %w", err)
		}
		logger.Info("Run audit store ready")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown audit driver %q", cfg.Driver)
	}
}
