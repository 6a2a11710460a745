package cmd

import (
	"context"
	"fmt"

	"github.com/namelens/edgegate/internal/config"
	"github.com/namelens/edgegate/internal/core/store"
)

// openStore loads config and opens the migrated libsql store for admin
// commands.
func openStore(ctx context.Context) (*store.Store, *config.Config, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	db, err := openStoreWith(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	return db, cfg, nil
}
