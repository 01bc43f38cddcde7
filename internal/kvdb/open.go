// Package kvdb implements the key-value stores indexes persist into.
package kvdb

import (
	"context"
	"fmt"

	"github.com/goran-ethernal/IndexSync/internal/common"
	"github.com/goran-ethernal/IndexSync/internal/logger"
	"github.com/goran-ethernal/IndexSync/pkg/config"
	"github.com/goran-ethernal/IndexSync/pkg/kvdb"
)

// Open returns the store selected by cfg.Engine.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (kvdb.Store, error) {
	log = log.WithComponent(common.ComponentKVDB)

	switch cfg.Engine {
	case config.EngineSQLite, "":
		return OpenSQLite(ctx, cfg, log)
	case config.EngineBadger:
		return OpenBadger(cfg.Path, cfg.SyncWrites, log)
	case config.EngineMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown db engine %q", cfg.Engine)
	}
}
