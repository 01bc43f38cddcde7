// Package db holds the SQLite plumbing of the sqlite checkpoint store: connection
// setup, schema migrations and background maintenance.
package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/goran-ethernal/IndexSync/pkg/config"
	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"

// dsn encodes the per-connection settings of cfg. Every connection of the pool gets
// them, unlike a PRAGMA executed once after opening.
func dsn(cfg config.DatabaseConfig) string {
	params := url.Values{}
	params.Set("_txlock", "immediate")
	params.Set("_journal_mode", cfg.JournalMode)
	params.Set("_sync", cfg.Synchronous)
	params.Set("_busy_timeout", fmt.Sprint(cfg.BusyTimeout))
	return "file:" + cfg.Path + "?" + params.Encode()
}

// OpenSQLite opens the database at cfg.Path and sizes its connection pool.
func OpenSQLite(cfg config.DatabaseConfig) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil { //nolint:mnd
		return nil, fmt.Errorf("failed to create directory of %s: %w", cfg.Path, err)
	}

	sqlDB, err := sql.Open(driverName, dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Path, err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConnections)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConnections)

	if _, err := sqlDB.Exec(fmt.Sprintf("PRAGMA cache_size = %d", cfg.CacheSize)); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to set cache size of %s: %w", cfg.Path, err)
	}

	return sqlDB, nil
}

// Name is the label a database file is reported under in metrics.
func Name(path string) string {
	return filepath.Base(path)
}
