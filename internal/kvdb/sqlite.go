package kvdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goran-ethernal/IndexSync/internal/common"
	"github.com/goran-ethernal/IndexSync/internal/db"
	"github.com/goran-ethernal/IndexSync/internal/logger"
	"github.com/goran-ethernal/IndexSync/internal/metrics"
	"github.com/goran-ethernal/IndexSync/internal/migrations"
	"github.com/goran-ethernal/IndexSync/pkg/config"
	"github.com/goran-ethernal/IndexSync/pkg/kvdb"
	"github.com/russross/meddler"
)

// kvRow is one row of the kv table.
type kvRow struct {
	Key   []byte `meddler:"key"`
	Value []byte `meddler:"value"`
}

// SQLiteStore keeps keys in a single SQLite table. Writes share the database with
// the background maintainer through its operation lock.
type SQLiteStore struct {
	name        string
	db          *sql.DB
	log         *logger.Logger
	maintenance *db.Maintainer
}

var _ kvdb.Store = (*SQLiteStore)(nil)

// OpenSQLite opens the database described by cfg, migrates it and starts background
// maintenance when cfg.Maintenance is set.
func OpenSQLite(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*SQLiteStore, error) {
	sqlDB, err := db.OpenSQLite(cfg)
	if err != nil {
		return nil, err
	}

	if err := migrations.RunMigrations(log, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", cfg.Path, err)
	}

	maintenance := db.NewMaintainer(cfg.Path, sqlDB, cfg.Maintenance,
		log.WithComponent(common.ComponentMaintenance), nil)
	if err := maintenance.Start(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to start maintenance: %w", err)
	}

	log.Infof("Opened sqlite store at %s (journal mode: %s)", cfg.Path, cfg.JournalMode)

	return &SQLiteStore{
		name:        db.Name(cfg.Path),
		db:          sqlDB,
		log:         log,
		maintenance: maintenance,
	}, nil
}

// observe records the query metrics of one store operation.
func (s *SQLiteStore) observe(operation string, start time.Time, err error) {
	metrics.StoreOpLog(s.name, operation, time.Since(start), err)
}

func (s *SQLiteStore) Get(key []byte) ([]byte, error) {
	unlock := s.maintenance.Lock()
	defer unlock()

	start := time.Now()
	var row kvRow
	err := meddler.QueryRow(s.db, &row, `SELECT key, value FROM kv WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		s.observe("get", start, nil)
		return nil, kvdb.ErrNotFound
	}
	s.observe("get", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to read key %x: %w", key, err)
	}
	return row.Value, nil
}

func (s *SQLiteStore) Has(key []byte) (bool, error) {
	_, err := s.Get(key)
	if errors.Is(err, kvdb.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *SQLiteStore) Put(key, value []byte) error {
	b := newBatch()
	_ = b.Put(key, value)
	return s.Write(b)
}

func (s *SQLiteStore) Delete(key []byte) error {
	b := newBatch()
	_ = b.Delete(key)
	return s.Write(b)
}

func (s *SQLiteStore) NewBatch() kvdb.Batch {
	return newBatch()
}

// Write applies b inside one SQL transaction.
func (s *SQLiteStore) Write(b kvdb.Batch) (err error) {
	ours, err := asBatch(b)
	if err != nil {
		return err
	}

	unlock := s.maintenance.Lock()
	defer unlock()

	start := time.Now()
	defer func() { s.observe("write", start, err) }()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.Errorf("failed to rollback transaction: %v", rbErr)
			}
		}
	}()

	for _, o := range ours.ops {
		if o.delete {
			_, err = tx.Exec(`DELETE FROM kv WHERE key = ?`, o.key)
		} else {
			_, err = tx.Exec(`INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`, o.key, o.value)
		}
		if err != nil {
			return fmt.Errorf("failed to write key %x: %w", o.key, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ForEach loads the matching rows before calling fn, so fn may use the store.
func (s *SQLiteStore) ForEach(prefix []byte, fn kvdb.Iteratee) error {
	rows, err := s.scanPrefix(prefix)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if err := fn(row.Key, row.Value); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) scanPrefix(prefix []byte) ([]*kvRow, error) {
	unlock := s.maintenance.Lock()
	defer unlock()

	var (
		rows []*kvRow
		err  error
	)
	start := time.Now()
	end := prefixEnd(prefix)
	switch {
	case len(prefix) == 0:
		err = meddler.QueryAll(s.db, &rows, `SELECT key, value FROM kv ORDER BY key`)
	case end == nil:
		err = meddler.QueryAll(s.db, &rows, `SELECT key, value FROM kv WHERE key >= ? ORDER BY key`, prefix)
	default:
		err = meddler.QueryAll(s.db, &rows,
			`SELECT key, value FROM kv WHERE key >= ? AND key < ? ORDER BY key`, prefix, end)
	}
	s.observe("scan", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to scan prefix %x: %w", prefix, err)
	}
	return rows, nil
}

func (s *SQLiteStore) Close() error {
	s.maintenance.Stop()
	if stats := s.maintenance.Stats(); stats.Runs > 0 {
		s.log.Debugf("closing %s after %d maintenance runs", s.name, stats.Runs)
	}
	return s.db.Close()
}
