package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/goran-ethernal/IndexSync/internal/common"
	"github.com/goran-ethernal/IndexSync/internal/logger"
	"github.com/goran-ethernal/IndexSync/pkg/config"
	"github.com/lightningnetwork/lnd/clock"
)

// Stats describes the maintenance runs of one database.
type Stats struct {
	Runs      uint64
	LastRun   time.Time
	LastError error
	// Reclaimed is the number of bytes the last run freed on disk.
	Reclaimed int64
}

// Maintainer checkpoints the WAL of one SQLite database and vacuums it on an
// interval. Store operations run under Lock, which maintenance takes exclusively,
// so a run starts only once in-flight reads and batches are done.
type Maintainer struct {
	name   string
	path   string
	db     *sql.DB
	config config.MaintenanceConfig
	log    *logger.Logger
	clock  clock.Clock

	opLock sync.RWMutex

	cancel context.CancelFunc
	wg     sync.WaitGroup

	statsMu sync.Mutex
	stats   Stats
}

// NewMaintainer creates the maintainer of the database at path. A nil cfg never
// runs in the background, and a nil clock selects the wall clock.
func NewMaintainer(
	path string,
	sqlDB *sql.DB,
	cfg *config.MaintenanceConfig,
	log *logger.Logger,
	clk clock.Clock,
) *Maintainer {
	var c config.MaintenanceConfig
	if cfg != nil {
		c = *cfg
	}
	c.ApplyDefaults()

	if clk == nil {
		clk = clock.NewDefaultClock()
	}

	return &Maintainer{
		name:   Name(path),
		path:   path,
		db:     sqlDB,
		config: c,
		log:    log,
		clock:  clk,
	}
}

// Start launches the background worker. It does nothing unless maintenance is enabled.
func (m *Maintainer) Start(ctx context.Context) error {
	if !m.config.Enabled {
		m.log.Debugf("maintenance of %s is disabled", m.name)
		return nil
	}

	ctx, m.cancel = context.WithCancel(ctx)

	if m.config.VacuumOnStartup {
		if err := m.Run(ctx); err != nil {
			m.log.Warnf("startup maintenance of %s failed: %v", m.name, err)
		}
	}

	m.wg.Add(1)
	go m.worker(ctx)

	m.log.Infof("maintenance of %s started - interval: %v, checkpoint mode: %s",
		m.name, m.config.CheckInterval.Duration, m.config.WALCheckpointMode)
	return nil
}

// Stop stops the worker and waits for a run in progress.
func (m *Maintainer) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
}

func (m *Maintainer) worker(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.clock.TickAfter(m.config.CheckInterval.Duration):
			if err := m.Run(ctx); err != nil {
				m.log.Warnf("maintenance of %s failed: %v", m.name, err)
			}
		}
	}
}

// Lock takes the shared operation lock and returns its release.
func (m *Maintainer) Lock() func() {
	m.opLock.RLock()
	return m.opLock.RUnlock
}

// Run checkpoints and vacuums the database while holding the operation lock
// exclusively. Both steps run even if the first fails.
func (m *Maintainer) Run(ctx context.Context) error {
	m.opLock.Lock()
	defer m.opLock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	start := m.clock.Now()
	before, err := totalSize(m.path)
	if err != nil {
		m.log.Warnf("failed to size %s: %v", m.name, err)
	}

	var errs []error
	if err := m.checkpoint(); err != nil {
		errs = append(errs, fmt.Errorf("wal checkpoint: %w", err))
	}
	if err := m.vacuum(); err != nil {
		errs = append(errs, fmt.Errorf("vacuum: %w", err))
	}
	runErr := errors.Join(errs...)

	after, err := totalSize(m.path)
	if err != nil {
		m.log.Warnf("failed to size %s: %v", m.name, err)
	}
	reclaimed := max(before-after, 0)

	now := m.clock.Now()
	m.statsMu.Lock()
	m.stats.Runs++
	m.stats.LastRun = now
	m.stats.LastError = runErr
	m.stats.Reclaimed = reclaimed
	m.statsMu.Unlock()

	maintenanceRunLog(m.name, runErr, now.Sub(start), now)
	reclaimedSet(m.name, reclaimed)
	dbSizeSet(m.name, after)

	if runErr != nil {
		return runErr
	}

	m.log.Infof("maintenance of %s done in %v, reclaimed %d MB",
		m.name, now.Sub(start), common.BytesToMB(uint64(reclaimed)))
	return nil
}

func (m *Maintainer) checkpoint() error {
	var mode string
	if err := m.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		return fmt.Errorf("failed to read journal mode: %w", err)
	}
	if !strings.EqualFold(mode, "wal") {
		return nil
	}

	var busy, frames, checkpointed int
	query := fmt.Sprintf("PRAGMA wal_checkpoint(%s)", m.config.WALCheckpointMode)
	if err := m.db.QueryRow(query).Scan(&busy, &frames, &checkpointed); err != nil {
		return err
	}
	walCheckpointInc(m.name, m.config.WALCheckpointMode)

	if busy > 0 {
		m.log.Warnf("wal checkpoint of %s left %d of %d frames behind", m.name, frames-checkpointed, frames)
	} else {
		m.log.Debugf("wal checkpoint of %s moved %d frames", m.name, checkpointed)
	}
	return nil
}

func (m *Maintainer) vacuum() error {
	if _, err := m.db.Exec("VACUUM"); err != nil {
		return err
	}
	vacuumInc(m.name)
	return nil
}

// Stats returns a snapshot of the run statistics.
func (m *Maintainer) Stats() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats
}

// totalSize returns the combined size of the database file and its -wal and -shm
// companions. Missing files count as zero.
func totalSize(path string) (int64, error) {
	var total int64
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}
