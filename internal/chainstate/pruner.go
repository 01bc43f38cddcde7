package chainstate

import (
	"context"
	"sync"
	"time"

	"github.com/goran-ethernal/IndexSync/internal/logger"
	"github.com/goran-ethernal/IndexSync/pkg/config"
)

// Pruner periodically drops old block data from the chain engine.
type Pruner struct {
	manager *Manager
	config  config.PruneConfig
	log     *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	metricsLock  sync.Mutex
	lastRun      time.Time
	runs         uint64
	totalPruned  uint64
	lastPruneErr error
}

// NewPruner creates a pruner for manager. It does nothing unless cfg.Enabled is set.
func NewPruner(manager *Manager, cfg config.PruneConfig, log *logger.Logger) *Pruner {
	return &Pruner{
		manager: manager,
		config:  cfg,
		log:     log,
	}
}

// Start launches the background worker.
func (p *Pruner) Start(ctx context.Context) {
	if !p.config.Enabled {
		p.log.Info("Block pruning is disabled")
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.worker(ctx)

	p.log.Infof("Block pruning started - keep blocks: %d, interval: %v",
		p.config.KeepBlocks, p.config.CheckInterval.Duration)
}

// Stop stops the worker and waits for it.
func (p *Pruner) Stop() {
	if p.cancel == nil {
		return
	}

	p.cancel()
	p.wg.Wait()
	p.log.Info("Block pruning stopped")
}

func (p *Pruner) worker(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.CheckInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.RunPrune(ctx); err != nil {
				p.log.Warnf("Pruning failed: %v", err)
			}
		}
	}
}

// RunPrune prunes once.
func (p *Pruner) RunPrune(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	count, err := p.manager.Prune(p.config.KeepBlocks)

	p.metricsLock.Lock()
	p.lastRun = time.Now().UTC()
	p.runs++
	p.totalPruned += uint64(count) //nolint:gosec
	p.lastPruneErr = err
	p.metricsLock.Unlock()

	if err != nil {
		return err
	}
	if count > 0 {
		p.log.Infof("Pruned data of %d blocks", count)
	}
	return nil
}

// PrunerMetrics reports what the pruner has done so far.
type PrunerMetrics struct {
	LastRun      time.Time
	Runs         uint64
	TotalPruned  uint64
	LastPruneErr error
}

// GetMetrics returns the pruner's counters.
func (p *Pruner) GetMetrics() PrunerMetrics {
	p.metricsLock.Lock()
	defer p.metricsLock.Unlock()

	return PrunerMetrics{
		LastRun:      p.lastRun,
		Runs:         p.runs,
		TotalPruned:  p.totalPruned,
		LastPruneErr: p.lastPruneErr,
	}
}
