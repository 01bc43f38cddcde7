package index

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/IndexSync/internal/logger"
	"github.com/goran-ethernal/IndexSync/pkg/chain"
	"github.com/goran-ethernal/IndexSync/pkg/kvdb"
	"github.com/lightningnetwork/lnd/clock"
)

const (
	DefaultLogInterval        = 30 * time.Second
	DefaultCheckpointInterval = 30 * time.Second
)

// State is the sync state of an engine.
type State int32

const (
	StateUninitialized State = iota
	StateCatchingUp
	StateSynced
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCatchingUp:
		return "catching_up"
	case StateSynced:
		return "synced"
	default:
		return "unknown"
	}
}

// FatalHandler receives errors after which the index can no longer be trusted.
type FatalHandler func(err error)

// Config tunes an Engine. Zero values select the defaults.
type Config struct {
	LogInterval        time.Duration
	CheckpointInterval time.Duration
	Clock              clock.Clock
	// Fatal is called on unrecoverable errors. The default logs the error and
	// interrupts the engine.
	Fatal FatalHandler
}

// Summary describes the sync status of an index.
type Summary struct {
	Name            string      `json:"name" example:"txindex"`
	State           string      `json:"state" example:"synced"`
	Synced          bool        `json:"synced" example:"true"`
	Ready           bool        `json:"ready" example:"true"`
	BestBlockHeight uint64      `json:"best_block_height" example:"19500000"`
	BestBlockHash   common.Hash `json:"best_block_hash" swaggertype:"string"`
}

// Engine keeps one Index in step with the chain.
type Engine struct {
	index   Index
	db      *DB
	chain   Chain
	log     *logger.Logger
	clock   clock.Clock
	fatal   FatalHandler
	options Options

	logInterval        time.Duration
	checkpointInterval time.Duration

	// best is written last by every operation that moves it, so readers may assume
	// the block's effects are applied once they observe it.
	best        atomic.Pointer[chain.BlockIndex]
	state       atomic.Int32
	ready       atomic.Bool
	interrupted atomic.Bool

	mu      sync.Mutex
	handler chain.Handler
	running bool
	wg      sync.WaitGroup
}

// NewEngine creates an engine for idx that checkpoints into store.
func NewEngine(idx Index, store kvdb.Store, ch Chain, log *logger.Logger, cfg Config) *Engine {
	e := &Engine{
		index:              idx,
		db:                 NewDB(store),
		chain:              ch,
		log:                log,
		clock:              cfg.Clock,
		fatal:              cfg.Fatal,
		logInterval:        cfg.LogInterval,
		checkpointInterval: cfg.CheckpointInterval,
	}

	if e.clock == nil {
		e.clock = clock.NewDefaultClock()
	}
	if e.logInterval == 0 {
		e.logInterval = DefaultLogInterval
	}
	if e.checkpointInterval == 0 {
		e.checkpointInterval = DefaultCheckpointInterval
	}
	if e.fatal == nil {
		e.fatal = func(err error) {
			e.log.Errorf("%s: stopping after fatal error: %v", e.Name(), err)
			e.Interrupt()
		}
	}

	return e
}

// Name returns the name of the index.
func (e *Engine) Name() string {
	return e.index.Name()
}

// Index returns the index the engine drives.
func (e *Engine) Index() Index {
	return e.index
}

// State returns the current sync state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Synced reports whether catch-up reached the chain tip.
func (e *Engine) Synced() bool {
	return e.State() == StateSynced
}

// Ready reports whether live notifications are being applied.
func (e *Engine) Ready() bool {
	return e.ready.Load()
}

// BestBlock returns the last block the index fully applied.
func (e *Engine) BestBlock() *chain.BlockIndex {
	return e.best.Load()
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
	syncStateSet(e.Name(), s)
}

// Init reads the checkpoint, resolves it against the chain and subscribes to chain
// notifications starting there. It returns an *InitError when the checkpoint cannot
// be resolved or CustomInit fails.
func (e *Engine) Init() error {
	e.interrupted.Store(false)
	e.best.Store(nil)
	e.setState(StateUninitialized)
	e.ready.Store(false)

	if e.chain.PruneMode() && !e.index.AllowPrune() {
		return &InitError{Name: e.Name(), Reason: "index does not support pruned block data, disable pruning or the index"}
	}

	locator, err := e.db.ReadBestBlock()
	if err != nil {
		return &InitError{Name: e.Name(), Reason: "failed to read best block", Err: err}
	}

	e.options = e.index.CustomOptions()
	if e.options.ThreadName == "" {
		e.options.ThreadName = e.Name()
	}

	opts := chain.NotifyOptions{
		ConnectUndoData: e.options.ConnectUndoData,
		Name:            e.Name(),
	}
	var stale *chain.BlockKey
	handler, err := e.chain.AttachChain(&notifications{engine: e}, locator, opts,
		func(start *chain.BlockIndex, chainTip bool) error {
			var err error
			stale, err = e.prepareSync(locator, start, chainTip)
			return err
		})
	if err != nil {
		e.releasePruneLock()
		return err
	}

	if stale != nil {
		if err := e.rewindStale(*stale); err != nil {
			handler.Close()
			e.releasePruneLock()
			return &InitError{Name: e.Name(), Reason: "cannot resume from a checkpoint on an unknown branch", Err: err}
		}
	}

	e.mu.Lock()
	e.handler = handler
	e.mu.Unlock()

	e.log.Infof("%s: initialized at %s (synced: %t)", e.Name(), e.describeBest(), e.Synced())
	return nil
}

// prepareSync runs under the chain lock. When the checkpoint tip is unknown and start
// is an older locator entry, the index is initialized at the stale tip, which is
// returned for Init to rewind.
func (e *Engine) prepareSync(locator chain.Locator, start *chain.BlockIndex, chainTip bool) (*chain.BlockKey, error) {
	if !locator.IsNull() && start == nil {
		return nil, &InitError{
			Name: e.Name(),
			Reason: fmt.Sprintf("best block %s of the index not found, rebuild the index or "+
				"disable it until the chain is synced", locator.Tip().Hex()),
		}
	}

	e.setBestBlock(start)

	// CustomInit must run before ready can flip, so it always precedes CustomAppend.
	if start != nil && start.Hash != locator.Tip() {
		stale := chain.BlockKey{Hash: locator.Tip(), Height: locator.Height}
		if stale.Height <= start.Height {
			return nil, &InitError{
				Name: e.Name(),
				Reason: fmt.Sprintf("best block %s of the index is on an unknown branch and records no "+
					"height above %s, rebuild the index", stale.Hash.Hex(), start),
			}
		}
		if err := e.index.CustomInit(&stale); err != nil {
			return nil, &InitError{Name: e.Name(), Reason: "custom init failed", Err: err}
		}
		// Catch-up flips ready once the stale blocks are rewound.
		e.setState(StateCatchingUp)
		return &stale, nil
	}

	var key *chain.BlockKey
	if start != nil {
		k := start.Key()
		key = &k
	}
	if err := e.index.CustomInit(key); err != nil {
		return nil, &InitError{Name: e.Name(), Reason: "custom init failed", Err: err}
	}

	if chainTip {
		e.setState(StateSynced)
		// Queued under the chain lock: notifications still in the queue from before
		// this point run first and are dropped as not ready.
		e.chain.CallFunctionInQueue(func() { e.ready.Store(true) })
	} else {
		e.setState(StateCatchingUp)
	}
	return nil, nil
}

// rewindStale undoes the blocks of an unknown branch from stale down to the best
// block and checkpoints there.
func (e *Engine) rewindStale(stale chain.BlockKey) error {
	fork := e.best.Load()
	if err := e.index.CustomRewind(stale, fork.Key()); err != nil {
		return fmt.Errorf("rewind from %s to %s: %w", stale, fork, err)
	}
	rewindsInc(e.Name())

	if err := e.Commit(); err != nil {
		return err
	}

	e.log.Warnf("%s: checkpoint %s is on an unknown branch, rewound to %s", e.Name(), stale, fork)
	return nil
}

// StartBackgroundSync launches catch-up on its own goroutine. It returns immediately
// when the engine is already synced.
func (e *Engine) StartBackgroundSync() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handler == nil {
		return ErrNotInitialized
	}
	if e.running {
		return ErrAlreadyStarted
	}
	e.running = true

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.sync()
	}()
	return nil
}

// nextSyncBlock returns the block to apply after prev on active, following the fork
// point when prev left the active chain. Requires the chain lock.
func nextSyncBlock(prev *chain.BlockIndex, active *chain.ActiveChain) *chain.BlockIndex {
	if prev == nil {
		return active.Genesis()
	}
	if next := active.Next(prev); next != nil {
		return next
	}
	return active.Next(active.FindFork(prev))
}

func (e *Engine) sync() {
	pindex := e.best.Load()

	if !e.Synced() {
		e.log.Infof("%s: sync thread %s started at %s", e.Name(), e.options.ThreadName, e.describeBest())

		var lastLog, lastCheckpoint time.Time
		for {
			if e.interrupted.Load() {
				e.log.Infof("%s: interrupted, exiting sync", e.Name())
				e.setBestBlock(pindex)
				// Commit failures are logged by Commit; a missed checkpoint only costs redone work.
				_ = e.Commit()
				return
			}

			var next *chain.BlockIndex
			e.chain.WithLock(func(active *chain.ActiveChain) {
				next = nextSyncBlock(pindex, active)
			})

			if next == nil {
				e.setBestBlock(pindex)
				_ = e.Commit()

				// Synced must be set under the chain lock, otherwise a block connected
				// in between would never be indexed.
				var done bool
				e.chain.WithLock(func(active *chain.ActiveChain) {
					next = nextSyncBlock(pindex, active)
					if next == nil {
						e.setState(StateSynced)
						e.chain.CallFunctionInQueue(func() { e.ready.Store(true) })
						done = true
					}
				})
				if done {
					break
				}
			}

			if next.Parent != pindex {
				e.setBestBlock(pindex)
				if err := e.Rewind(pindex, next.Parent); err != nil {
					e.fatalf("failed to rewind index %s to a previous chain tip: %w", e.Name(), err)
					return
				}
			}
			pindex = next

			block, undo, err := e.chain.ReadBlock(pindex, e.options.ConnectUndoData)
			if err != nil {
				e.fatalf("failed to read block %s: %w", pindex, err)
				return
			}
			if err := e.index.CustomAppend(newBlockInfo(pindex, block, undo)); err != nil {
				e.fatalf("failed to write block %s to index %s: %w", pindex, e.Name(), err)
				return
			}
			blocksAppendedInc(e.Name(), "catchup")

			now := e.clock.Now()
			if lastLog.Add(e.logInterval).Before(now) {
				e.log.Infof("Syncing %s with block chain from height %d", e.Name(), pindex.Height)
				lastLog = now
			}
			if lastCheckpoint.Add(e.checkpointInterval).Before(now) {
				e.setBestBlock(pindex)
				lastCheckpoint = now
				_ = e.Commit()
			}
		}
	}

	if pindex != nil {
		e.log.Infof("%s is enabled at height %d", e.Name(), pindex.Height)
	} else {
		e.log.Infof("%s is enabled", e.Name())
	}
}

func newBlockInfo(b *chain.BlockIndex, block *types.Block, undo types.Receipts) chain.BlockInfo {
	return chain.BlockInfo{
		Hash:     b.Hash,
		PrevHash: b.Header.ParentHash,
		Height:   b.Height,
		Data:     block,
		Undo:     undo,
	}
}

// Commit writes the index's staged data and the locator of the best block in one
// batch. It is a no-op when no block was processed yet. Failures are logged and
// returned; the in-memory state stays valid either way.
func (e *Engine) Commit() error {
	best := e.best.Load()
	if best == nil {
		return nil
	}

	err := e.commit(best)
	if err != nil {
		commitErrorInc(e.Name())
		e.log.Errorf("failed to commit latest %s state: %v", e.Name(), err)
		return err
	}

	commitSuccessInc(e.Name())
	e.log.Debugf("%s: committed at %s", e.Name(), best)
	return nil
}

func (e *Engine) commit(best *chain.BlockIndex) error {
	batch := e.db.NewBatch()
	if err := e.index.CustomCommit(batch); err != nil {
		return fmt.Errorf("custom commit: %w", err)
	}

	locator, ok := e.chain.FindBlock(best.Hash)
	if !ok || locator.IsNull() {
		return fmt.Errorf("best block %s is unknown to the chain", best)
	}
	if err := e.db.WriteBestBlock(batch, locator); err != nil {
		return err
	}
	return e.db.Write(batch)
}

// Rewind undoes the index from current, which must be the best block, down to newTip,
// an ancestor of current. If the checkpoint after the rewind fails, the best block is
// reset to current.
func (e *Engine) Rewind(current, newTip *chain.BlockIndex) error {
	if current == nil || current != e.best.Load() {
		panic(fmt.Sprintf("%s: rewind from %s which is not the best block", e.Name(), current))
	}
	if newTip == nil || current.Ancestor(newTip.Height) != newTip {
		panic(fmt.Sprintf("%s: rewind target %s is not an ancestor of %s", e.Name(), newTip, current))
	}

	if err := e.index.CustomRewind(current.Key(), newTip.Key()); err != nil {
		return err
	}
	rewindsInc(e.Name())

	// A persisted locator pointing into the abandoned branch would be resolved to the
	// stale block on restart, so checkpoint right away.
	e.setBestBlock(newTip)
	if err := e.Commit(); err != nil {
		e.setBestBlock(current)
		return err
	}

	e.log.Infof("%s: rewound from %s to %s", e.Name(), current, newTip)
	return nil
}

// setBestBlock updates the prune lock and then publishes b.
func (e *Engine) setBestBlock(b *chain.BlockIndex) {
	var height uint64
	if b != nil {
		height = b.Height
	}

	if e.index.AllowPrune() {
		e.chain.UpdatePruneLock(e.Name(), height)
	}

	e.best.Store(b)
	bestBlockHeightSet(e.Name(), height)
}

// BlockUntilSyncedToCurrentChain waits until every block of the active chain at the
// time of the call has been applied. It returns false without waiting when the index
// never finished catch-up.
func (e *Engine) BlockUntilSyncedToCurrentChain(ctx context.Context) (bool, error) {
	if !e.Synced() {
		return false, nil
	}

	var caughtUp bool
	e.chain.WithLock(func(active *chain.ActiveChain) {
		tip := active.Tip()
		best := e.best.Load()
		caughtUp = tip == nil || (best != nil && best.Ancestor(tip.Height) == tip)
	})
	if caughtUp {
		return true, nil
	}

	e.log.Infof("%s is catching up on block notifications", e.Name())
	if err := e.chain.SyncWithQueue(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Interrupt asks the background sync to checkpoint and exit.
func (e *Engine) Interrupt() {
	e.interrupted.Store(true)
}

// Stop detaches from chain notifications, waits for the background sync to exit and
// releases the prune lock.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.handler != nil {
		e.handler.Close()
		e.handler = nil
	}
	e.mu.Unlock()

	e.wg.Wait()

	e.mu.Lock()
	e.running = false
	e.mu.Unlock()

	e.releasePruneLock()
}

func (e *Engine) releasePruneLock() {
	if e.index.AllowPrune() {
		e.chain.DeletePruneLock(e.Name())
	}
}

// Summary reports the engine's status. Without a best block the height is 0 and the
// hash is the genesis hash.
func (e *Engine) Summary() Summary {
	s := Summary{
		Name:   e.Name(),
		State:  e.State().String(),
		Synced: e.Synced(),
		Ready:  e.Ready(),
	}

	if best := e.best.Load(); best != nil {
		s.BestBlockHeight = best.Height
		s.BestBlockHash = best.Hash
	} else {
		e.chain.WithLock(func(active *chain.ActiveChain) {
			if genesis := active.Genesis(); genesis != nil {
				s.BestBlockHash = genesis.Hash
			}
		})
	}
	return s
}

func (e *Engine) describeBest() string {
	if best := e.best.Load(); best != nil {
		return best.String()
	}
	return "genesis"
}

func (e *Engine) fatalf(format string, args ...any) {
	err := fmt.Errorf(format, args...)
	fatalErrorsInc(e.Name())
	e.log.Errorf("%s: fatal: %v", e.Name(), err)
	e.fatal(err)
}
