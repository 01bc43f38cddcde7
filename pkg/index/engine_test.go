package index

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/IndexSync/internal/chainstate"
	"github.com/goran-ethernal/IndexSync/internal/kvdb"
	"github.com/goran-ethernal/IndexSync/internal/logger"
	"github.com/goran-ethernal/IndexSync/internal/testutil"
	"github.com/goran-ethernal/IndexSync/pkg/chain"
	pkgkvdb "github.com/goran-ethernal/IndexSync/pkg/kvdb"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

const waitFor = 5 * time.Second

// recordingIndex records every hook call.
type recordingIndex struct {
	BaseHooks

	name       string
	undo       bool
	allowPrune bool

	mu       sync.Mutex
	inits    []*chain.BlockKey
	appended []chain.BlockKey
	rewinds  [][2]chain.BlockKey
	commits  int

	initErr    error
	appendErr  atomic.Pointer[error]
	beforeNext func(block chain.BlockInfo)
}

func newRecordingIndex(name string) *recordingIndex {
	return &recordingIndex{name: name}
}

func (r *recordingIndex) Name() string { return r.name }

func (r *recordingIndex) CustomInit(start *chain.BlockKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inits = append(r.inits, start)
	return r.initErr
}

func (r *recordingIndex) CustomAppend(block chain.BlockInfo) error {
	if r.beforeNext != nil {
		r.beforeNext(block)
	}
	if errp := r.appendErr.Load(); errp != nil {
		return *errp
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.appended = append(r.appended, block.Key())
	return nil
}

func (r *recordingIndex) CustomRewind(current, newTip chain.BlockKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rewinds = append(r.rewinds, [2]chain.BlockKey{current, newTip})

	// Drop the rewound blocks so appended mirrors the index content.
	kept := r.appended[:0]
	for _, k := range r.appended {
		if k.Height <= newTip.Height {
			kept = append(kept, k)
		}
	}
	r.appended = kept
	return nil
}

func (r *recordingIndex) CustomCommit(pkgkvdb.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits++
	return nil
}

func (r *recordingIndex) CustomOptions() Options {
	return Options{ConnectUndoData: r.undo, ThreadName: "test-" + r.name}
}

func (r *recordingIndex) AllowPrune() bool { return r.allowPrune }

func (r *recordingIndex) appendedKeys() []chain.BlockKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chain.BlockKey(nil), r.appended...)
}

func (r *recordingIndex) rewindCalls() [][2]chain.BlockKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][2]chain.BlockKey(nil), r.rewinds...)
}

func (r *recordingIndex) commitCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commits
}

// failingStore fails batch writes on demand.
type failingStore struct {
	pkgkvdb.Store
	failWrites atomic.Bool
}

var errWriteFailed = errors.New("write failed")

func (s *failingStore) Write(b pkgkvdb.Batch) error {
	if s.failWrites.Load() {
		return errWriteFailed
	}
	return s.Store.Write(b)
}

type harness struct {
	t         *testing.T
	manager   *chainstate.Manager
	chainDB   pkgkvdb.Store
	pruneMode bool
	fatals    chan error
}

func newHarness(t *testing.T, pruneMode bool) *harness {
	t.Helper()

	h := &harness{
		t:         t,
		chainDB:   kvdb.NewMemoryStore(),
		pruneMode: pruneMode,
		fatals:    make(chan error, 16),
	}
	h.manager = h.newManager()
	return h
}

func (h *harness) newManager() *chainstate.Manager {
	log := logger.NewNopLogger()
	signals := chainstate.NewSignals(log)
	signals.Start()
	h.t.Cleanup(signals.Stop)

	return chainstate.NewManager(chainstate.NewBlockStore(h.chainDB), signals, h.pruneMode, log)
}

// restart replaces the chain engine with one loaded from the same block store.
// Engines created before keep the old one.
func (h *harness) restart() {
	h.t.Helper()
	h.manager = h.newManager()
	require.NoError(h.t, h.manager.Load())
}

func (h *harness) newEngine(idx Index, store pkgkvdb.Store, cfg Config) *Engine {
	h.t.Helper()

	if cfg.Fatal == nil {
		cfg.Fatal = func(err error) { h.fatals <- err }
	}
	e := NewEngine(idx, store, h.manager, logger.NewNopLogger(), cfg)
	h.t.Cleanup(func() {
		e.Interrupt()
		e.Stop()
	})
	return e
}

func (h *harness) process(blocks ...testutil.Block) {
	h.t.Helper()
	for _, b := range blocks {
		require.NoError(h.t, h.manager.ProcessBlock(b.Block, b.Receipts))
	}
}

func (h *harness) drain() {
	h.t.Helper()
	require.NoError(h.t, h.manager.SyncWithQueue(context.Background()))
}

func (h *harness) noFatal() {
	h.t.Helper()
	select {
	case err := <-h.fatals:
		h.t.Fatalf("unexpected fatal error: %v", err)
	default:
	}
}

func keysOf(blocks ...testutil.Block) []chain.BlockKey {
	keys := make([]chain.BlockKey, 0, len(blocks))
	for _, b := range blocks {
		keys = append(keys, chain.BlockKey{Hash: b.Hash(), Height: b.NumberU64()})
	}
	return keys
}

func waitReady(t *testing.T, e *Engine) {
	t.Helper()
	require.Eventually(t, e.Ready, waitFor, 5*time.Millisecond)
}

func TestEngine_CatchUpThenReorg(t *testing.T) {
	h := newHarness(t, false)
	main := testutil.NewChain(nil, 0, 3, 1, 0)
	h.process(main...)

	idx := newRecordingIndex("txindex")
	e := h.newEngine(idx, kvdb.NewMemoryStore(), Config{})

	require.NoError(t, e.Init())
	require.Equal(t, StateCatchingUp, e.State())
	require.Nil(t, idx.inits[0])
	require.False(t, e.Ready())

	require.NoError(t, e.StartBackgroundSync())
	waitReady(t, e)

	require.Equal(t, keysOf(main...), idx.appendedKeys())
	require.True(t, e.Synced())
	require.Equal(t, main[2].Hash(), e.BestBlock().Hash)

	// Replace the block at height 2.
	alt := testutil.NewChain(main[1].Block, 0, 1, 1, 1)
	h.process(alt...)
	h.drain()

	require.Equal(t, [][2]chain.BlockKey{{keysOf(main[2])[0], keysOf(main[1])[0]}}, idx.rewindCalls())
	require.Equal(t, keysOf(main[0], main[1], alt[0]), idx.appendedKeys())
	require.Equal(t, alt[0].Hash(), e.BestBlock().Hash)
	h.noFatal()
}

func TestEngine_NoSkipNoDuplicateWhileChainGrows(t *testing.T) {
	h := newHarness(t, false)
	blocks := testutil.NewChain(nil, 0, 200, 0, 0)
	h.process(blocks[:50]...)

	idx := newRecordingIndex("growing")
	e := h.newEngine(idx, kvdb.NewMemoryStore(), Config{})
	require.NoError(t, e.Init())
	require.NoError(t, e.StartBackgroundSync())

	// Keep extending the chain while catch-up runs.
	h.process(blocks[50:]...)

	waitReady(t, e)
	require.Eventually(t, func() bool {
		best := e.BestBlock()
		return best != nil && best.Hash == blocks[199].Hash()
	}, waitFor, 5*time.Millisecond)
	h.drain()

	require.Equal(t, keysOf(blocks...), idx.appendedKeys())
	h.noFatal()
}

func TestEngine_ReorgDuringCatchUp(t *testing.T) {
	h := newHarness(t, false)
	main := testutil.NewChain(nil, 0, 4, 0, 0)
	h.process(main...)
	alt := testutil.NewChain(main[1].Block, 0, 3, 0, 9)

	idx := newRecordingIndex("reorg")
	release := make(chan struct{})
	var once sync.Once
	idx.beforeNext = func(block chain.BlockInfo) {
		if block.Hash == main[2].Hash() {
			once.Do(func() { <-release })
		}
	}

	e := h.newEngine(idx, kvdb.NewMemoryStore(), Config{})
	require.NoError(t, e.Init())
	require.NoError(t, e.StartBackgroundSync())

	// Reorg while block 2 of the old branch is being appended.
	require.Eventually(t, func() bool { return len(idx.appendedKeys()) == 2 }, waitFor, time.Millisecond)
	h.process(alt...)
	close(release)

	waitReady(t, e)
	h.drain()

	require.Equal(t, [][2]chain.BlockKey{{keysOf(main[2])[0], keysOf(main[1])[0]}}, idx.rewindCalls())
	require.Equal(t, keysOf(main[0], main[1], alt[0], alt[1], alt[2]), idx.appendedKeys())
	require.Equal(t, alt[2].Hash(), e.BestBlock().Hash)
	h.noFatal()
}

func TestEngine_RestartResumesFromCheckpoint(t *testing.T) {
	h := newHarness(t, false)
	blocks := testutil.NewChain(nil, 10, 8, 0, 0)
	h.process(blocks[:5]...)

	store := kvdb.NewMemoryStore()
	first := newRecordingIndex("resume")
	e := h.newEngine(first, store, Config{})
	require.NoError(t, e.Init())
	require.NoError(t, e.StartBackgroundSync())
	waitReady(t, e)
	e.Interrupt()
	e.Stop()

	locator, err := NewDB(store).ReadBestBlock()
	require.NoError(t, err)
	require.Equal(t, blocks[4].Hash(), locator.Tip())

	// Restart at the tip: synced right away, nothing replayed.
	second := newRecordingIndex("resume")
	e2 := h.newEngine(second, store, Config{})
	require.NoError(t, e2.Init())
	require.Equal(t, StateSynced, e2.State())
	require.Equal(t, keysOf(blocks[4])[0], *second.inits[0])
	require.NoError(t, e2.StartBackgroundSync())
	waitReady(t, e2)
	e2.Interrupt()
	e2.Stop()
	require.Empty(t, second.appendedKeys())

	// The chain moves on while the index is down.
	h.process(blocks[5:]...)
	third := newRecordingIndex("resume")
	e3 := h.newEngine(third, store, Config{})
	require.NoError(t, e3.Init())
	require.Equal(t, StateCatchingUp, e3.State())
	require.NoError(t, e3.StartBackgroundSync())
	waitReady(t, e3)

	require.Equal(t, keysOf(blocks[5:]...), third.appendedKeys())
	h.noFatal()
}

func TestEngine_ResumesAfterChainRestart(t *testing.T) {
	h := newHarness(t, false)
	blocks := testutil.NewChain(nil, 10, 8, 0, 0)
	h.process(blocks[:5]...)

	store := kvdb.NewMemoryStore()
	e := h.newEngine(newRecordingIndex("resume"), store, Config{})
	require.NoError(t, e.Init())
	require.NoError(t, e.StartBackgroundSync())
	waitReady(t, e)
	e.Interrupt()
	e.Stop()

	h.restart()
	require.Equal(t, blocks[4].Hash(), h.manager.Tip().Hash)
	h.process(blocks[5:]...)

	idx := newRecordingIndex("resume")
	e2 := h.newEngine(idx, store, Config{})
	require.NoError(t, e2.Init())
	require.Equal(t, StateCatchingUp, e2.State())
	require.Equal(t, keysOf(blocks[4])[0], *idx.inits[0])
	require.NoError(t, e2.StartBackgroundSync())
	waitReady(t, e2)

	require.Equal(t, keysOf(blocks[5:]...), idx.appendedKeys())
	require.Equal(t, blocks[7].Hash(), e2.BestBlock().Hash)
	h.noFatal()
}

func TestEngine_ResumesFromCheckpointOnUnknownBranch(t *testing.T) {
	main := testutil.NewChain(nil, 0, 30, 0, 0)
	stale := testutil.NewChain(main[24].Block, 0, 6, 0, 1)

	h := newHarness(t, false)
	h.process(main[:25]...)
	h.process(stale...)

	store := kvdb.NewMemoryStore()
	e := h.newEngine(newRecordingIndex("forked"), store, Config{})
	require.NoError(t, e.Init())
	require.NoError(t, e.StartBackgroundSync())
	waitReady(t, e)
	e.Interrupt()
	e.Stop()

	// A chain engine that only ever saw the canonical branch.
	h2 := newHarness(t, false)
	h2.process(main...)

	idx := newRecordingIndex("forked")
	e2 := h2.newEngine(idx, store, Config{})
	require.NoError(t, e2.Init())
	require.Equal(t, StateCatchingUp, e2.State())

	staleTip := keysOf(stale[5])[0]
	fork := keysOf(main[24])[0]
	require.Equal(t, staleTip, *idx.inits[0])
	require.Equal(t, [][2]chain.BlockKey{{staleTip, fork}}, idx.rewindCalls())
	require.Equal(t, main[24].Hash(), e2.BestBlock().Hash)

	locator, err := NewDB(store).ReadBestBlock()
	require.NoError(t, err)
	require.Equal(t, main[24].Hash(), locator.Tip())

	require.NoError(t, e2.StartBackgroundSync())
	waitReady(t, e2)
	require.Equal(t, keysOf(main[25:]...), idx.appendedKeys())
	require.Equal(t, main[29].Hash(), e2.BestBlock().Hash)
	h2.noFatal()
}

func TestEngine_InitErrors(t *testing.T) {
	t.Run("unknown checkpoint", func(t *testing.T) {
		h := newHarness(t, false)
		h.process(testutil.NewChain(nil, 0, 2, 0, 0)...)

		store := kvdb.NewMemoryStore()
		db := NewDB(store)
		batch := db.NewBatch()
		require.NoError(t, db.WriteBestBlock(batch, chain.Locator{Hashes: []common.Hash{{0xaa}}}))
		require.NoError(t, db.Write(batch))

		e := h.newEngine(newRecordingIndex("stale"), store, Config{})
		err := e.Init()

		var initErr *InitError
		require.ErrorAs(t, err, &initErr)
		require.Equal(t, "stale", initErr.Name)
		require.ErrorIs(t, e.StartBackgroundSync(), ErrNotInitialized)
	})

	t.Run("custom init fails", func(t *testing.T) {
		h := newHarness(t, false)
		idx := newRecordingIndex("broken")
		idx.initErr = errors.New("schema mismatch")

		e := h.newEngine(idx, kvdb.NewMemoryStore(), Config{})
		err := e.Init()

		var initErr *InitError
		require.ErrorAs(t, err, &initErr)
		require.ErrorIs(t, err, idx.initErr)
	})

	t.Run("unknown branch without height", func(t *testing.T) {
		h := newHarness(t, false)
		blocks := testutil.NewChain(nil, 0, 5, 0, 0)
		h.process(blocks...)

		store := kvdb.NewMemoryStore()
		db := NewDB(store)
		batch := db.NewBatch()
		locator := chain.Locator{Hashes: []common.Hash{{0xbb}, blocks[3].Hash()}}
		require.NoError(t, db.WriteBestBlock(batch, locator))
		require.NoError(t, db.Write(batch))

		idx := newRecordingIndex("legacy")
		e := h.newEngine(idx, store, Config{})

		var initErr *InitError
		require.ErrorAs(t, e.Init(), &initErr)
		require.Empty(t, idx.inits)
		require.Empty(t, idx.rewindCalls())
	})

	t.Run("prune mode needs AllowPrune", func(t *testing.T) {
		h := newHarness(t, true)
		e := h.newEngine(newRecordingIndex("txindex"), kvdb.NewMemoryStore(), Config{})

		var initErr *InitError
		require.ErrorAs(t, e.Init(), &initErr)
	})
}

func TestEngine_StartTwice(t *testing.T) {
	h := newHarness(t, false)
	e := h.newEngine(newRecordingIndex("twice"), kvdb.NewMemoryStore(), Config{})

	require.NoError(t, e.Init())
	require.NoError(t, e.StartBackgroundSync())
	require.ErrorIs(t, e.StartBackgroundSync(), ErrAlreadyStarted)
}

func TestEngine_EmptyChainIsSyncedImmediately(t *testing.T) {
	h := newHarness(t, false)
	idx := newRecordingIndex("empty")
	e := h.newEngine(idx, kvdb.NewMemoryStore(), Config{})

	require.NoError(t, e.Init())
	require.Equal(t, StateSynced, e.State())
	waitReady(t, e)

	// The first block arrives through notifications.
	blocks := testutil.NewChain(nil, 0, 2, 0, 0)
	h.process(blocks...)
	h.drain()
	require.Equal(t, keysOf(blocks...), idx.appendedKeys())
}

func TestEngine_IgnoresAssumedValidAndNotReady(t *testing.T) {
	h := newHarness(t, false)
	blocks := testutil.NewChain(nil, 0, 3, 0, 0)
	h.process(blocks[:2]...)

	idx := newRecordingIndex("roles")
	e := h.newEngine(idx, kvdb.NewMemoryStore(), Config{})
	require.NoError(t, e.Init())
	n := &notifications{engine: e}

	// Not ready yet.
	info := chain.BlockInfo{Hash: blocks[0].Hash(), Height: 0}
	n.BlockConnected(chain.RoleNormal, info)
	require.Empty(t, idx.appendedKeys())

	require.NoError(t, e.StartBackgroundSync())
	waitReady(t, e)

	h.process(blocks[2])
	h.drain()
	require.Len(t, idx.appendedKeys(), 3)

	// Blocks from an assumed-valid chainstate never reach the index.
	next := testutil.NewChain(blocks[2].Block, 0, 1, 0, 0)[0]
	require.NoError(t, h.manager.ProcessBlock(next.Block, next.Receipts))
	h.drain()
	before := idx.appendedKeys()
	n.BlockConnected(chain.RoleAssumedValid, chain.BlockInfo{Hash: next.Hash(), Height: next.NumberU64()})
	require.Equal(t, before, idx.appendedKeys())
	h.noFatal()
}

func TestEngine_ChainStateFlushed(t *testing.T) {
	h := newHarness(t, false)
	main := testutil.NewChain(nil, 0, 4, 0, 0)
	h.process(main...)

	store := kvdb.NewMemoryStore()
	idx := newRecordingIndex("flush")
	e := h.newEngine(idx, store, Config{})
	require.NoError(t, e.Init())
	require.NoError(t, e.StartBackgroundSync())
	waitReady(t, e)
	h.drain()

	n := &notifications{engine: e}
	commits := idx.commitCount()

	h.manager.Flush()
	h.drain()
	require.Equal(t, commits+1, idx.commitCount())

	// A locator on an unrelated branch is stale and ignored.
	alt := testutil.NewChain(main[1].Block, 0, 1, 0, 3)[0]
	require.NoError(t, h.manager.ProcessBlock(alt.Block, alt.Receipts))
	require.NoError(t, h.manager.ProcessBlock(main[3].Block, main[3].Receipts))
	h.drain()
	commits = idx.commitCount()

	altLocator, ok := h.manager.FindBlock(alt.Hash())
	require.True(t, ok)
	n.ChainStateFlushed(chain.RoleNormal, altLocator)
	require.Equal(t, commits, idx.commitCount())

	// Assumed-valid flushes are ignored as well.
	tipLocator, ok := h.manager.FindBlock(main[3].Hash())
	require.True(t, ok)
	n.ChainStateFlushed(chain.RoleAssumedValid, tipLocator)
	require.Equal(t, commits, idx.commitCount())

	// A locator at an ancestor of the best block commits.
	ancestorLocator, ok := h.manager.FindBlock(main[1].Hash())
	require.True(t, ok)
	n.ChainStateFlushed(chain.RoleNormal, ancestorLocator)
	require.Equal(t, commits+1, idx.commitCount())

	locator, err := NewDB(store).ReadBestBlock()
	require.NoError(t, err)
	require.Equal(t, main[3].Hash(), locator.Tip())
	h.noFatal()
}

func TestEngine_UnknownFlushLocatorIsFatal(t *testing.T) {
	h := newHarness(t, false)
	h.process(testutil.NewChain(nil, 0, 1, 0, 0)...)

	e := h.newEngine(newRecordingIndex("fatal-flush"), kvdb.NewMemoryStore(), Config{})
	require.NoError(t, e.Init())
	require.NoError(t, e.StartBackgroundSync())
	waitReady(t, e)

	n := &notifications{engine: e}
	n.ChainStateFlushed(chain.RoleNormal, chain.Locator{Hashes: []common.Hash{{0x42}}})

	select {
	case err := <-h.fatals:
		require.ErrorContains(t, err, "was not found")
	case <-time.After(waitFor):
		t.Fatal("expected a fatal error")
	}
}

func TestEngine_AppendFailureIsFatal(t *testing.T) {
	h := newHarness(t, false)
	blocks := testutil.NewChain(nil, 0, 3, 0, 0)
	h.process(blocks[:2]...)

	idx := newRecordingIndex("append")
	e := h.newEngine(idx, kvdb.NewMemoryStore(), Config{})
	require.NoError(t, e.Init())
	require.NoError(t, e.StartBackgroundSync())
	waitReady(t, e)

	appendErr := errors.New("disk full")
	idx.appendErr.Store(&appendErr)
	h.process(blocks[2])
	h.drain()

	select {
	case err := <-h.fatals:
		require.ErrorIs(t, err, appendErr)
	case <-time.After(waitFor):
		t.Fatal("expected a fatal error")
	}
	require.Equal(t, blocks[1].Hash(), e.BestBlock().Hash, "best block must not advance")
}

func TestEngine_CatchUpReadFailureIsFatal(t *testing.T) {
	h := newHarness(t, true)
	blocks := testutil.NewChain(nil, 0, 40, 0, 0)
	h.process(blocks...)
	_, err := h.manager.Prune(5)
	require.NoError(t, err)

	idx := newRecordingIndex("pruned")
	idx.allowPrune = true
	e := h.newEngine(idx, kvdb.NewMemoryStore(), Config{})
	require.NoError(t, e.Init())
	require.NoError(t, e.StartBackgroundSync())

	select {
	case err := <-h.fatals:
		require.ErrorIs(t, err, chainstate.ErrBlockPruned)
	case <-time.After(waitFor):
		t.Fatal("expected a fatal error")
	}
	require.False(t, e.Ready())
}

func TestEngine_RewindCommitFailureRevertsBestBlock(t *testing.T) {
	h := newHarness(t, false)
	blocks := testutil.NewChain(nil, 0, 4, 0, 0)
	h.process(blocks...)

	store := &failingStore{Store: kvdb.NewMemoryStore()}
	idx := newRecordingIndex("revert")
	e := h.newEngine(idx, store, Config{})
	require.NoError(t, e.Init())
	require.NoError(t, e.StartBackgroundSync())
	waitReady(t, e)

	tip := h.manager.LookupBlockIndex(blocks[3].Hash())
	target := h.manager.LookupBlockIndex(blocks[1].Hash())
	require.Equal(t, tip, e.BestBlock())

	store.failWrites.Store(true)
	err := e.Rewind(tip, target)
	require.ErrorIs(t, err, errWriteFailed)
	require.Equal(t, tip, e.BestBlock())
	require.Len(t, idx.rewindCalls(), 1)

	// The checkpoint on disk still names the old tip.
	locator, err := NewDB(store).ReadBestBlock()
	require.NoError(t, err)
	require.Equal(t, blocks[3].Hash(), locator.Tip())

	store.failWrites.Store(false)
	require.NoError(t, e.Commit())
}

func TestEngine_RewindContract(t *testing.T) {
	h := newHarness(t, false)
	blocks := testutil.NewChain(nil, 0, 3, 0, 0)
	h.process(blocks...)

	e := h.newEngine(newRecordingIndex("contract"), kvdb.NewMemoryStore(), Config{})
	require.NoError(t, e.Init())
	require.NoError(t, e.StartBackgroundSync())
	waitReady(t, e)

	b0 := h.manager.LookupBlockIndex(blocks[0].Hash())
	b1 := h.manager.LookupBlockIndex(blocks[1].Hash())
	b2 := h.manager.LookupBlockIndex(blocks[2].Hash())

	require.Panics(t, func() { _ = e.Rewind(b1, b0) }, "current must be the best block")
	require.Panics(t, func() { _ = e.Rewind(b2, b2.Parent.Parent.Parent) }, "target must be an ancestor")
}

func TestEngine_InterruptCheckpoints(t *testing.T) {
	h := newHarness(t, false)
	blocks := testutil.NewChain(nil, 0, 10, 0, 0)
	h.process(blocks...)

	store := kvdb.NewMemoryStore()
	idx := newRecordingIndex("interrupt")
	release := make(chan struct{})
	var once sync.Once
	idx.beforeNext = func(block chain.BlockInfo) {
		if block.Height == 5 {
			once.Do(func() { <-release })
		}
	}

	e := h.newEngine(idx, store, Config{Clock: clock.NewTestClock(time.Unix(1_700_000_000, 0))})
	require.NoError(t, e.Init())
	require.NoError(t, e.StartBackgroundSync())

	require.Eventually(t, func() bool { return len(idx.appendedKeys()) == 5 }, waitFor, time.Millisecond)
	e.Interrupt()
	close(release)
	e.Stop()

	require.False(t, e.Ready())
	require.Equal(t, StateCatchingUp, e.State())
	require.Equal(t, keysOf(blocks[:6]...), idx.appendedKeys())

	locator, err := NewDB(store).ReadBestBlock()
	require.NoError(t, err)
	require.Equal(t, blocks[5].Hash(), locator.Tip())
}

func TestEngine_CheckpointInterval(t *testing.T) {
	h := newHarness(t, false)
	h.process(testutil.NewChain(nil, 0, 25, 0, 0)...)

	idx := newRecordingIndex("interval")
	// The clock never moves: one checkpoint on the first block, one at the tip.
	e := h.newEngine(idx, kvdb.NewMemoryStore(), Config{Clock: clock.NewTestClock(time.Unix(1_700_000_000, 0))})
	require.NoError(t, e.Init())
	require.NoError(t, e.StartBackgroundSync())
	waitReady(t, e)

	require.Equal(t, 2, idx.commitCount())
}

func TestEngine_BlockUntilSyncedToCurrentChain(t *testing.T) {
	h := newHarness(t, false)
	blocks := testutil.NewChain(nil, 0, 5, 0, 0)
	h.process(blocks[:3]...)

	e := h.newEngine(newRecordingIndex("rw"), kvdb.NewMemoryStore(), Config{})

	ok, err := e.BlockUntilSyncedToCurrentChain(context.Background())
	require.NoError(t, err)
	require.False(t, ok, "never synced")

	require.NoError(t, e.Init())
	require.NoError(t, e.StartBackgroundSync())
	waitReady(t, e)

	h.process(blocks[3:]...)
	ok, err = e.BlockUntilSyncedToCurrentChain(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, blocks[4].Hash(), e.BestBlock().Hash)
}

func TestEngine_Summary(t *testing.T) {
	h := newHarness(t, false)
	blocks := testutil.NewChain(nil, 7, 3, 0, 0)
	h.process(blocks...)

	e := h.newEngine(newRecordingIndex("summary"), kvdb.NewMemoryStore(), Config{})
	s := e.Summary()
	require.Equal(t, Summary{
		Name:          "summary",
		State:         "uninitialized",
		BestBlockHash: blocks[0].Hash(),
	}, s)

	require.NoError(t, e.Init())
	require.NoError(t, e.StartBackgroundSync())
	waitReady(t, e)

	s = e.Summary()
	require.Equal(t, "synced", s.State)
	require.True(t, s.Synced)
	require.True(t, s.Ready)
	require.Equal(t, uint64(9), s.BestBlockHeight)
	require.Equal(t, blocks[2].Hash(), s.BestBlockHash)
}

func TestEngine_PruneLockFollowsBestBlock(t *testing.T) {
	h := newHarness(t, true)
	blocks := testutil.NewChain(nil, 0, 60, 0, 0)
	h.process(blocks[:20]...)

	idx := newRecordingIndex("filters")
	idx.allowPrune = true
	e := h.newEngine(idx, kvdb.NewMemoryStore(), Config{})
	require.NoError(t, e.Init())

	// Before catch-up the lock pins everything.
	pruned, err := h.manager.Prune(2)
	require.NoError(t, err)
	require.Zero(t, pruned)

	require.NoError(t, e.StartBackgroundSync())
	waitReady(t, e)
	h.process(blocks[20:]...)
	h.drain()

	pruned, err = h.manager.Prune(2)
	require.NoError(t, err)
	require.Greater(t, pruned, 0)
	h.noFatal()
}

func TestEngine_PruneLockReleased(t *testing.T) {
	t.Run("on stop", func(t *testing.T) {
		h := newHarness(t, true)
		blocks := testutil.NewChain(nil, 0, 60, 0, 0)
		h.process(blocks[:20]...)

		idx := newRecordingIndex("filters")
		idx.allowPrune = true
		e := h.newEngine(idx, kvdb.NewMemoryStore(), Config{})
		require.NoError(t, e.Init())
		require.NoError(t, e.StartBackgroundSync())
		waitReady(t, e)
		e.Interrupt()
		e.Stop()

		h.process(blocks[20:]...)
		pruned, err := h.manager.Prune(2)
		require.NoError(t, err)
		require.Equal(t, 58, pruned)
	})

	t.Run("on failed init", func(t *testing.T) {
		h := newHarness(t, true)
		h.process(testutil.NewChain(nil, 0, 20, 0, 0)...)

		idx := newRecordingIndex("filters")
		idx.allowPrune = true
		idx.initErr = errors.New("schema mismatch")
		e := h.newEngine(idx, kvdb.NewMemoryStore(), Config{})
		require.Error(t, e.Init())

		pruned, err := h.manager.Prune(2)
		require.NoError(t, err)
		require.Equal(t, 18, pruned)
	})
}
