// Package enginetest runs indexes against an in-process chain for tests.
package enginetest

import (
	"context"
	"testing"
	"time"

	"github.com/goran-ethernal/IndexSync/internal/chainstate"
	"github.com/goran-ethernal/IndexSync/internal/kvdb"
	"github.com/goran-ethernal/IndexSync/internal/logger"
	"github.com/goran-ethernal/IndexSync/internal/testutil"
	"github.com/goran-ethernal/IndexSync/pkg/index"
	pkgkvdb "github.com/goran-ethernal/IndexSync/pkg/kvdb"
	"github.com/stretchr/testify/require"
)

// Env is a chain engine plus the store an index under test writes to.
type Env struct {
	T       *testing.T
	Manager *chainstate.Manager
	Store   pkgkvdb.Store
}

// New starts a chain engine with an in-memory block store.
func New(t *testing.T, pruneMode bool) *Env {
	t.Helper()

	log := logger.NewNopLogger()
	signals := chainstate.NewSignals(log)
	signals.Start()
	t.Cleanup(signals.Stop)

	return &Env{
		T:       t,
		Manager: chainstate.NewManager(chainstate.NewBlockStore(kvdb.NewMemoryStore()), signals, pruneMode, log),
		Store:   kvdb.NewMemoryStore(),
	}
}

// Deps returns the factory dependencies of an index under test.
func (e *Env) Deps() index.Deps {
	return index.Deps{Store: e.Store, Chain: e.Manager, Log: logger.NewNopLogger()}
}

// Process submits blocks to the chain engine.
func (e *Env) Process(blocks ...testutil.Block) {
	e.T.Helper()
	for _, b := range blocks {
		require.NoError(e.T, e.Manager.ProcessBlock(b.Block, b.Receipts))
	}
}

// Start initializes an engine for idx and waits until it follows live notifications.
// Fatal errors fail the test.
func (e *Env) Start(idx index.Index) *index.Engine {
	e.T.Helper()

	t := e.T
	eng := index.NewEngine(idx, e.Store, e.Manager, logger.NewNopLogger(), index.Config{
		Fatal: func(err error) { t.Errorf("fatal index error: %v", err) },
	})
	require.NoError(t, eng.Init())
	require.NoError(t, eng.StartBackgroundSync())
	t.Cleanup(func() {
		eng.Interrupt()
		eng.Stop()
	})

	require.Eventually(t, eng.Ready, 5*time.Second, 5*time.Millisecond)
	return eng
}

// Sync waits until every queued notification was delivered.
func (e *Env) Sync() {
	e.T.Helper()
	require.NoError(e.T, e.Manager.SyncWithQueue(context.Background()))
}
