// Package index implements the synchronization engine that keeps derived indexes in
// step with the chain: catch-up from the last checkpoint, live notifications, reorg
// rewinds and atomic checkpoints.
package index

import (
	"context"
	"errors"

	"github.com/goran-ethernal/IndexSync/pkg/chain"
	"github.com/goran-ethernal/IndexSync/pkg/kvdb"
)

var (
	// ErrNotFound is returned by Lookup when the index has no entry for a key.
	ErrNotFound = errors.New("not found")
	// ErrInvalidKey is returned by Lookup for keys the index cannot parse.
	ErrInvalidKey = errors.New("invalid lookup key")
)

// Options are the per-index settings the engine reads once during Init.
type Options struct {
	// ConnectUndoData makes the engine pass block receipts to CustomAppend.
	ConnectUndoData bool
	// ThreadName labels the index's background sync in logs.
	ThreadName string
}

// Index is implemented by every concrete index. The engine calls the hooks from a
// single goroutine at a time: the sync goroutine during catch-up and the
// notification goroutine afterwards.
type Index interface {
	// Name is the unique instance name, also used for the prune lock.
	Name() string

	// CustomInit is called once before any other hook with the block the index
	// resumes from, or nil when it starts from scratch.
	CustomInit(start *chain.BlockKey) error

	// CustomAppend applies one block.
	CustomAppend(block chain.BlockInfo) error

	// CustomRewind undoes every block above newTip up to and including current.
	CustomRewind(current, newTip chain.BlockKey) error

	// CustomCommit stages pending writes into batch. The engine adds the checkpoint
	// locator to the same batch and writes it atomically.
	CustomCommit(batch kvdb.Batch) error

	CustomOptions() Options

	// AllowPrune reports whether the index works on a chain whose old block data is pruned.
	// When true the engine holds a prune lock at its best block.
	AllowPrune() bool
}

// BaseHooks provides no-op defaults for the optional hooks.
type BaseHooks struct{}

func (BaseHooks) CustomInit(*chain.BlockKey) error { return nil }
func (BaseHooks) CustomRewind(_, _ chain.BlockKey) error { return nil }
func (BaseHooks) CustomCommit(kvdb.Batch) error { return nil }
func (BaseHooks) CustomOptions() Options { return Options{} }
func (BaseHooks) AllowPrune() bool { return false }

// Queryable is implemented by indexes that answer point lookups over the API.
type Queryable interface {
	// Lookup resolves key (a hash or a height, depending on the index) to a
	// JSON-encodable value, or ErrNotFound.
	Lookup(ctx context.Context, key string) (any, error)
}
