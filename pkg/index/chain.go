package index

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/IndexSync/pkg/chain"
)

// Chain is what the engine needs from the chain engine.
type Chain interface {
	// AttachChain resolves locator, calls prepare and subscribes n, atomically with
	// respect to chain changes. A prepare error is returned unchanged and n is not attached.
	AttachChain(n chain.Notifications, locator chain.Locator, opts chain.NotifyOptions,
		prepare chain.PrepareFunc) (chain.Handler, error)

	// WithLock runs fn under the main chain lock.
	WithLock(fn func(active *chain.ActiveChain))

	// LookupBlockIndex returns any known block, or nil.
	LookupBlockIndex(hash common.Hash) *chain.BlockIndex

	// FindBlock returns the locator of a known block.
	FindBlock(hash common.Hash) (chain.Locator, bool)

	// ReadBlock loads block data, with receipts when undo is set.
	ReadBlock(b *chain.BlockIndex, undo bool) (*types.Block, types.Receipts, error)

	// CallFunctionInQueue schedules fn behind every notification queued so far.
	CallFunctionInQueue(fn func())

	// SyncWithQueue waits for the notification queue to drain up to the call.
	SyncWithQueue(ctx context.Context) error

	UpdatePruneLock(name string, height uint64)
	DeletePruneLock(name string)
	PruneMode() bool
}
