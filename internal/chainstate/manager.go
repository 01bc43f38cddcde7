// Package chainstate is the in-process chain engine indexes attach to. It keeps the
// block tree and the active chain, stores block data and publishes ordered
// notifications whenever the active chain changes.
package chainstate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/IndexSync/internal/logger"
	"github.com/goran-ethernal/IndexSync/pkg/chain"
)

// ErrUnknownParent is returned when a block does not link to any known block.
var ErrUnknownParent = errors.New("unknown parent block")

// pruneLockBuffer keeps a few blocks below every prune lock so short reorgs of a
// locked index can still read them.
const pruneLockBuffer = 10

// Manager owns the block tree and the active chain. mu is the main chain lock: every
// change to the active chain and the notifications describing it happen under it.
type Manager struct {
	log       *logger.Logger
	signals   *Signals
	store     *BlockStore
	pruneMode bool

	mu         sync.Mutex
	blocks     map[common.Hash]*chain.BlockIndex
	active     *chain.ActiveChain
	pruned     bool
	prunedUpTo uint64

	// pruneMu guards pruneLocks. It may be taken while mu is held, never the other way.
	pruneMu    sync.Mutex
	pruneLocks map[string]uint64
}

// NewManager creates an empty chain. pruneMode enables Prune.
func NewManager(store *BlockStore, signals *Signals, pruneMode bool, log *logger.Logger) *Manager {
	return &Manager{
		log:        log,
		signals:    signals,
		store:      store,
		pruneMode:  pruneMode,
		blocks:     make(map[common.Hash]*chain.BlockIndex),
		active:     chain.NewActiveChain(nil),
		pruneLocks: make(map[string]uint64),
	}
}

// ProcessBlock stores block with its receipts and makes it the tip of the active chain,
// disconnecting blocks down to the fork point and connecting the new branch. The first
// block ever processed becomes the root of the tree; every later block needs a known parent.
func (m *Manager) ProcessBlock(block *types.Block, receipts types.Receipts) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash := block.Hash()
	b, known := m.blocks[hash]
	if !known {
		parent := m.blocks[block.ParentHash()]
		if parent == nil && len(m.blocks) > 0 {
			return fmt.Errorf("%w: block %d/%s has parent %s",
				ErrUnknownParent, block.NumberU64(), hash.Hex(), block.ParentHash().Hex())
		}
		if parent != nil && parent.Height+1 != block.NumberU64() {
			return fmt.Errorf("block %s has height %d, parent %s has height %d",
				hash.Hex(), block.NumberU64(), parent.Hash.Hex(), parent.Height)
		}

		if err := m.store.Put(block, receipts); err != nil {
			return fmt.Errorf("failed to store block %d: %w", block.NumberU64(), err)
		}
		b = chain.NewBlockIndex(block.Header(), parent)
		m.blocks[hash] = b
	}

	if m.active.Tip() == b {
		return nil
	}
	return m.activate(b)
}

// Load rebuilds the block tree and the active chain from the block store. It must run
// on an empty manager before any index attaches; no notifications are published.
// Loading an empty store leaves the manager empty.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.blocks) > 0 {
		return errors.New("chain state is already loaded")
	}

	err := m.store.ForEachHeader(func(header *types.Header) error {
		parent := m.blocks[header.ParentHash]
		if parent == nil && len(m.blocks) > 0 {
			return fmt.Errorf("%w: stored block %d/%s has parent %s",
				ErrUnknownParent, header.Number.Uint64(), header.Hash().Hex(), header.ParentHash.Hex())
		}
		b := chain.NewBlockIndex(header, parent)
		m.blocks[b.Hash] = b
		return nil
	})
	if err != nil {
		m.blocks = make(map[common.Hash]*chain.BlockIndex)
		return fmt.Errorf("failed to load block tree: %w", err)
	}

	hash, ok, err := m.store.Tip()
	if err != nil {
		return fmt.Errorf("failed to load tip: %w", err)
	}
	if !ok {
		if len(m.blocks) > 0 {
			m.log.Warnf("block store holds %d blocks but no tip, starting empty", len(m.blocks))
			m.blocks = make(map[common.Hash]*chain.BlockIndex)
		}
		return nil
	}
	tip := m.blocks[hash]
	if tip == nil {
		return fmt.Errorf("recorded tip %s is not in the block store", hash.Hex())
	}
	m.active.SetTip(tip)
	tipHeightSet(tip.Height)

	height, pruned, err := m.store.PruneHeight()
	if err != nil {
		return fmt.Errorf("failed to load prune height: %w", err)
	}
	m.pruned, m.prunedUpTo = pruned, height

	m.log.Infof("loaded %d blocks, tip %s", len(m.blocks), tip)
	return nil
}

func (m *Manager) activate(tip *chain.BlockIndex) error {
	old := m.active.Tip()
	fork := chain.LastCommonAncestor(old, tip)

	var connect []*chain.BlockIndex
	for b := tip; b != nil && b != fork; b = b.Parent {
		connect = append(connect, b)
	}

	// Read everything before touching the chain so a missing block leaves it unchanged.
	infos := make([]chain.BlockInfo, len(connect))
	for i, b := range connect {
		block, receipts, err := m.ReadBlock(b, true)
		if err != nil {
			return fmt.Errorf("cannot connect block %s: %w", b, err)
		}
		infos[len(connect)-1-i] = blockInfo(b, block, receipts)
	}

	var disconnected int
	for b := old; b != nil && b != fork; b = b.Parent {
		info := blockInfo(b, nil, nil)
		if block, err := m.store.Block(b.Hash); err == nil {
			info.Data = block
		}
		m.signals.BlockDisconnected(info)
		blocksDisconnectedInc()
		disconnected++
	}

	if err := m.store.SetTip(tip.Hash); err != nil {
		return fmt.Errorf("failed to record tip %s: %w", tip, err)
	}
	m.active.SetTip(tip)

	for i, info := range infos {
		info.ChainTip = i == len(infos)-1
		m.signals.BlockConnected(chain.RoleNormal, info)
		blocksConnectedInc()
	}

	if disconnected > 0 {
		m.log.Infof("reorg: disconnected %d blocks from %s, connected %d up to %s (fork at %s)",
			disconnected, old, len(infos), tip, fork)
	} else {
		m.log.Debugf("new tip %s", tip)
	}
	tipHeightSet(tip.Height)

	return nil
}

func blockInfo(b *chain.BlockIndex, block *types.Block, receipts types.Receipts) chain.BlockInfo {
	return chain.BlockInfo{
		Hash:     b.Hash,
		PrevHash: b.Header.ParentHash,
		Height:   b.Height,
		Data:     block,
		Undo:     receipts,
	}
}

// Flush publishes the locator of the current tip to subscribers so they can persist
// their progress.
func (m *Manager) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()

	tip := m.active.Tip()
	if tip == nil {
		return
	}
	m.signals.ChainStateFlushed(chain.RoleNormal, chain.NewLocator(tip))
	flushesInc()
}

// AttachChain resolves locator, runs prepare and registers n, all under the main lock,
// so no chain change can slip between prepare and the subscription. A locator whose tip
// is unknown resolves to its highest entry on the active chain; start is then not the
// locator tip.
func (m *Manager) AttachChain(
	n chain.Notifications,
	locator chain.Locator,
	opts chain.NotifyOptions,
	prepare chain.PrepareFunc,
) (chain.Handler, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var start *chain.BlockIndex
	if !locator.IsNull() {
		start = m.blocks[locator.Tip()]
		if start == nil {
			// The tip may be on a branch this process never saw; resume at the
			// highest locator entry on the active chain instead.
			start = locator.FindFork(m.active, func(hash common.Hash) *chain.BlockIndex {
				return m.blocks[hash]
			})
		}
	}

	if err := prepare(start, m.active.Tip() == start); err != nil {
		return nil, err
	}
	return m.signals.Register(n, opts), nil
}

// WithLock runs fn under the main lock. fn must not call back into the Manager.
func (m *Manager) WithLock(fn func(active *chain.ActiveChain)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn(m.active)
}

// LookupBlockIndex returns any known block, on the active chain or not.
func (m *Manager) LookupBlockIndex(hash common.Hash) *chain.BlockIndex {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.blocks[hash]
}

// FindBlock returns the locator of a known block.
func (m *Manager) FindBlock(hash common.Hash) (chain.Locator, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blocks[hash]
	if !ok {
		return chain.Locator{}, false
	}
	return chain.NewLocator(b), true
}

// Tip returns the tip of the active chain.
func (m *Manager) Tip() *chain.BlockIndex {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.active.Tip()
}

// BlockAt returns the active chain's block at height.
func (m *Manager) BlockAt(height uint64) *chain.BlockIndex {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.active.At(height)
}

// ReadBlock loads the data of b. Receipts are only loaded when undo is set.
func (m *Manager) ReadBlock(b *chain.BlockIndex, undo bool) (*types.Block, types.Receipts, error) {
	block, err := m.store.Block(b.Hash)
	if err != nil {
		return nil, nil, err
	}
	if !undo {
		return block, nil, nil
	}

	receipts, err := m.store.Receipts(block)
	if err != nil {
		return nil, nil, err
	}
	return block, receipts, nil
}

// CallFunctionInQueue schedules fn on the notification queue.
func (m *Manager) CallFunctionInQueue(fn func()) {
	m.signals.CallFunctionInQueue(fn)
}

// SyncWithQueue waits until all notifications queued so far were delivered.
func (m *Manager) SyncWithQueue(ctx context.Context) error {
	return m.signals.SyncWithQueue(ctx)
}

// PruneMode reports whether block data is pruned.
func (m *Manager) PruneMode() bool {
	return m.pruneMode
}

// UpdatePruneLock pins block data from height upwards on behalf of name.
func (m *Manager) UpdatePruneLock(name string, height uint64) {
	m.pruneMu.Lock()
	defer m.pruneMu.Unlock()

	m.pruneLocks[name] = height
}

// DeletePruneLock releases the lock held by name.
func (m *Manager) DeletePruneLock(name string) {
	m.pruneMu.Lock()
	defer m.pruneMu.Unlock()

	delete(m.pruneLocks, name)
}

// Prune removes the data of blocks more than keep blocks below the tip, never touching
// heights pinned by a prune lock. It returns the number of pruned blocks.
func (m *Manager) Prune(keep uint64) (int, error) {
	if !m.pruneMode {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tip := m.active.Tip()
	if tip == nil || tip.Height < tip.Root().Height+keep {
		return 0, nil
	}
	limit := tip.Height - keep

	m.pruneMu.Lock()
	for name, height := range m.pruneLocks {
		if height <= pruneLockBuffer {
			m.pruneMu.Unlock()
			m.log.Debugf("prune lock %q at height %d blocks pruning", name, height)
			return 0, nil
		}
		limit = min(limit, height-pruneLockBuffer-1)
	}
	m.pruneMu.Unlock()

	if m.pruned && limit <= m.prunedUpTo {
		return 0, nil
	}

	var count int
	for hash, b := range m.blocks {
		if b.Height > limit || (m.pruned && b.Height <= m.prunedUpTo) {
			continue
		}
		if err := m.store.Prune(hash); err != nil {
			return count, fmt.Errorf("failed to prune block %s: %w", b, err)
		}
		count++
	}

	if err := m.store.SetPruneHeight(limit); err != nil {
		return count, fmt.Errorf("failed to record prune height: %w", err)
	}
	m.pruned = true
	m.prunedUpTo = limit
	prunedBlocksAdd(count)
	pruneHeightSet(limit)

	return count, nil
}
