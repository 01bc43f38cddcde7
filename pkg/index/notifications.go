package index

import "github.com/goran-ethernal/IndexSync/pkg/chain"

// notifications filters chain events and forwards the relevant ones to the engine.
type notifications struct {
	engine *Engine
}

var _ chain.Notifications = (*notifications)(nil)

func (n *notifications) BlockConnected(role chain.Role, block chain.BlockInfo) {
	e := n.engine
	if n.ignoreBlockConnected(role, block) {
		return
	}

	pindex := e.chain.LookupBlockIndex(block.Hash)
	best := e.best.Load()
	if best != nil && best != pindex.Parent {
		if err := e.Rewind(best, pindex.Parent); err != nil {
			e.fatalf("failed to rewind index %s to a previous chain tip: %w", e.Name(), err)
			return
		}
	}

	if err := e.index.CustomAppend(block); err != nil {
		e.fatalf("failed to write block %s to index: %w", pindex, err)
		return
	}
	blocksAppendedInc(e.Name(), "live")

	// Last, so BlockUntilSyncedToCurrentChain callers observing it find the block applied.
	e.setBestBlock(pindex)
}

func (n *notifications) ignoreBlockConnected(role chain.Role, block chain.BlockInfo) bool {
	e := n.engine

	// Assumed-valid blocks are replayed in order once validated.
	if role == chain.RoleAssumedValid {
		return true
	}
	if !e.ready.Load() {
		return true
	}

	pindex := e.chain.LookupBlockIndex(block.Hash)
	if pindex == nil {
		e.fatalf("connected block %s/%d is unknown to the chain", block.Hash.Hex(), block.Height)
		return true
	}

	best := e.best.Load()
	if best == nil {
		if pindex.Parent != nil {
			e.fatalf("first block connected is not the first block of the chain (height=%d)", pindex.Height)
			return true
		}
		return false
	}

	// The block may connect to an ancestor of best; the rewind in BlockConnected
	// removes the blocks above it first.
	if pindex.Parent == nil || best.Ancestor(pindex.Height-1) != pindex.Parent {
		e.fatalf("block %s does not descend from the index best block %s", pindex, best)
		return true
	}
	return false
}

func (n *notifications) BlockDisconnected(chain.BlockInfo) {}

func (n *notifications) ChainStateFlushed(role chain.Role, locator chain.Locator) {
	e := n.engine
	if role == chain.RoleAssumedValid || !e.ready.Load() {
		return
	}
	if locator.IsNull() {
		return
	}

	locatorTip := e.chain.LookupBlockIndex(locator.Tip())
	if locatorTip == nil {
		e.fatalf("first block (hash=%s) in locator was not found", locator.Tip().Hex())
		return
	}

	// A locator above best or on another branch was sent before block notifications
	// still in the queue; commit once those are applied. An ancestor of best is fine.
	best := e.best.Load()
	if best == nil || best.Ancestor(locatorTip.Height) != locatorTip {
		staleFlushesInc(e.Name())
		e.log.Debugf("%s: ignoring flush at %s, best block is %s", e.Name(), locatorTip, e.describeBest())
		return
	}

	// Commit logs its own failures; the next flush retries.
	_ = e.Commit()
}
