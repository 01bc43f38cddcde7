// Package follower feeds the chain state from an Ethereum JSON-RPC node.
package follower

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	icommon "github.com/goran-ethernal/IndexSync/internal/common"
	"github.com/goran-ethernal/IndexSync/internal/logger"
	"github.com/goran-ethernal/IndexSync/internal/metrics"
	itypes "github.com/goran-ethernal/IndexSync/internal/types"
	"github.com/goran-ethernal/IndexSync/pkg/chain"
	"github.com/goran-ethernal/IndexSync/pkg/config"
	"github.com/goran-ethernal/IndexSync/pkg/rpc"
	"github.com/lightningnetwork/lnd/clock"
)

// ChainState is the part of the chain engine the follower feeds.
type ChainState interface {
	ProcessBlock(block *types.Block, receipts types.Receipts) error
	LookupBlockIndex(hash common.Hash) *chain.BlockIndex
	BlockAt(height uint64) *chain.BlockIndex
	Tip() *chain.BlockIndex
	Flush()
}

// Follower polls the node head and submits every new block, with its receipts, to the
// chain state. Reorgs are resolved by walking the node's branch back to a known block.
type Follower struct {
	cfg      config.ChainConfig
	finality itypes.BlockFinality
	client   rpc.EthClient
	chain    ChainState
	log      *logger.Logger
	clock    clock.Clock

	lastFlush time.Time
}

// New creates a follower. A nil log or clock selects the defaults.
func New(
	cfg config.ChainConfig,
	client rpc.EthClient,
	cs ChainState,
	log *logger.Logger,
	clk clock.Clock,
) (*Follower, error) {
	cfg.ApplyDefaults()

	finality, err := itypes.ParseBlockFinality(cfg.Finality)
	if err != nil {
		return nil, err
	}
	if client == nil || cs == nil {
		return nil, errors.New("follower requires an RPC client and a chain state")
	}
	if log == nil {
		log = logger.GetDefaultLogger().WithComponent(icommon.ComponentFollower)
	}
	if clk == nil {
		clk = clock.NewDefaultClock()
	}

	return &Follower{
		cfg:       cfg,
		finality:  finality,
		client:    client,
		chain:     cs,
		log:       log,
		clock:     clk,
		lastFlush: clk.Now(),
	}, nil
}

// Run follows the node until ctx is cancelled. A failed poll is retried on the next
// tick; only a reorg deeper than max_reorg_depth stops the follower.
func (f *Follower) Run(ctx context.Context) error {
	f.log.Infof("following %s head from block %d (poll every %s, flush every %s)",
		f.finality, f.cfg.StartBlock, f.cfg.PollInterval, f.cfg.FlushInterval)
	metrics.ComponentHealthSet(icommon.ComponentFollower, true)
	defer f.chain.Flush()

	for {
		if err := f.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrReorgTooDeep) {
				metrics.ComponentHealthSet(icommon.ComponentFollower, false)
				metrics.ErrorsInc(icommon.ComponentFollower, "fatal")
				return err
			}
			metrics.ErrorsInc(icommon.ComponentFollower, "error")
			f.log.Warnf("poll failed, retrying in %s: %v", f.cfg.PollInterval, err)
		}

		select {
		case <-ctx.Done():
			f.log.Info("follower stopped")
			return nil
		case <-f.clock.TickAfter(f.cfg.PollInterval.Duration):
		}
	}
}

// Poll brings the chain state up to the current node head. It must not run
// concurrently with Run.
func (f *Follower) Poll(ctx context.Context) error {
	head, err := f.client.HeaderByFinality(ctx, f.finality)
	if err != nil {
		return fmt.Errorf("failed to get %s head: %w", f.finality, err)
	}
	if head == nil {
		return fmt.Errorf("node returned no %s head", f.finality)
	}
	headNum := head.Number.Uint64()
	headHeightSet(headNum)

	if headNum < f.cfg.StartBlock {
		f.log.Debugf("%s head %d is below start block %d", f.finality, headNum, f.cfg.StartBlock)
		return nil
	}

	tip := f.chain.Tip()
	if tip != nil && f.finality.Reversible() {
		if err := f.verifyRecent(ctx, tip, headNum); err != nil {
			return err
		}
		tip = f.chain.Tip()
	}

	next := f.cfg.StartBlock
	if tip != nil {
		next = tip.Height + 1
	}
	if next <= headNum {
		f.log.Debugf("fetching blocks %d to %d", next, headNum)
	}

	for n := next; n <= headNum; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		block, err := f.client.BlockByNumber(ctx, n)
		if err != nil {
			return fmt.Errorf("failed to fetch block %d: %w", n, err)
		}
		if err := f.connect(ctx, block); err != nil {
			return err
		}
		f.maybeFlush()
	}

	f.maybeFlush()
	return nil
}

// verifyRecent compares the last max_reorg_depth active blocks with the node's
// canonical headers and moves the chain state to the node's branch when they differ.
// Blocks the node has not reached yet are left alone.
func (f *Follower) verifyRecent(ctx context.Context, tip *chain.BlockIndex, headNum uint64) error {
	root := tip.Root().Height
	top := min(tip.Height, headNum)
	if top < root {
		return nil
	}
	depth := min(f.cfg.MaxReorgDepth, top-root+1)

	heights := make([]uint64, 0, depth)
	for h := top - depth + 1; h <= top; h++ {
		heights = append(heights, h)
	}

	headers, err := f.client.BatchGetBlockHeaders(ctx, heights)
	if err != nil {
		return fmt.Errorf("failed to get headers %d to %d: %w", heights[0], top, err)
	}
	if len(headers) != len(heights) {
		return fmt.Errorf("requested %d headers, node returned %d", len(heights), len(headers))
	}

	for i, header := range headers {
		local := f.chain.BlockAt(heights[i])
		if header != nil && local != nil && header.Hash() == local.Hash {
			continue
		}

		f.log.Infof("node block %d differs from the active chain, switching branch", heights[i])
		block, err := f.client.BlockByNumber(ctx, top)
		if err != nil {
			return fmt.Errorf("failed to fetch block %d: %w", top, err)
		}
		return f.connect(ctx, block)
	}
	return nil
}

// connect submits block, first fetching and submitting the ancestors the chain state
// does not know yet.
func (f *Follower) connect(ctx context.Context, block *types.Block) error {
	branch := []*types.Block{block}

	if tip := f.chain.Tip(); tip != nil {
		for {
			lowest := branch[len(branch)-1]
			if f.chain.LookupBlockIndex(lowest.ParentHash()) != nil {
				break
			}

			if lowest.NumberU64() <= tip.Root().Height || tip.Height >= lowest.NumberU64()+f.cfg.MaxReorgDepth {
				rerr := NewReorgError(lowest.NumberU64(), tip.Height-min(tip.Height, lowest.NumberU64()-1),
					fmt.Sprintf("no known ancestor of block %d/%s", block.NumberU64(), block.Hash().Hex()))
				rerr.Err = ErrReorgTooDeep
				return rerr
			}

			parent, err := f.client.BlockByHash(ctx, lowest.ParentHash())
			if err != nil {
				return fmt.Errorf("failed to fetch block %s: %w", lowest.ParentHash().Hex(), err)
			}
			branch = append(branch, parent)
		}

		fork := f.chain.LookupBlockIndex(branch[len(branch)-1].ParentHash())
		if fork != tip {
			ancestor := chain.LastCommonAncestor(tip, fork)
			if ancestor == nil {
				return fmt.Errorf("block %d/%s shares no ancestor with tip %s",
					block.NumberU64(), block.Hash().Hex(), tip)
			}

			depth := tip.Height - ancestor.Height
			rerr := NewReorgError(ancestor.Height+1, depth,
				fmt.Sprintf("block %d/%s does not extend tip %s", block.NumberU64(), block.Hash().Hex(), tip))
			if depth > f.cfg.MaxReorgDepth {
				rerr.Err = ErrReorgTooDeep
				return rerr
			}

			f.log.Warn(rerr.Error())
			reorgDetectedLog(depth, f.clock.Now())
		}
	}

	for i := len(branch) - 1; i >= 0; i-- {
		if err := f.submit(ctx, branch[i]); err != nil {
			return err
		}
	}
	return nil
}

// submit fetches the receipts of block and hands both to the chain state. Known
// blocks are resubmitted without receipts.
func (f *Follower) submit(ctx context.Context, block *types.Block) error {
	var receipts types.Receipts
	if f.chain.LookupBlockIndex(block.Hash()) == nil {
		var err error
		receipts, err = f.client.BlockReceipts(ctx, block.Hash())
		if err != nil {
			return fmt.Errorf("failed to fetch receipts of block %d: %w", block.NumberU64(), err)
		}
		if len(receipts) != len(block.Transactions()) {
			return fmt.Errorf("block %d has %d transactions but the node returned %d receipts",
				block.NumberU64(), len(block.Transactions()), len(receipts))
		}
	}

	if err := f.chain.ProcessBlock(block, receipts); err != nil {
		return fmt.Errorf("failed to process block %d: %w", block.NumberU64(), err)
	}
	blocksFetchedInc()
	return nil
}

// maybeFlush signals a chain state flush once flush_interval has passed since the last one.
func (f *Follower) maybeFlush() {
	now := f.clock.Now()
	if now.Sub(f.lastFlush) < f.cfg.FlushInterval.Duration {
		return
	}
	f.chain.Flush()
	f.lastFlush = now
}
