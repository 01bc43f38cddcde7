package rpc

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	itypes "github.com/goran-ethernal/IndexSync/internal/types"
)

// EthClient is the part of the Ethereum JSON-RPC API the chain follower uses.
type EthClient interface {
	// Close closes the RPC client connection.
	Close()

	// HeaderByFinality returns the head for the finality tag.
	HeaderByFinality(ctx context.Context, finality itypes.BlockFinality) (*types.Header, error)

	// BlockByNumber returns the canonical block at number, with transactions.
	BlockByNumber(ctx context.Context, number uint64) (*types.Block, error)

	// BlockByHash returns a block by hash, canonical or not.
	BlockByHash(ctx context.Context, hash common.Hash) (*types.Block, error)

	// BlockReceipts returns the receipts of a block in transaction order.
	BlockReceipts(ctx context.Context, hash common.Hash) (types.Receipts, error)

	// BatchGetBlockHeaders retrieves headers for multiple block numbers in batch calls.
	BatchGetBlockHeaders(ctx context.Context, blockNums []uint64) ([]*types.Header, error)
}
