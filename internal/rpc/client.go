package rpc

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/goran-ethernal/IndexSync/internal/logger"
	itypes "github.com/goran-ethernal/IndexSync/internal/types"
	"github.com/goran-ethernal/IndexSync/pkg/config"
	pkgrpc "github.com/goran-ethernal/IndexSync/pkg/rpc"
	"github.com/lightningnetwork/lnd/clock"
	"golang.org/x/time/rate"
)

const maxBatch = 100

// Compile-time check to ensure Client implements pkgrpc.EthClient interface.
var _ pkgrpc.EthClient = (*Client)(nil)

// Client wraps the Ethereum RPC client with retries and request metrics.
type Client struct {
	eth   *ethclient.Client
	rpc   *rpc.Client
	retry *retrier
	limit *rate.Limiter
	clock clock.Clock
}

// NewClient dials endpoint. A nil retry config executes every request once.
func NewClient(ctx context.Context, endpoint string, retry *config.RetryConfig, log *logger.Logger) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	clk := clock.NewDefaultClock()
	return &Client{
		eth:   ethclient.NewClient(rpcClient),
		rpc:   rpcClient,
		retry: newRetrier(retry, clk, log),
		clock: clk,
	}, nil
}

// WithRateLimit caps the requests per second sent to the node, retries included.
// A non-positive limit removes the cap.
func (c *Client) WithRateLimit(perSecond float64, burst int) *Client {
	if perSecond <= 0 {
		c.limit = nil
		return c
	}
	c.limit = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	return c
}

// Close closes the RPC client connection.
func (c *Client) Close() {
	c.eth.Close()
}

// call runs fn with retries and records the request metrics of method.
func (c *Client) call(ctx context.Context, method string, fn func() error) error {
	start := c.clock.Now()
	err := c.retry.do(ctx, method, func() error {
		if c.limit != nil {
			if err := c.limit.Wait(ctx); err != nil {
				return err
			}
		}
		return fn()
	})
	requestLog(method, c.clock.Now().Sub(start), err)
	return err
}

// HeaderByFinality returns the finalized, safe or latest head.
func (c *Client) HeaderByFinality(ctx context.Context, finality itypes.BlockFinality) (*types.Header, error) {
	number, err := finality.BlockNumber()
	if err != nil {
		return nil, err
	}

	var header *types.Header
	err = c.call(ctx, "eth_getBlockByNumber", func() (err error) {
		header, err = c.eth.HeaderByNumber(ctx, number)
		return err
	})
	return header, err
}

// BlockByNumber returns the canonical block at number.
func (c *Client) BlockByNumber(ctx context.Context, number uint64) (*types.Block, error) {
	var block *types.Block
	err := c.call(ctx, "eth_getBlockByNumber", func() (err error) {
		block, err = c.eth.BlockByNumber(ctx, new(big.Int).SetUint64(number))
		return err
	})
	return block, err
}

// BlockByHash returns the block with the given hash.
func (c *Client) BlockByHash(ctx context.Context, hash common.Hash) (*types.Block, error) {
	var block *types.Block
	err := c.call(ctx, "eth_getBlockByHash", func() (err error) {
		block, err = c.eth.BlockByHash(ctx, hash)
		return err
	})
	return block, err
}

// BlockReceipts returns the receipts of the block with the given hash.
func (c *Client) BlockReceipts(ctx context.Context, hash common.Hash) (types.Receipts, error) {
	var receipts []*types.Receipt
	err := c.call(ctx, "eth_getBlockReceipts", func() (err error) {
		receipts, err = c.eth.BlockReceipts(ctx, rpc.BlockNumberOrHashWithHash(hash, false))
		return err
	})
	return receipts, err
}

// BatchGetBlockHeaders retrieves headers for multiple block numbers, maxBatch per call.
func (c *Client) BatchGetBlockHeaders(ctx context.Context, blockNums []uint64) ([]*types.Header, error) {
	allResults := make([]*types.Header, 0, len(blockNums))

	for i := 0; i < len(blockNums); i += maxBatch {
		chunk := blockNums[i:min(i+maxBatch, len(blockNums))]
		results := make([]*types.Header, len(chunk))

		err := c.call(ctx, "batch_eth_getBlockByNumber", func() error {
			batch := make([]rpc.BatchElem, len(chunk))
			for j, blockNum := range chunk {
				batch[j] = rpc.BatchElem{
					Method: "eth_getBlockByNumber",
					Args:   []any{toBlockNumArg(blockNum), false}, // false = don't include transactions
					Result: &results[j],
				}
			}

			if err := c.rpc.BatchCallContext(ctx, batch); err != nil {
				return err
			}
			for _, elem := range batch {
				if elem.Error != nil {
					return elem.Error
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		allResults = append(allResults, results...)
	}

	return allResults, nil
}

// toBlockNumArg converts a block number to hex format.
func toBlockNumArg(blockNum uint64) string {
	return fmt.Sprintf("0x%x", blockNum)
}
