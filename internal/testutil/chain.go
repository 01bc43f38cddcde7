// Package testutil builds deterministic block chains for tests.
package testutil

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const txGas = 21000

// TransferTopic is the topic of every log generated by NewChain.
var TransferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// Block is a generated block together with its receipts.
type Block struct {
	Block    *types.Block
	Receipts types.Receipts
}

// Hash returns the hash of the block.
func (b Block) Hash() common.Hash {
	return b.Block.Hash()
}

// NumberU64 returns the height of the block.
func (b Block) NumberU64() uint64 {
	return b.Block.NumberU64()
}

// NewChain builds n blocks on top of parent, or a new chain rooted at height start when
// parent is nil. Each block carries txs transactions, each with one receipt log. salt makes
// blocks and transactions of different branches distinct.
func NewChain(parent *types.Block, start uint64, n, txs int, salt uint64) []Block {
	blocks := make([]Block, 0, n)
	for i := range n {
		height := start + uint64(i)
		var parentHash common.Hash
		if parent != nil {
			height = parent.NumberU64() + 1
			parentHash = parent.Hash()
		}

		b := newBlock(parentHash, height, txs, salt)
		blocks = append(blocks, b)
		parent = b.Block
	}
	return blocks
}

// Address returns the deterministic recipient used for transaction i of a block.
func Address(i int) common.Address {
	return common.BigToAddress(big.NewInt(int64(0x1000 + i)))
}

func newBlock(parentHash common.Hash, height uint64, txCount int, salt uint64) Block {
	saltBytes := binary.BigEndian.AppendUint64(nil, salt)

	transactions := make([]*types.Transaction, 0, txCount)
	receipts := make(types.Receipts, 0, txCount)
	var (
		bloom      types.Bloom
		cumulative uint64
	)
	for i := range txCount {
		to := Address(i)
		tx := types.NewTx(&types.LegacyTx{
			Nonce:    height*1000 + uint64(i),
			To:       &to,
			Value:    big.NewInt(int64(i + 1)),
			Gas:      txGas,
			GasPrice: big.NewInt(1),
			Data:     saltBytes,
		})
		transactions = append(transactions, tx)

		cumulative += txGas
		log := &types.Log{
			Address:     to,
			Topics:      []common.Hash{TransferTopic},
			Data:        saltBytes,
			BlockNumber: height,
			TxHash:      tx.Hash(),
			TxIndex:     uint(i),
		}
		bloom.Add(log.Address.Bytes())
		bloom.Add(TransferTopic.Bytes())

		receipts = append(receipts, &types.Receipt{
			Status:            types.ReceiptStatusSuccessful,
			CumulativeGasUsed: cumulative,
			GasUsed:           txGas,
			TxHash:            tx.Hash(),
			Logs:              []*types.Log{log},
			BlockNumber:       new(big.Int).SetUint64(height),
			TransactionIndex:  uint(i),
		})
	}

	header := &types.Header{
		ParentHash: parentHash,
		Number:     new(big.Int).SetUint64(height),
		Difficulty: big.NewInt(1),
		GasLimit:   30_000_000,
		GasUsed:    cumulative,
		Time:       1_700_000_000 + height*12,
		Extra:      saltBytes,
		Bloom:      bloom,
	}
	block := types.NewBlockWithHeader(header).WithBody(types.Body{Transactions: transactions})

	for _, r := range receipts {
		r.BlockHash = block.Hash()
		for _, l := range r.Logs {
			l.BlockHash = block.Hash()
		}
	}

	return Block{Block: block, Receipts: receipts}
}
