package chainstate

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/goran-ethernal/IndexSync/pkg/kvdb"
)

var (
	// ErrBlockNotFound is returned when no data was ever stored for a block.
	ErrBlockNotFound = errors.New("block data not found")
	// ErrBlockPruned is returned when a block's data was removed by pruning.
	ErrBlockPruned = errors.New("block data pruned")
)

const (
	blockPrefix    = 'b'
	receiptsPrefix = 'r'
	prunedPrefix   = 'p'
	headerPrefix   = 'h'
)

var (
	tipKey         = []byte{'t'}
	pruneHeightKey = []byte{'m'}
)

func storeKey(prefix byte, hash common.Hash) []byte {
	return append([]byte{prefix}, hash.Bytes()...)
}

// headerKey orders headers by height so parents are iterated before their children.
func headerKey(height uint64, hash common.Hash) []byte {
	key := binary.BigEndian.AppendUint64([]byte{headerPrefix}, height)
	return append(key, hash.Bytes()...)
}

// BlockStore keeps block bodies and receipts (the undo data indexes consume) RLP
// encoded in a key-value store. Headers, the active tip and the prune height are kept
// next to them so the block tree can be rebuilt after a restart. Pruning never
// removes headers.
type BlockStore struct {
	db kvdb.Store
}

// NewBlockStore stores blocks in db.
func NewBlockStore(db kvdb.Store) *BlockStore {
	return &BlockStore{db: db}
}

// Put stores block and its receipts atomically.
func (s *BlockStore) Put(block *types.Block, receipts types.Receipts) error {
	blockData, err := rlp.EncodeToBytes(block)
	if err != nil {
		return fmt.Errorf("failed to encode block %s: %w", block.Hash().Hex(), err)
	}

	headerData, err := rlp.EncodeToBytes(block.Header())
	if err != nil {
		return fmt.Errorf("failed to encode header %s: %w", block.Hash().Hex(), err)
	}

	stored := make([]*types.ReceiptForStorage, len(receipts))
	for i, r := range receipts {
		stored[i] = (*types.ReceiptForStorage)(r)
	}
	receiptData, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return fmt.Errorf("failed to encode receipts of %s: %w", block.Hash().Hex(), err)
	}

	batch := s.db.NewBatch()
	if err := batch.Put(headerKey(block.NumberU64(), block.Hash()), headerData); err != nil {
		return err
	}
	if err := batch.Put(storeKey(blockPrefix, block.Hash()), blockData); err != nil {
		return err
	}
	if err := batch.Put(storeKey(receiptsPrefix, block.Hash()), receiptData); err != nil {
		return err
	}
	if err := batch.Delete(storeKey(prunedPrefix, block.Hash())); err != nil {
		return err
	}
	return s.db.Write(batch)
}

// Block returns the stored block.
func (s *BlockStore) Block(hash common.Hash) (*types.Block, error) {
	data, err := s.read(blockPrefix, hash)
	if err != nil {
		return nil, err
	}

	block := new(types.Block)
	if err := rlp.DecodeBytes(data, block); err != nil {
		return nil, fmt.Errorf("failed to decode block %s: %w", hash.Hex(), err)
	}
	return block, nil
}

// Receipts returns the stored receipts. Only consensus fields survive storage;
// block and transaction references are filled back in from block.
func (s *BlockStore) Receipts(block *types.Block) (types.Receipts, error) {
	hash := block.Hash()
	data, err := s.read(receiptsPrefix, hash)
	if err != nil {
		return nil, err
	}

	var stored []*types.ReceiptForStorage
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode receipts of %s: %w", hash.Hex(), err)
	}

	txs := block.Transactions()
	receipts := make(types.Receipts, len(stored))
	var prevCumulative uint64
	for i, sr := range stored {
		r := (*types.Receipt)(sr)
		r.BlockHash = hash
		r.BlockNumber = block.Number()
		r.TransactionIndex = uint(i) //nolint:gosec
		r.GasUsed = r.CumulativeGasUsed - prevCumulative
		prevCumulative = r.CumulativeGasUsed
		if i < len(txs) {
			r.TxHash = txs[i].Hash()
		}
		for _, l := range r.Logs {
			l.BlockHash = hash
			l.BlockNumber = block.NumberU64()
			l.TxHash = r.TxHash
			l.TxIndex = r.TransactionIndex
		}
		receipts[i] = r
	}
	return receipts, nil
}

// Prune drops the data of a block and remembers that it was pruned.
func (s *BlockStore) Prune(hash common.Hash) error {
	batch := s.db.NewBatch()
	if err := batch.Delete(storeKey(blockPrefix, hash)); err != nil {
		return err
	}
	if err := batch.Delete(storeKey(receiptsPrefix, hash)); err != nil {
		return err
	}
	if err := batch.Put(storeKey(prunedPrefix, hash), []byte{1}); err != nil {
		return err
	}
	return s.db.Write(batch)
}

// Has reports whether the block's data is available.
func (s *BlockStore) Has(hash common.Hash) (bool, error) {
	return s.db.Has(storeKey(blockPrefix, hash))
}

func (s *BlockStore) read(prefix byte, hash common.Hash) ([]byte, error) {
	data, err := s.db.Get(storeKey(prefix, hash))
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, kvdb.ErrNotFound) {
		return nil, err
	}

	pruned, hasErr := s.db.Has(storeKey(prunedPrefix, hash))
	if hasErr != nil {
		return nil, hasErr
	}
	if pruned {
		return nil, fmt.Errorf("%w: %s", ErrBlockPruned, hash.Hex())
	}
	return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, hash.Hex())
}

// ForEachHeader calls fn for every stored header in ascending height order.
func (s *BlockStore) ForEachHeader(fn func(header *types.Header) error) error {
	return s.db.ForEach([]byte{headerPrefix}, func(key, value []byte) error {
		header := new(types.Header)
		if err := rlp.DecodeBytes(value, header); err != nil {
			return fmt.Errorf("failed to decode header %x: %w", key[1:], err)
		}
		return fn(header)
	})
}

// SetTip records the tip of the active chain.
func (s *BlockStore) SetTip(hash common.Hash) error {
	return s.db.Put(tipKey, hash.Bytes())
}

// Tip returns the recorded tip of the active chain. ok is false when none was recorded.
func (s *BlockStore) Tip() (hash common.Hash, ok bool, err error) {
	data, err := s.db.Get(tipKey)
	if errors.Is(err, kvdb.ErrNotFound) {
		return common.Hash{}, false, nil
	}
	if err != nil {
		return common.Hash{}, false, err
	}
	if len(data) != common.HashLength {
		return common.Hash{}, false, fmt.Errorf("corrupt tip record of %d bytes", len(data))
	}
	return common.BytesToHash(data), true, nil
}

// SetPruneHeight records the height up to which block data was pruned.
func (s *BlockStore) SetPruneHeight(height uint64) error {
	return s.db.Put(pruneHeightKey, binary.BigEndian.AppendUint64(nil, height))
}

// PruneHeight returns the recorded prune height. ok is false when nothing was pruned yet.
func (s *BlockStore) PruneHeight() (height uint64, ok bool, err error) {
	data, err := s.db.Get(pruneHeightKey)
	if errors.Is(err, kvdb.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(data) != 8 { //nolint:mnd
		return 0, false, fmt.Errorf("corrupt prune height record of %d bytes", len(data))
	}
	return binary.BigEndian.Uint64(data), true, nil
}

// Close closes the underlying store.
func (s *BlockStore) Close() error {
	return s.db.Close()
}
