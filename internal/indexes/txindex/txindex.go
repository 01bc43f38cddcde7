// Package txindex maps transaction hashes to their position in the active chain.
package txindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/goran-ethernal/IndexSync/internal/indexes"
	"github.com/goran-ethernal/IndexSync/internal/logger"
	"github.com/goran-ethernal/IndexSync/pkg/chain"
	"github.com/goran-ethernal/IndexSync/pkg/config"
	"github.com/goran-ethernal/IndexSync/pkg/index"
	"github.com/goran-ethernal/IndexSync/pkg/kvdb"
)

// Type is the factory name of the index.
const Type = "txindex"

const txPrefix = 't'

var (
	_ index.Index     = (*TxIndex)(nil)
	_ index.Queryable = (*TxIndex)(nil)
)

func init() {
	index.Register(Type, func(cfg config.IndexConfig, deps index.Deps) (index.Index, error) {
		return New(cfg.Name, deps)
	})
}

// Location is where a transaction was included.
type Location struct {
	TxHash      common.Hash `json:"tx_hash" rlp:"-"`
	BlockHash   common.Hash `json:"block_hash"`
	BlockNumber uint64      `json:"block_number"`
	Position    uint64      `json:"position"`
}

// TxIndex writes one record per transaction as blocks are appended and deletes the
// records of rewound blocks.
type TxIndex struct {
	index.BaseHooks

	name  string
	store kvdb.Store
	chain index.Chain
	log   *logger.Logger
}

// New creates a transaction index over deps.Store.
func New(name string, deps index.Deps) (*TxIndex, error) {
	if deps.Store == nil || deps.Chain == nil {
		return nil, errors.New("txindex requires a store and a chain")
	}
	if name == "" {
		name = Type
	}
	log := deps.Log
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &TxIndex{
		name:  name,
		store: deps.Store,
		chain: deps.Chain,
		log:   log,
	}, nil
}

func (x *TxIndex) Name() string {
	return x.name
}

// CustomAppend records every transaction of the block.
func (x *TxIndex) CustomAppend(block chain.BlockInfo) error {
	if block.Data == nil {
		return fmt.Errorf("block %s has no body", block.Key())
	}

	batch := x.store.NewBatch()
	for i, tx := range block.Data.Transactions() {
		data, err := rlp.EncodeToBytes(&Location{
			BlockHash:   block.Hash,
			BlockNumber: block.Height,
			Position:    uint64(i), //nolint:gosec
		})
		if err != nil {
			return fmt.Errorf("failed to encode location of %s: %w", tx.Hash().Hex(), err)
		}
		if err := batch.Put(indexes.HashKey(txPrefix, tx.Hash()), data); err != nil {
			return err
		}
	}

	if batch.Len() == 0 {
		return nil
	}
	return x.store.Write(batch)
}

// CustomRewind deletes the records of every block above newTip. The transactions of
// a branch the chain never saw cannot be listed; their records stay and FindTx skips them.
func (x *TxIndex) CustomRewind(current, newTip chain.BlockKey) error {
	b := x.chain.LookupBlockIndex(current.Hash)
	if b == nil {
		x.log.Warnf("%s: rewind start %s is unknown to the chain, leaving its records in place", x.name, current)
		return nil
	}

	batch := x.store.NewBatch()
	var blocks int
	for ; b != nil && b.Height > newTip.Height; b = b.Parent {
		block, _, err := x.chain.ReadBlock(b, false)
		if err != nil {
			return fmt.Errorf("failed to read rewound block %s: %w", b, err)
		}
		for _, tx := range block.Transactions() {
			if err := batch.Delete(indexes.HashKey(txPrefix, tx.Hash())); err != nil {
				return err
			}
		}
		blocks++
	}

	x.log.Debugf("%s: removing %d transactions of %d blocks", x.name, batch.Len(), blocks)
	return x.store.Write(batch)
}

// FindTx returns where the transaction was included. Records pointing at blocks the
// chain does not know are reported as not found.
func (x *TxIndex) FindTx(hash common.Hash) (*Location, error) {
	data, err := x.store.Get(indexes.HashKey(txPrefix, hash))
	if errors.Is(err, kvdb.ErrNotFound) {
		return nil, index.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	loc := new(Location)
	if err := rlp.DecodeBytes(data, loc); err != nil {
		return nil, fmt.Errorf("failed to decode location of %s: %w", hash.Hex(), err)
	}
	if x.chain.LookupBlockIndex(loc.BlockHash) == nil {
		return nil, index.ErrNotFound
	}
	loc.TxHash = hash
	return loc, nil
}

// Lookup resolves a transaction hash.
func (x *TxIndex) Lookup(_ context.Context, key string) (any, error) {
	k, err := indexes.ParseLookupKey(key)
	if err != nil {
		return nil, err
	}
	if !k.IsHash {
		return nil, fmt.Errorf("%w: txindex is keyed by transaction hash", indexes.ErrInvalidKey)
	}
	return x.FindTx(k.Hash)
}
