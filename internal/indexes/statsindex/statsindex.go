// Package statsindex keeps running chain totals per height.
package statsindex

import (
	"context"
	"errors"
	"fmt"
	"sync"

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
const Type = "statsindex"

// TipKey is the lookup key of the committed totals.
const TipKey = "tip"

const heightPrefix = 'h'

var committedKey = []byte{'s'}

var (
	_ index.Index     = (*StatsIndex)(nil)
	_ index.Queryable = (*StatsIndex)(nil)
)

func init() {
	index.Register(Type, func(cfg config.IndexConfig, deps index.Deps) (index.Index, error) {
		return New(cfg.Name, deps)
	})
}

// Stats are the totals of the chain up to and including one block.
type Stats struct {
	BlockHash   common.Hash `json:"block_hash"`
	BlockNumber uint64      `json:"block_number"`

	BlockTransactions uint64 `json:"block_transactions"`
	BlockGasUsed      uint64 `json:"block_gas_used"`
	BlockLogs         uint64 `json:"block_logs"`

	Blocks       uint64 `json:"total_blocks"`
	Transactions uint64 `json:"total_transactions"`
	GasUsed      uint64 `json:"total_gas_used"`
	Logs         uint64 `json:"total_logs"`
}

// StatsIndex writes one Stats record per height.
type StatsIndex struct {
	index.BaseHooks

	name  string
	store kvdb.Store
	log   *logger.Logger

	mu     sync.RWMutex
	totals *Stats
}

// New creates a stats index over deps.Store.
func New(name string, deps index.Deps) (*StatsIndex, error) {
	if deps.Store == nil {
		return nil, errors.New("statsindex requires a store")
	}
	if name == "" {
		name = Type
	}
	log := deps.Log
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &StatsIndex{name: name, store: deps.Store, log: log}, nil
}

func (s *StatsIndex) Name() string {
	return s.name
}

func (s *StatsIndex) CustomOptions() index.Options {
	return index.Options{ConnectUndoData: true}
}

func (s *StatsIndex) AllowPrune() bool {
	return true
}

func (s *StatsIndex) CustomInit(start *chain.BlockKey) error {
	if start == nil {
		s.setTotals(nil)
		return nil
	}

	rec, err := s.StatsAt(start.Height)
	if err != nil {
		return fmt.Errorf("cannot read stats of resume block %s: %w", start, err)
	}
	if rec.BlockHash != start.Hash {
		return fmt.Errorf("stats at height %d belong to %s, expected %s",
			start.Height, rec.BlockHash.Hex(), start.Hash.Hex())
	}
	s.setTotals(rec)
	return nil
}

func (s *StatsIndex) CustomAppend(block chain.BlockInfo) error {
	if block.Data == nil {
		return fmt.Errorf("block %s has no body", block.Key())
	}
	txs := uint64(len(block.Data.Transactions()))
	if uint64(len(block.Undo)) != txs {
		return fmt.Errorf("block %s has %d transactions but %d receipts", block.Key(), txs, len(block.Undo))
	}

	var logs uint64
	for _, r := range block.Undo {
		logs += uint64(len(r.Logs))
	}

	rec := &Stats{
		BlockHash:         block.Hash,
		BlockNumber:       block.Height,
		BlockTransactions: txs,
		BlockGasUsed:      block.Data.GasUsed(),
		BlockLogs:         logs,
	}
	if prev := s.Totals(); prev != nil {
		rec.Blocks = prev.Blocks
		rec.Transactions = prev.Transactions
		rec.GasUsed = prev.GasUsed
		rec.Logs = prev.Logs
	}
	rec.Blocks++
	rec.Transactions += txs
	rec.GasUsed += rec.BlockGasUsed
	rec.Logs += logs

	data, err := rlp.EncodeToBytes(rec)
	if err != nil {
		return fmt.Errorf("failed to encode stats of %s: %w", block.Key(), err)
	}
	if err := s.store.Put(indexes.HeightKey(heightPrefix, block.Height), data); err != nil {
		return err
	}

	s.setTotals(rec)
	return nil
}

// CustomRewind drops the records above newTip and restores the totals of newTip.
func (s *StatsIndex) CustomRewind(current, newTip chain.BlockKey) error {
	tip, err := s.StatsAt(newTip.Height)
	if err != nil {
		return fmt.Errorf("cannot read stats of new tip %s: %w", newTip, err)
	}

	batch := s.store.NewBatch()
	for h := current.Height; h > newTip.Height; h-- {
		if err := batch.Delete(indexes.HeightKey(heightPrefix, h)); err != nil {
			return err
		}
	}
	if err := s.store.Write(batch); err != nil {
		return err
	}

	s.setTotals(tip)
	return nil
}

// CustomCommit stages the current totals next to the checkpoint.
func (s *StatsIndex) CustomCommit(batch kvdb.Batch) error {
	totals := s.Totals()
	if totals == nil {
		return nil
	}

	data, err := rlp.EncodeToBytes(totals)
	if err != nil {
		return err
	}
	return batch.Put(committedKey, data)
}

// Totals returns the totals of the last appended block, or nil before the first one.
func (s *StatsIndex) Totals() *Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totals
}

func (s *StatsIndex) setTotals(rec *Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals = rec
}

// StatsAt returns the record of the indexed block at height.
func (s *StatsIndex) StatsAt(height uint64) (*Stats, error) {
	return s.read(indexes.HeightKey(heightPrefix, height))
}

// Committed returns the totals written with the last checkpoint.
func (s *StatsIndex) Committed() (*Stats, error) {
	return s.read(committedKey)
}

// Lookup resolves a height, or TipKey for the committed totals.
func (s *StatsIndex) Lookup(_ context.Context, key string) (any, error) {
	if key == TipKey {
		return s.Committed()
	}

	k, err := indexes.ParseLookupKey(key)
	if err != nil {
		return nil, err
	}
	if k.IsHash {
		return nil, fmt.Errorf("%w: statsindex is keyed by height", indexes.ErrInvalidKey)
	}
	return s.StatsAt(k.Height)
}

func (s *StatsIndex) read(key []byte) (*Stats, error) {
	data, err := s.store.Get(key)
	if errors.Is(err, kvdb.ErrNotFound) {
		return nil, index.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec := new(Stats)
	if err := rlp.DecodeBytes(data, rec); err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}
	return rec, nil
}
