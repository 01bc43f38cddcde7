// Package filterindex keeps a log bloom filter per block together with a filter header
// chain that commits to every filter up to that block.
package filterindex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/goran-ethernal/IndexSync/internal/indexes"
	"github.com/goran-ethernal/IndexSync/internal/logger"
	"github.com/goran-ethernal/IndexSync/pkg/chain"
	"github.com/goran-ethernal/IndexSync/pkg/config"
	"github.com/goran-ethernal/IndexSync/pkg/index"
	"github.com/goran-ethernal/IndexSync/pkg/kvdb"
)

// Type is the factory name of the index.
const Type = "filterindex"

const (
	heightPrefix = 'h'
	hashPrefix   = 'x'
)

var tipKey = []byte{'m'}

var (
	_ index.Index     = (*FilterIndex)(nil)
	_ index.Queryable = (*FilterIndex)(nil)
)

func init() {
	index.Register(Type, func(cfg config.IndexConfig, deps index.Deps) (index.Index, error) {
		return New(cfg.Name, deps)
	})
}

// Filter is the record stored for each block.
type Filter struct {
	BlockHash   common.Hash `json:"block_hash"`
	BlockNumber uint64      `json:"block_number"`
	Bloom       types.Bloom `json:"bloom"`
	FilterHash  common.Hash `json:"filter_hash"`
	Header      common.Hash `json:"header"`
}

// Matches reports whether data (an address or a topic) may appear in the block.
func (f *Filter) Matches(data []byte) bool {
	return f.Bloom.Test(data)
}

// BuildFilter adds every log address, log topic and transaction recipient of the block.
func BuildFilter(block *types.Block, receipts types.Receipts) types.Bloom {
	var bloom types.Bloom
	for _, tx := range block.Transactions() {
		if to := tx.To(); to != nil {
			bloom.Add(to.Bytes())
		}
	}
	for _, r := range receipts {
		for _, l := range r.Logs {
			bloom.Add(l.Address.Bytes())
			for _, topic := range l.Topics {
				bloom.Add(topic.Bytes())
			}
		}
	}
	return bloom
}

// NextHeader chains the hash of a filter onto the previous filter header.
func NextHeader(filterHash, prevHeader common.Hash) common.Hash {
	return crypto.Keccak256Hash(filterHash.Bytes(), prevHeader.Bytes())
}

type tipRecord struct {
	BlockHash common.Hash
	Height    uint64
	Header    common.Hash
}

// pendingWrite is a staged change of one record. A nil filter deletes it.
type pendingWrite struct {
	filter *Filter
}

// FilterIndex keeps the filter of each appended block by height. Filters of rewound
// blocks move to a by-hash table so stale branches stay queryable. Both tables are
// staged in memory and written in the checkpoint batch.
type FilterIndex struct {
	index.BaseHooks

	name  string
	store kvdb.Store
	chain index.Chain
	log   *logger.Logger

	mu sync.RWMutex
	// last and prevHeader describe the last appended block.
	last       *chain.BlockKey
	prevHeader common.Hash
	byHeight   map[uint64]*pendingWrite
	byHash     map[common.Hash]*pendingWrite

	// staged holds the writes of the last CustomCommit. They leave the pending tables
	// once the stored tip record shows the batch was written.
	staged    map[*pendingWrite]struct{}
	stagedTip []byte
}

// New creates a filter index over deps.Store.
func New(name string, deps index.Deps) (*FilterIndex, error) {
	if deps.Store == nil || deps.Chain == nil {
		return nil, errors.New("filterindex requires a store and a chain")
	}
	if name == "" {
		name = Type
	}
	log := deps.Log
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	f := &FilterIndex{
		name:  name,
		store: deps.Store,
		chain: deps.Chain,
		log:   log,
	}
	f.resetPending()
	return f, nil
}

func (f *FilterIndex) resetPending() {
	f.byHeight = make(map[uint64]*pendingWrite)
	f.byHash = make(map[common.Hash]*pendingWrite)
	f.staged = nil
	f.stagedTip = nil
}

func (f *FilterIndex) Name() string {
	return f.name
}

func (f *FilterIndex) CustomOptions() index.Options {
	return index.Options{ConnectUndoData: true, ThreadName: "filterindex-" + f.name}
}

func (f *FilterIndex) AllowPrune() bool {
	return true
}

// CustomInit drops uncommitted records and loads the filter header of the block the
// index resumes from.
func (f *FilterIndex) CustomInit(start *chain.BlockKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.resetPending()
	f.last = nil
	f.prevHeader = common.Hash{}
	if start == nil {
		return nil
	}

	rec, err := f.readHeightLocked(start.Height)
	if err != nil {
		return fmt.Errorf("cannot read filter of resume block %s: %w", start, err)
	}
	if rec.BlockHash != start.Hash {
		return fmt.Errorf("filter at height %d belongs to %s, expected %s",
			start.Height, rec.BlockHash.Hex(), start.Hash.Hex())
	}

	f.last = start
	f.prevHeader = rec.Header
	return nil
}

func (f *FilterIndex) CustomAppend(block chain.BlockInfo) error {
	if block.Data == nil {
		return fmt.Errorf("block %s has no body", block.Key())
	}
	if len(block.Undo) != len(block.Data.Transactions()) {
		return fmt.Errorf("block %s has %d transactions but %d receipts",
			block.Key(), len(block.Data.Transactions()), len(block.Undo))
	}

	bloom := BuildFilter(block.Data, block.Undo)
	filterHash := crypto.Keccak256Hash(bloom.Bytes())

	f.mu.Lock()
	defer f.mu.Unlock()

	rec := &Filter{
		BlockHash:   block.Hash,
		BlockNumber: block.Height,
		Bloom:       bloom,
		FilterHash:  filterHash,
		Header:      NextHeader(filterHash, f.prevHeader),
	}
	f.byHeight[block.Height] = &pendingWrite{filter: rec}

	key := block.Key()
	f.last = &key
	f.prevHeader = rec.Header
	return nil
}

// CustomRewind moves the filters above newTip from the height table to the hash table.
func (f *FilterIndex) CustomRewind(current, newTip chain.BlockKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rewound := make([]*Filter, 0, current.Height-newTip.Height)
	for h := current.Height; h > newTip.Height; h-- {
		rec, err := f.readHeightLocked(h)
		if err != nil {
			return fmt.Errorf("cannot rewind filter at height %d: %w", h, err)
		}
		rewound = append(rewound, rec)
	}
	tip, err := f.readHeightLocked(newTip.Height)
	if err != nil {
		return fmt.Errorf("cannot read filter of new tip %s: %w", newTip, err)
	}

	for _, rec := range rewound {
		f.byHash[rec.BlockHash] = &pendingWrite{filter: rec}
		f.byHeight[rec.BlockNumber] = &pendingWrite{}
	}
	f.last = &newTip
	f.prevHeader = tip.Header
	return nil
}

// CustomCommit stages every pending record and the filter header tip next to the
// checkpoint.
func (f *FilterIndex) CustomCommit(batch kvdb.Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.confirmStaged(); err != nil {
		return err
	}
	if f.last == nil {
		return nil
	}

	staged := make(map[*pendingWrite]struct{}, len(f.byHeight)+len(f.byHash))
	for height, w := range f.byHeight {
		if err := stageWrite(batch, indexes.HeightKey(heightPrefix, height), w); err != nil {
			return err
		}
		staged[w] = struct{}{}
	}
	for hash, w := range f.byHash {
		if err := stageWrite(batch, indexes.HashKey(hashPrefix, hash), w); err != nil {
			return err
		}
		staged[w] = struct{}{}
	}

	tip, err := rlp.EncodeToBytes(&tipRecord{
		BlockHash: f.last.Hash,
		Height:    f.last.Height,
		Header:    f.prevHeader,
	})
	if err != nil {
		return err
	}
	if err := batch.Put(tipKey, tip); err != nil {
		return err
	}

	f.staged = staged
	f.stagedTip = tip
	return nil
}

// confirmStaged drops the writes of the previous commit from the pending tables when
// its batch made it to the store. Otherwise they are staged again.
func (f *FilterIndex) confirmStaged() error {
	if f.stagedTip == nil {
		return nil
	}

	stored, err := f.store.Get(tipKey)
	if err != nil && !errors.Is(err, kvdb.ErrNotFound) {
		return err
	}
	if bytes.Equal(stored, f.stagedTip) {
		for height, w := range f.byHeight {
			if _, ok := f.staged[w]; ok {
				delete(f.byHeight, height)
			}
		}
		for hash, w := range f.byHash {
			if _, ok := f.staged[w]; ok {
				delete(f.byHash, hash)
			}
		}
	}

	f.staged = nil
	f.stagedTip = nil
	return nil
}

func stageWrite(batch kvdb.Batch, key []byte, w *pendingWrite) error {
	if w.filter == nil {
		return batch.Delete(key)
	}
	data, err := rlp.EncodeToBytes(w.filter)
	if err != nil {
		return fmt.Errorf("failed to encode filter of %s: %w", w.filter.BlockHash.Hex(), err)
	}
	return batch.Put(key, data)
}

// Pending returns how many staged records are not yet known to be committed.
func (f *FilterIndex) Pending() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.byHeight) + len(f.byHash)
}

// HeaderTip returns the committed filter header tip, or index.ErrNotFound before the
// first commit.
func (f *FilterIndex) HeaderTip() (chain.BlockKey, common.Hash, error) {
	data, err := f.store.Get(tipKey)
	if errors.Is(err, kvdb.ErrNotFound) {
		return chain.BlockKey{}, common.Hash{}, index.ErrNotFound
	}
	if err != nil {
		return chain.BlockKey{}, common.Hash{}, err
	}

	var tip tipRecord
	if err := rlp.DecodeBytes(data, &tip); err != nil {
		return chain.BlockKey{}, common.Hash{}, err
	}
	return chain.BlockKey{Hash: tip.BlockHash, Height: tip.Height}, tip.Header, nil
}

// FilterByHeight returns the filter of the indexed block at height.
func (f *FilterIndex) FilterByHeight(height uint64) (*Filter, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.readHeightLocked(height)
}

// FilterByHash returns the filter of a block, including blocks of stale branches.
func (f *FilterIndex) FilterByHash(hash common.Hash) (*Filter, error) {
	b := f.chain.LookupBlockIndex(hash)

	f.mu.RLock()
	defer f.mu.RUnlock()

	if b != nil {
		rec, err := f.readHeightLocked(b.Height)
		if err == nil && rec.BlockHash == hash {
			return rec, nil
		}
		if err != nil && !errors.Is(err, index.ErrNotFound) {
			return nil, err
		}
	}
	if w, ok := f.byHash[hash]; ok {
		return pendingFilter(w)
	}
	return f.read(indexes.HashKey(hashPrefix, hash))
}

// Lookup resolves a block hash or height.
func (f *FilterIndex) Lookup(_ context.Context, key string) (any, error) {
	k, err := indexes.ParseLookupKey(key)
	if err != nil {
		return nil, err
	}
	if k.IsHash {
		return f.FilterByHash(k.Hash)
	}
	return f.FilterByHeight(k.Height)
}

// readHeightLocked requires f.mu.
func (f *FilterIndex) readHeightLocked(height uint64) (*Filter, error) {
	if w, ok := f.byHeight[height]; ok {
		return pendingFilter(w)
	}
	return f.read(indexes.HeightKey(heightPrefix, height))
}

func pendingFilter(w *pendingWrite) (*Filter, error) {
	if w.filter == nil {
		return nil, index.ErrNotFound
	}
	return w.filter, nil
}

func (f *FilterIndex) read(key []byte) (*Filter, error) {
	data, err := f.store.Get(key)
	if errors.Is(err, kvdb.ErrNotFound) {
		return nil, index.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec := new(Filter)
	if err := rlp.DecodeBytes(data, rec); err != nil {
		return nil, fmt.Errorf("failed to decode filter: %w", err)
	}
	return rec, nil
}
