package index

import (
	"errors"
	"fmt"

	"github.com/goran-ethernal/IndexSync/pkg/chain"
	"github.com/goran-ethernal/IndexSync/pkg/kvdb"
)

// bestBlockKey holds the locator of the last committed block.
var bestBlockKey = []byte{'B'}

// DB is the checkpoint store of one index. The index keeps its own records in the
// same store under keys that do not collide with bestBlockKey.
type DB struct {
	kvdb.Store
}

// NewDB wraps store.
func NewDB(store kvdb.Store) *DB {
	return &DB{Store: store}
}

// ReadBestBlock returns the committed locator, or a null locator when none was written.
func (db *DB) ReadBestBlock() (chain.Locator, error) {
	data, err := db.Get(bestBlockKey)
	if errors.Is(err, kvdb.ErrNotFound) {
		return chain.Locator{}, nil
	}
	if err != nil {
		return chain.Locator{}, fmt.Errorf("failed to read best block: %w", err)
	}
	return chain.DecodeLocator(data)
}

// WriteBestBlock stages locator into batch.
func (db *DB) WriteBestBlock(batch kvdb.Batch, locator chain.Locator) error {
	data, err := locator.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode best block locator: %w", err)
	}
	return batch.Put(bestBlockKey, data)
}
