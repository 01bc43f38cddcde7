// Package kvdb defines the key-value storage primitive indexes persist into.
package kvdb

import "errors"

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kvdb: key not found")

// Reader reads single keys.
type Reader interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
}

// Iteratee walks keys in ascending byte order. Returning an error stops the walk.
type Iteratee func(key, value []byte) error

// Batch collects writes that Store.Write applies atomically.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	// Len returns the number of queued operations.
	Len() int
	Reset()
}

// Store is a key-value store with atomic batched writes.
type Store interface {
	Reader

	Put(key, value []byte) error
	Delete(key []byte) error

	NewBatch() Batch
	Write(batch Batch) error

	// ForEach calls fn for every key starting with prefix.
	ForEach(prefix []byte, fn Iteratee) error

	Close() error
}
