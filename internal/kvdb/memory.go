package kvdb

import (
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/goran-ethernal/IndexSync/pkg/kvdb"
)

// MemoryStore keeps everything in process memory. State is lost on Close.
type MemoryStore struct {
	db *memorydb.Database
}

var _ kvdb.Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{db: memorydb.New()}
}

func (s *MemoryStore) Get(key []byte) ([]byte, error) {
	value, err := s.db.Get(key)
	if err == nil {
		return value, nil
	}
	// memorydb reports missing keys with an unexported error.
	if ok, hasErr := s.db.Has(key); hasErr == nil && !ok {
		return nil, kvdb.ErrNotFound
	}
	return nil, err
}

func (s *MemoryStore) Has(key []byte) (bool, error) {
	return s.db.Has(key)
}

func (s *MemoryStore) Put(key, value []byte) error {
	return s.db.Put(clone(key), clone(value))
}

func (s *MemoryStore) Delete(key []byte) error {
	return s.db.Delete(key)
}

func (s *MemoryStore) NewBatch() kvdb.Batch {
	return newBatch()
}

// Write replays b into a memorydb batch, which applies all operations under one lock.
func (s *MemoryStore) Write(b kvdb.Batch) error {
	ours, err := asBatch(b)
	if err != nil {
		return err
	}

	dbBatch := s.db.NewBatch()
	for _, o := range ours.ops {
		if o.delete {
			err = dbBatch.Delete(o.key)
		} else {
			err = dbBatch.Put(o.key, o.value)
		}
		if err != nil {
			return err
		}
	}
	return dbBatch.Write()
}

func (s *MemoryStore) ForEach(prefix []byte, fn kvdb.Iteratee) error {
	it := s.db.NewIterator(prefix, nil)
	defer it.Release()

	for it.Next() {
		if err := fn(it.Key(), it.Value()); err != nil {
			return err
		}
	}
	return it.Error()
}

func (s *MemoryStore) Close() error {
	return s.db.Close()
}
