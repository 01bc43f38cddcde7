package kvdb

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/goran-ethernal/IndexSync/internal/logger"
	"github.com/goran-ethernal/IndexSync/pkg/kvdb"
)

// BadgerStore persists into a badger LSM directory.
type BadgerStore struct {
	db  *badger.DB
	log *logger.Logger
}

var _ kvdb.Store = (*BadgerStore)(nil)

// badgerLogger routes badger's internal logging through the component logger.
type badgerLogger struct {
	log *logger.Logger
}

func (l badgerLogger) Errorf(format string, args ...any)   { l.log.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...any) { l.log.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...any)    { l.log.Debugf(format, args...) }
func (l badgerLogger) Debugf(format string, args ...any)   { l.log.Debugf(format, args...) }

// OpenBadger opens (or creates) a badger store at path. An empty path keeps the
// data in memory, which tests use.
func OpenBadger(path string, syncWrites bool, log *logger.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(syncWrites).
		WithLogger(badgerLogger{log: log})
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", path, err)
	}

	log.Infof("Opened badger store at %q (sync writes: %t)", path, syncWrites)
	return &BadgerStore{db: db, log: log}, nil
}

func (s *BadgerStore) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, kvdb.ErrNotFound
	}
	return value, err
}

func (s *BadgerStore) Has(key []byte) (bool, error) {
	_, err := s.Get(key)
	if errors.Is(err, kvdb.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *BadgerStore) Put(key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(clone(key), clone(value))
	})
}

func (s *BadgerStore) Delete(key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(clone(key))
	})
}

func (s *BadgerStore) NewBatch() kvdb.Batch {
	return newBatch()
}

// Write applies b in a single badger transaction.
func (s *BadgerStore) Write(b kvdb.Batch) error {
	ours, err := asBatch(b)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for _, o := range ours.ops {
			if o.delete {
				err = txn.Delete(o.key)
			} else {
				err = txn.Set(o.key, o.value)
			}
			if err != nil {
				return fmt.Errorf("badger write of %x: %w", o.key, err)
			}
		}
		return nil
	})
}

func (s *BadgerStore) ForEach(prefix []byte, fn kvdb.Iteratee) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
