package kvdb

import (
	"fmt"

	"github.com/goran-ethernal/IndexSync/pkg/kvdb"
)

type op struct {
	key    []byte
	value  []byte
	delete bool
}

// batch is the kvdb.Batch shared by every backend. It only records operations;
// each store replays them inside its own transaction.
type batch struct {
	ops []op
}

var _ kvdb.Batch = (*batch)(nil)

func newBatch() *batch {
	return &batch{}
}

func (b *batch) Put(key, value []byte) error {
	b.ops = append(b.ops, op{key: clone(key), value: clone(value)})
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.ops = append(b.ops, op{key: clone(key), delete: true})
	return nil
}

func (b *batch) Len() int {
	return len(b.ops)
}

func (b *batch) Reset() {
	b.ops = b.ops[:0]
}

// asBatch unwraps a kvdb.Batch created by one of this package's stores.
func asBatch(b kvdb.Batch) (*batch, error) {
	ours, ok := b.(*batch)
	if !ok {
		return nil, fmt.Errorf("kvdb: foreign batch type %T", b)
	}
	return ours, nil
}

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// prefixEnd returns the smallest key greater than every key starting with prefix,
// or nil when no such key exists.
func prefixEnd(prefix []byte) []byte {
	end := clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
