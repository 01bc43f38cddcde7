// Package indexes holds helpers shared by the concrete indexes.
package indexes

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/goran-ethernal/IndexSync/pkg/index"
)

// ErrInvalidKey is returned for lookup keys that are neither a hash nor a height.
var ErrInvalidKey = index.ErrInvalidKey

// LookupKey is a parsed lookup key.
type LookupKey struct {
	Hash   common.Hash
	Height uint64
	IsHash bool
}

// ParseLookupKey accepts a 0x-prefixed 32-byte hash or a decimal height.
func ParseLookupKey(key string) (LookupKey, error) {
	if strings.HasPrefix(key, "0x") || strings.HasPrefix(key, "0X") {
		b, err := hexutil.Decode(key)
		if err != nil || len(b) != common.HashLength {
			return LookupKey{}, fmt.Errorf("%w: %q is not a 32-byte hash", ErrInvalidKey, key)
		}
		return LookupKey{Hash: common.BytesToHash(b), IsHash: true}, nil
	}

	height, err := strconv.ParseUint(key, 10, 64)
	if err != nil {
		return LookupKey{}, fmt.Errorf("%w: %q is not a hash or a height", ErrInvalidKey, key)
	}
	return LookupKey{Height: height}, nil
}

// HeightKey builds prefix || big-endian height, so keys sort by height.
func HeightKey(prefix byte, height uint64) []byte {
	key := make([]byte, 1+8) //nolint:mnd
	key[0] = prefix
	binary.BigEndian.PutUint64(key[1:], height)
	return key
}

// HashKey builds prefix || hash.
func HashKey(prefix byte, hash common.Hash) []byte {
	key := make([]byte, 1+common.HashLength)
	key[0] = prefix
	copy(key[1:], hash[:])
	return key
}
