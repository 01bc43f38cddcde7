package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// BlockKey identifies a block by hash and height. It is what index hooks receive
// instead of pointers into the chain state.
type BlockKey struct {
	Hash   common.Hash
	Height uint64
}

func (k BlockKey) String() string {
	return fmt.Sprintf("%d/%s", k.Height, k.Hash.Hex())
}

// BlockIndex is a node of the block tree. All fields are fixed at creation, so a
// *BlockIndex can be shared between goroutines without locking.
type BlockIndex struct {
	Hash   common.Hash
	Height uint64
	Parent *BlockIndex
	Header *types.Header

	// skip points to an ancestor at skipHeight(Height) and makes Ancestor logarithmic.
	skip *BlockIndex
	root *BlockIndex
}

// NewBlockIndex links header under parent. A nil parent makes the node a root of the tree.
func NewBlockIndex(header *types.Header, parent *BlockIndex) *BlockIndex {
	b := &BlockIndex{
		Hash:   header.Hash(),
		Height: header.Number.Uint64(),
		Parent: parent,
		Header: header,
	}
	if parent != nil {
		b.skip = parent.Ancestor(skipHeight(b.Height))
		b.root = parent.root
	} else {
		b.root = b
	}
	return b
}

// Root returns the first block of b's tree.
func (b *BlockIndex) Root() *BlockIndex {
	return b.root
}

// Key returns the hash and height of the block.
func (b *BlockIndex) Key() BlockKey {
	return BlockKey{Hash: b.Hash, Height: b.Height}
}

func (b *BlockIndex) String() string {
	return b.Key().String()
}

// Ancestor returns the ancestor of b at the given height, b itself for b.Height, or nil
// when height is above b or below the root of b's tree.
func (b *BlockIndex) Ancestor(height uint64) *BlockIndex {
	if b == nil || height > b.Height {
		return nil
	}

	target := int64(height) //nolint:gosec
	walk := b
	walkHeight := int64(b.Height) //nolint:gosec
	for walkHeight > target {
		skipH := int64(skipHeight(uint64(walkHeight)))        //nolint:gosec
		skipPrevH := int64(skipHeight(uint64(walkHeight - 1))) //nolint:gosec
		if walk.skip != nil &&
			(skipH == target ||
				(skipH > target && !(skipPrevH < skipH-2 && skipPrevH >= target))) {
			// Only follow the skip pointer if it does not overshoot a better one.
			walk = walk.skip
			walkHeight = skipH
		} else {
			if walk.Parent == nil {
				return nil
			}
			walk = walk.Parent
			walkHeight--
		}
	}

	return walk
}

// IsAncestorOf reports whether b is other or one of its ancestors.
func (b *BlockIndex) IsAncestorOf(other *BlockIndex) bool {
	if b == nil || other == nil {
		return false
	}
	return other.Ancestor(b.Height) == b
}

// LastCommonAncestor returns the fork point of a and b, or nil if they share no block.
func LastCommonAncestor(a, b *BlockIndex) *BlockIndex {
	if a == nil || b == nil {
		return nil
	}

	if a.Height > b.Height {
		a = a.Ancestor(b.Height)
	} else if b.Height > a.Height {
		b = b.Ancestor(a.Height)
	}

	for a != b && a != nil && b != nil {
		a = a.Parent
		b = b.Parent
	}

	if a != b {
		return nil
	}
	return a
}

// skipHeight picks the skip target for a block at height. Heights are chosen so that
// Ancestor needs O(log n) hops between any two heights.
func skipHeight(height uint64) uint64 {
	if height < 2 { //nolint:mnd
		return 0
	}

	if height&1 != 0 {
		return clearLowestOneBit(clearLowestOneBit(height-1)) + 1
	}
	return clearLowestOneBit(height)
}

func clearLowestOneBit(n uint64) uint64 {
	return n & (n - 1)
}
