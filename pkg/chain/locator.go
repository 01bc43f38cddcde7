package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// denseLocatorEntries is how many consecutive ancestors a locator lists before the
// distance between entries starts doubling.
const denseLocatorEntries = 10

// Locator describes a chain position as hashes of the block and its ancestors at
// exponentially growing distance, ending at the root. A null locator records no position.
type Locator struct {
	Hashes []common.Hash
	// Height is the height of the first entry. It lets a position on a branch that is
	// no longer known be rewound by height.
	Height uint64 `rlp:"optional"`
}

// NewLocator builds the locator of b. A nil block yields a null locator.
func NewLocator(b *BlockIndex) Locator {
	if b == nil {
		return Locator{}
	}

	height := b.Height
	root := b.Root()
	hashes := make([]common.Hash, 0, 32) //nolint:mnd
	step := uint64(1)
	for b != nil {
		hashes = append(hashes, b.Hash)
		if b == root {
			break
		}

		if b.Height-root.Height > step {
			b = b.Ancestor(b.Height - step)
		} else {
			b = root
		}

		if len(hashes) > denseLocatorEntries {
			step *= 2
		}
	}

	return Locator{Hashes: hashes, Height: height}
}

// IsNull reports whether the locator records no position.
func (l Locator) IsNull() bool {
	return len(l.Hashes) == 0
}

// Tip returns the hash of the block the locator was built for.
func (l Locator) Tip() common.Hash {
	if l.IsNull() {
		return common.Hash{}
	}
	return l.Hashes[0]
}

// Equal reports whether both locators list the same hashes. Height is derived from the
// first hash and not compared.
func (l Locator) Equal(other Locator) bool {
	if len(l.Hashes) != len(other.Hashes) {
		return false
	}
	for i := range l.Hashes {
		if l.Hashes[i] != other.Hashes[i] {
			return false
		}
	}
	return true
}

func (l Locator) String() string {
	if l.IsNull() {
		return "locator(null)"
	}
	return fmt.Sprintf("locator(%s, %d entries)", l.Tip().Hex(), len(l.Hashes))
}

// FindFork returns the highest block of c named by the locator, or nil when the
// locator shares no block with c. lookup resolves hashes against every known block,
// including ones on stale branches.
func (l Locator) FindFork(c *ActiveChain, lookup func(common.Hash) *BlockIndex) *BlockIndex {
	tip := c.Tip()
	for _, hash := range l.Hashes {
		b := lookup(hash)
		if b == nil {
			continue
		}
		if c.Contains(b) {
			return b
		}
		if tip != nil && b.Ancestor(tip.Height) == tip {
			return tip
		}
	}
	return nil
}

// Encode serializes the locator with RLP.
func (l Locator) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(&l)
}

// DecodeLocator parses a locator produced by Encode.
func DecodeLocator(data []byte) (Locator, error) {
	var l Locator
	if err := rlp.DecodeBytes(data, &l); err != nil {
		return Locator{}, fmt.Errorf("failed to decode locator: %w", err)
	}
	return l, nil
}
