package chain

// ActiveChain is the canonical sequence of blocks from a root to the tip.
// It is not safe for concurrent use; the chain state guards it with its main lock.
type ActiveChain struct {
	blocks []*BlockIndex
}

// NewActiveChain returns a chain whose tip is tip, or an empty chain for nil.
func NewActiveChain(tip *BlockIndex) *ActiveChain {
	c := &ActiveChain{}
	c.SetTip(tip)
	return c
}

// Genesis returns the first block of the chain.
func (c *ActiveChain) Genesis() *BlockIndex {
	if len(c.blocks) == 0 {
		return nil
	}
	return c.blocks[0]
}

// Tip returns the last block of the chain.
func (c *ActiveChain) Tip() *BlockIndex {
	if len(c.blocks) == 0 {
		return nil
	}
	return c.blocks[len(c.blocks)-1]
}

// Len returns the number of blocks in the chain.
func (c *ActiveChain) Len() int {
	return len(c.blocks)
}

// At returns the chain's block at height, or nil if there is none.
func (c *ActiveChain) At(height uint64) *BlockIndex {
	genesis := c.Genesis()
	if genesis == nil || height < genesis.Height {
		return nil
	}

	pos := height - genesis.Height
	if pos >= uint64(len(c.blocks)) {
		return nil
	}
	return c.blocks[pos]
}

// Contains reports whether b is part of the chain.
func (c *ActiveChain) Contains(b *BlockIndex) bool {
	return b != nil && c.At(b.Height) == b
}

// Next returns the successor of b along the chain, or nil if b is the tip or not on the chain.
func (c *ActiveChain) Next(b *BlockIndex) *BlockIndex {
	if !c.Contains(b) {
		return nil
	}
	return c.At(b.Height + 1)
}

// FindFork returns the last block of the chain that is also an ancestor of b.
func (c *ActiveChain) FindFork(b *BlockIndex) *BlockIndex {
	if b == nil {
		return nil
	}

	if tip := c.Tip(); tip != nil && b.Height > tip.Height {
		b = b.Ancestor(tip.Height)
	}
	for b != nil && !c.Contains(b) {
		b = b.Parent
	}
	return b
}

// SetTip makes tip the end of the chain, rewriting only the part that changed.
func (c *ActiveChain) SetTip(tip *BlockIndex) {
	if tip == nil {
		c.blocks = nil
		return
	}

	genesis := c.Genesis()
	if genesis == nil || tip.Ancestor(genesis.Height) != genesis {
		// tip belongs to another tree; rebuild from its root.
		genesis = tip
		for genesis.Parent != nil {
			genesis = genesis.Parent
		}
		c.blocks = nil
	}

	base := genesis.Height
	size := int(tip.Height - base + 1) //nolint:gosec
	if size <= len(c.blocks) {
		c.blocks = c.blocks[:size]
	} else {
		c.blocks = append(c.blocks, make([]*BlockIndex, size-len(c.blocks))...)
	}

	for b := tip; b != nil && c.blocks[b.Height-base] != b; b = b.Parent {
		c.blocks[b.Height-base] = b
	}
}
