// Package types holds small value types shared across the follower and its config.
package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rpc"
)

// BlockFinality selects which head of the node the follower tracks.
type BlockFinality string

const (
	FinalityFinalized BlockFinality = "finalized"
	FinalitySafe      BlockFinality = "safe"
	FinalityLatest    BlockFinality = "latest"
)

func (f BlockFinality) String() string {
	return string(f)
}

// Reversible reports whether blocks at or below this head may still be reorged out.
// Only finalized heads are treated as irreversible.
func (f BlockFinality) Reversible() bool {
	return f != FinalityFinalized
}

// BlockNumber returns the eth_getBlockByNumber argument for this head. Latest maps to
// nil, which the client sends as "latest".
func (f BlockFinality) BlockNumber() (*big.Int, error) {
	switch f {
	case FinalityFinalized:
		return big.NewInt(int64(rpc.FinalizedBlockNumber)), nil
	case FinalitySafe:
		return big.NewInt(int64(rpc.SafeBlockNumber)), nil
	case FinalityLatest:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported finality %q", string(f))
	}
}

// ParseBlockFinality accepts "finalized", "safe" or "latest".
func ParseBlockFinality(s string) (BlockFinality, error) {
	f := BlockFinality(s)
	if _, err := f.BlockNumber(); err != nil {
		return "", fmt.Errorf("invalid block finality: %s", s)
	}
	return f, nil
}
