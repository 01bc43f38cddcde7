package follower

import (
	"errors"
	"fmt"
)

// ErrReorgTooDeep is returned when no known ancestor of the node's chain is found
// within max_reorg_depth blocks.
var ErrReorgTooDeep = errors.New("reorg deeper than max_reorg_depth")

// ReorgDetectedError describes a reorganization of the followed chain.
type ReorgDetectedError struct {
	FirstReorgBlock uint64
	Depth           uint64
	Details         string
	Err             error
}

func (e *ReorgDetectedError) Error() string {
	msg := fmt.Sprintf("reorg detected at block %d (depth %d): %s", e.FirstReorgBlock, e.Depth, e.Details)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ReorgDetectedError) Unwrap() error {
	return e.Err
}

// NewReorgError creates a new ReorgDetectedError.
func NewReorgError(firstReorgBlock, depth uint64, details string) *ReorgDetectedError {
	return &ReorgDetectedError{
		FirstReorgBlock: firstReorgBlock,
		Depth:           depth,
		Details:         details,
	}
}
