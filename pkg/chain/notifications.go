package chain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Role tells subscribers which chain state produced a notification.
type Role uint8

const (
	// RoleNormal events come from the fully validated active chain.
	RoleNormal Role = iota
	// RoleAssumedValid events come from a chain state whose blocks are not validated yet.
	// They are replayed in order later, once validated.
	RoleAssumedValid
)

func (r Role) String() string {
	switch r {
	case RoleNormal:
		return "normal"
	case RoleAssumedValid:
		return "assumed-valid"
	default:
		return "unknown"
	}
}

// BlockInfo is the payload of block notifications.
type BlockInfo struct {
	Hash     common.Hash
	PrevHash common.Hash
	Height   uint64

	// ChainTip is set when the block is the active tip at the time of the event.
	ChainTip bool

	// Data is the full block. It may be nil for subscribers that did not ask for it.
	Data *types.Block

	// Undo holds the block's receipts. Only delivered when ConnectUndoData was requested.
	Undo types.Receipts
}

// Key returns the hash and height of the block.
func (i BlockInfo) Key() BlockKey {
	return BlockKey{Hash: i.Hash, Height: i.Height}
}

// NotifyOptions are the delivery options a subscriber passes when attaching to the chain.
type NotifyOptions struct {
	// ConnectUndoData includes receipts in BlockConnected events.
	ConnectUndoData bool
	// Name identifies the subscriber in logs.
	Name string
}

// Notifications receives ordered chain events. Calls are made from a single goroutine,
// in the order the chain state produced them.
type Notifications interface {
	BlockConnected(role Role, block BlockInfo)
	BlockDisconnected(block BlockInfo)
	ChainStateFlushed(role Role, locator Locator)
}

// Handler is returned by a successful attach. Close stops delivery to the subscriber.
type Handler interface {
	Close()
}

// PrepareFunc runs under the chain's main lock before a subscriber is attached.
// start is the block the subscriber's locator resolved to (nil for a null or unknown
// locator) and chainTip reports whether start is the active tip. Returning an error
// aborts the attach.
type PrepareFunc func(start *BlockIndex, chainTip bool) error
