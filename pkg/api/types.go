package api

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/IndexSync/pkg/index"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	// Status is "ok" when every index follows the chain live, "syncing" otherwise
	Status    string          `json:"status" example:"ok"`
	Timestamp time.Time       `json:"timestamp"`
	ChainTip  *BlockResponse  `json:"chain_tip,omitempty"`
	Indexes   []index.Summary `json:"indexes"`
}

// IndexInfo describes a registered index.
type IndexInfo struct {
	index.Summary
	Queryable bool     `json:"queryable" example:"true"`
	Endpoints []string `json:"endpoints"`
}

// LookupResponse is the result of a point lookup.
type LookupResponse struct {
	Index  string `json:"index" example:"txindex"`
	Key    string `json:"key"`
	Result any    `json:"result"`
}

// BlockResponse identifies a block of the active chain.
type BlockResponse struct {
	Number     uint64      `json:"number" example:"19500000"`
	Hash       common.Hash `json:"hash" swaggertype:"string"`
	ParentHash common.Hash `json:"parent_hash" swaggertype:"string"`
	Timestamp  uint64      `json:"timestamp" example:"1710000000"`
}
