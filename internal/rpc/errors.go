package rpc

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/rpc"
)

// Error types used as metric labels.
const (
	ErrTypeNotFound  = "not_found"
	ErrTypeTimeout   = "timeout"
	ErrTypeCanceled  = "canceled"
	ErrTypeRateLimit = "rate_limit"
	ErrTypeRPC       = "rpc"
	ErrTypeNetwork   = "network"
)

// IsNotFound reports whether the node does not know the requested block.
func IsNotFound(err error) bool {
	return errors.Is(err, ethereum.NotFound)
}

// ErrorType classifies err for metrics.
func ErrorType(err error) string {
	switch {
	case IsNotFound(err):
		return ErrTypeNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTypeTimeout
	case errors.Is(err, context.Canceled):
		return ErrTypeCanceled
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		return ErrTypeRateLimit
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") {
		return ErrTypeRateLimit
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return ErrTypeRPC
	}
	return ErrTypeNetwork
}
