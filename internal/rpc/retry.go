package rpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/goran-ethernal/IndexSync/internal/logger"
	"github.com/goran-ethernal/IndexSync/pkg/config"
	"github.com/lightningnetwork/lnd/clock"
)

const (
	// jitterFraction is the +/- share of the delay added as jitter.
	jitterFraction = 0.25

	// codeLimitExceeded is the JSON-RPC code providers return when throttling.
	codeLimitExceeded = -32005
)

// transientFragments are lowercased fragments of transient failures that reach
// us only as message text, e.g. errors a node wraps in a generic JSON-RPC error.
var transientFragments = []string{
	"timeout", "deadline exceeded",
	"429", "too many requests", "rate limit",
	"502", "503", "504", "bad gateway", "service unavailable",
	"connection pool", "no available connection",
}

// retryableError reports whether a failed request may succeed when repeated.
func retryableError(err error) bool {
	if err == nil || IsNotFound(err) {
		return false
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return retryableStatus(httpErr.StatusCode)
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeLimitExceeded {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range transientFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retrier repeats requests with exponential backoff. A nil config runs every
// request once.
type retrier struct {
	cfg    *config.RetryConfig
	clock  clock.Clock
	log    *logger.Logger
	jitter func() float64
}

func newRetrier(cfg *config.RetryConfig, clk clock.Clock, log *logger.Logger) *retrier {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &retrier{cfg: cfg, clock: clk, log: log, jitter: rand.Float64}
}

// delay returns the wait before attempt. The first attempt does not wait.
func (r *retrier) delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	d := float64(r.cfg.InitialBackoff.Duration) * math.Pow(r.cfg.BackoffMultiplier, float64(attempt-2))
	d = math.Min(d, float64(r.cfg.MaxBackoff.Duration))
	d += (r.jitter()*2 - 1) * d * jitterFraction

	return time.Duration(math.Max(d, 0))
}

// do runs fn until it succeeds, fails permanently or runs out of attempts.
func (r *retrier) do(ctx context.Context, method string, fn func() error) error {
	if r.cfg == nil {
		return fn()
	}

	start := r.clock.Now()
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if wait := r.delay(attempt); wait > 0 {
			select {
			case <-r.clock.TickAfter(wait):
			case <-ctx.Done():
				return fmt.Errorf("%s: context cancelled during backoff (attempt %d/%d): %w",
					method, attempt, r.cfg.MaxAttempts, ctx.Err())
			}
			retryInc(method)
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context cancelled before attempt %d: %w", method, attempt, err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryableError(lastErr) {
			return fmt.Errorf("%s: non-retryable error on attempt %d/%d: %w",
				method, attempt, r.cfg.MaxAttempts, lastErr)
		}
		r.log.Debugf("%s attempt %d/%d failed: %v", method, attempt, r.cfg.MaxAttempts, lastErr)
	}

	return fmt.Errorf("%s: all %d attempts failed after %v (last error: %w)",
		method, r.cfg.MaxAttempts, r.clock.Now().Sub(start), lastErr)
}
