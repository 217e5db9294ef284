package collyfetcher

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net"
	"time"
)

// Transient statuses worth another attempt; everything else fails fast.
var transientStatuses = map[int]struct{}{
	429: {},
	500: {},
	502: {},
	503: {},
	504: {},
}

// retryPolicy decides retryability and computes jittered backoff delays.
type retryPolicy struct {
	baseDelay time.Duration
	maxDelay  time.Duration
}

func newRetryPolicy(base, max time.Duration) retryPolicy {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	if max <= 0 {
		max = 5 * time.Second
	}
	return retryPolicy{baseDelay: base, maxDelay: max}
}

// Retryable reports whether a failed attempt should be repeated. Context
// cancellation is final; transient HTTP statuses and network timeouts are
// retried; connection-level failures without a status get another chance.
func (p retryPolicy) Retryable(status int, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if _, ok := transientStatuses[status]; ok {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return status == 0
}

// Backoff returns the wait duration before the next attempt.
func (p retryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := p.randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func (p retryPolicy) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
