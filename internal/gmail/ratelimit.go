package gmail

import (
	"context"
	"sync"
	"time"
)

// Operation identifies a Gmail API call for quota accounting.
type Operation int

// Operations, in rough order of engine use.
const (
	OpProfile Operation = iota
	OpLabelsList
	OpMessagesList
	OpMessagesGet
	OpMessagesGetRaw
	OpMessagesModify
	OpMessagesDelete
	OpMessagesBatchModify
	OpMessagesBatchDelete
)

// Cost returns the quota units the operation consumes, per Gmail's published
// usage limits. Unknown operations cost 1.
func (op Operation) Cost() int {
	switch op {
	case OpMessagesGet, OpMessagesGetRaw:
		return 5
	case OpMessagesList:
		return 5
	case OpLabelsList:
		return 1
	case OpMessagesModify:
		return 5
	case OpMessagesDelete:
		return 10
	case OpMessagesBatchModify, OpMessagesBatchDelete:
		return 50
	case OpProfile:
		return 1
	default:
		return 1
	}
}

// String returns the REST method name for logging.
func (op Operation) String() string {
	switch op {
	case OpProfile:
		return "users.getProfile"
	case OpLabelsList:
		return "labels.list"
	case OpMessagesList:
		return "messages.list"
	case OpMessagesGet, OpMessagesGetRaw:
		return "messages.get"
	case OpMessagesModify:
		return "messages.modify"
	case OpMessagesDelete:
		return "messages.delete"
	case OpMessagesBatchModify:
		return "messages.batchModify"
	case OpMessagesBatchDelete:
		return "messages.batchDelete"
	default:
		return "unknown"
	}
}

const (
	// DefaultCapacity is the token bucket capacity in quota units, matching
	// Gmail's 250 quota units per user per second burst allowance.
	DefaultCapacity = 250.0

	// DefaultRefillRate is the refill rate in quota units per second when
	// running at the full request rate.
	DefaultRefillRate = 250.0

	// MinQPS is the lowest request rate the limiter can be configured for.
	MinQPS = 0.1

	// maxQPS is the request rate DefaultRefillRate corresponds to. Higher
	// configured rates cap here; Gmail rejects them anyway.
	maxQPS = 5.0

	// throttleFactor halves the refill rate while a server-requested backoff
	// is in effect.
	throttleFactor = 0.5
)

// RateLimiter is a token bucket that accounts for Gmail's per-operation
// quota-unit costs. A 429/403-quota response can Throttle the bucket, which
// drains it, halves the refill rate, and blocks acquisition until the
// backoff expires; the rate recovers automatically afterwards.
type RateLimiter struct {
	mu             sync.Mutex
	tokens         float64
	capacity       float64
	refillRate     float64 // units per second, possibly throttled
	baseRate       float64 // configured rate to recover to
	lastRefill     time.Time
	throttledUntil time.Time
}

// NewRateLimiter creates a limiter scaled to the given request rate in
// queries per second. Rates are clamped to [MinQPS, 5].
func NewRateLimiter(qps float64) *RateLimiter {
	if qps < MinQPS {
		qps = MinQPS
	}
	if qps > maxQPS {
		qps = maxQPS
	}
	rate := DefaultRefillRate * (qps / maxQPS)
	return &RateLimiter{
		tokens:     DefaultCapacity,
		capacity:   DefaultCapacity,
		refillRate: rate,
		baseRate:   rate,
		lastRefill: time.Now(),
	}
}

// Acquire blocks until the bucket holds enough tokens for op, or the context
// ends. Throttle windows are waited out before tokens are considered.
func (rl *RateLimiter) Acquire(ctx context.Context, op Operation) error {
	cost := float64(op.Cost())
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rl.mu.Lock()
		rl.refill()
		now := time.Now()

		var wait time.Duration
		if now.Before(rl.throttledUntil) {
			wait = rl.throttledUntil.Sub(now)
		} else if rl.tokens >= cost {
			rl.tokens -= cost
			rl.mu.Unlock()
			return nil
		} else {
			need := cost - rl.tokens
			wait = time.Duration(need / rl.refillRate * float64(time.Second))
		}
		rl.mu.Unlock()

		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TryAcquire consumes tokens for op if immediately available.
func (rl *RateLimiter) TryAcquire(op Operation) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if time.Now().Before(rl.throttledUntil) {
		return false
	}
	cost := float64(op.Cost())
	if rl.tokens < cost {
		return false
	}
	rl.tokens -= cost
	return true
}

// Throttle drains the bucket and halves the refill rate for at least d.
// An already-pending longer backoff is never shortened.
func (rl *RateLimiter) Throttle(d time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.tokens = 0
	rl.lastRefill = time.Now()
	until := time.Now().Add(d)
	if until.After(rl.throttledUntil) {
		rl.throttledUntil = until
	}
	rl.refillRate = rl.baseRate * throttleFactor
}

// RecoverRate restores the configured refill rate immediately.
func (rl *RateLimiter) RecoverRate() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillRate = rl.baseRate
}

// Available returns the current token count, mostly for diagnostics.
func (rl *RateLimiter) Available() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

// refill adds tokens for the time elapsed since the last refill. Must be
// called with the mutex held. No tokens accrue during a throttle window;
// once the window has passed the rate recovers on its own.
func (rl *RateLimiter) refill() {
	now := time.Now()
	if now.Before(rl.throttledUntil) {
		rl.lastRefill = now
		return
	}
	if !rl.throttledUntil.IsZero() {
		if rl.lastRefill.Before(rl.throttledUntil) {
			rl.lastRefill = rl.throttledUntil
		}
		rl.throttledUntil = time.Time{}
		rl.refillRate = rl.baseRate
	}

	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.capacity {
		rl.tokens = rl.capacity
	}
	rl.lastRefill = now
}
