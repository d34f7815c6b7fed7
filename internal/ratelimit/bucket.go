package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrWaitExceeded is returned when a token would not become available
// within the caller's wait bound. No tokens are consumed.
var ErrWaitExceeded = errors.New("ratelimit: wait exceeds bound")

// window is a single token bucket window.
// - capacity: maximum tokens the window can hold (burst)
// - rate: tokens per second
type window struct {
	capacity float64
	rate     float64
	tokens   float64
}

// refill advances the window by elapsed seconds, capped at capacity.
func (w *window) refill(elapsed float64) {
	w.tokens += elapsed * w.rate
	if w.tokens > w.capacity {
		w.tokens = w.capacity
	}
}

// waitFor returns how long until the window holds at least cost tokens.
func (w *window) waitFor(cost float64) time.Duration {
	if w.tokens >= cost {
		return 0
	}
	deficit := cost - w.tokens
	return time.Duration(deficit / w.rate * float64(time.Second))
}

// Bucket enforces a dual-window rate limit: a per-second budget and a
// per-minute budget. A call is admitted only when both windows hold
// enough tokens; admission debits both atomically with respect to
// concurrent acquirers.
type Bucket struct {
	mu     sync.Mutex
	second window
	minute window
	last   time.Time
}

// Status is a point-in-time snapshot of a bucket for observability.
type Status struct {
	TokensPerSecondLeft float64   `json:"tokens_per_second_left"`
	TokensPerMinuteLeft float64   `json:"tokens_per_minute_left"`
	NextRefillAt        time.Time `json:"next_refill_at"`
}

// NewBucket creates a dual-window bucket. Both windows start full so an
// initial burst up to the per-second capacity is allowed.
func NewBucket(perSecond, perMinute float64) *Bucket {
	if perSecond <= 0 {
		perSecond = 1
	}
	if perMinute <= 0 {
		perMinute = perSecond * 60
	}
	return &Bucket{
		second: window{capacity: perSecond, rate: perSecond, tokens: perSecond},
		minute: window{capacity: perMinute, rate: perMinute / 60, tokens: perMinute},
		last:   time.Now(),
	}
}

// Acquire blocks until both windows hold at least cost tokens, then
// debits both. It fails with ErrWaitExceeded without consuming tokens
// when availability lies beyond maxWait, and with the context error when
// the caller's deadline expires first.
func (b *Bucket) Acquire(ctx context.Context, cost float64, maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)

	for {
		b.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(b.last).Seconds()
		if elapsed > 0 {
			b.second.refill(elapsed)
			b.minute.refill(elapsed)
			b.last = now
		}

		if b.second.tokens >= cost && b.minute.tokens >= cost {
			b.second.tokens -= cost
			b.minute.tokens -= cost
			b.mu.Unlock()
			return nil
		}

		// Earliest instant both windows can satisfy the cost.
		wait := b.second.waitFor(cost)
		if mw := b.minute.waitFor(cost); mw > wait {
			wait = mw
		}
		b.mu.Unlock()

		if now.Add(wait).After(deadline) {
			return ErrWaitExceeded
		}
		if dl, ok := ctx.Deadline(); ok && now.Add(wait).After(dl) {
			return context.DeadlineExceeded
		}
		if wait <= 0 {
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

// Status reports current token levels and the next instant a whole token
// becomes available in the most depleted window.
func (b *Bucket) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.second.refill(elapsed)
		b.minute.refill(elapsed)
		b.last = now
	}

	next := now
	if w := b.second.waitFor(1); w > 0 {
		next = now.Add(w)
	}
	if w := b.minute.waitFor(1); now.Add(w).After(next) {
		next = now.Add(w)
	}

	return Status{
		TokensPerSecondLeft: b.second.tokens,
		TokensPerMinuteLeft: b.minute.tokens,
		NextRefillAt:        next,
	}
}
