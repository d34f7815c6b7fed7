package router

import (
	"sync"
	"time"

	"github.com/marketsrc/hermes/internal/core"
)

// HealthState is a provider's routing eligibility.
type HealthState string

const (
	// StateHealthy - provider is attempted in policy order.
	StateHealthy HealthState = "healthy"
	// StateCooling - provider is skipped until its cooldown elapses.
	StateCooling HealthState = "cooling"
	// StateUnusable - authentication failed; never recovered by
	// regular call successes, only by a passing explicit health check.
	StateUnusable HealthState = "unusable"
)

// HealthStatus is a point-in-time snapshot of a provider's health.
type HealthStatus struct {
	State               HealthState `json:"state"`
	ConsecutiveFailures int         `json:"consecutive_failures"`
	CooldownUntil       time.Time   `json:"cooldown_until,omitempty"`
}

// healthRecord tracks one provider's failure history. Its mutex is held
// only around state reads/writes, never across an upstream call.
type healthRecord struct {
	mu            sync.Mutex
	state         HealthState
	failures      int
	cooldownUntil time.Time
}

func newHealthRecord() *healthRecord {
	return &healthRecord{state: StateHealthy}
}

func (h *healthRecord) snapshot() HealthStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HealthStatus{
		State:               h.state,
		ConsecutiveFailures: h.failures,
		CooldownUntil:       h.cooldownUntil,
	}
}

// markSuccess resets the record to healthy. Any successful call
// recovers a cooling provider, but never an unusable one.
func (h *healthRecord) markSuccess() HealthStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateUnusable {
		h.reset()
	}
	return HealthStatus{State: h.state}
}

// markRecovered resets the record unconditionally, including out of
// the unusable state. Reached only from an explicit health check.
func (h *healthRecord) markRecovered() HealthStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reset()
	return HealthStatus{State: h.state}
}

// reset requires h.mu held.
func (h *healthRecord) reset() {
	h.state = StateHealthy
	h.failures = 0
	h.cooldownUntil = time.Time{}
}

// markFailure applies one failed call. NotFound never reaches here;
// AuthFailed makes the provider unusable outright. Other counted kinds
// move the record toward cooling once failures hit the threshold, with
// the upstream retry-after hint overriding the computed backoff for
// rate-limit errors.
func (h *healthRecord) markFailure(kind core.ErrorKind, retryAfter time.Duration, cfg Config, now time.Time) HealthStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	if kind == core.KindAuthFailed {
		h.state = StateUnusable
		h.cooldownUntil = time.Time{}
		return HealthStatus{State: h.state, ConsecutiveFailures: h.failures}
	}

	if !kind.CountsTowardFailure() || h.state == StateUnusable {
		return HealthStatus{State: h.state, ConsecutiveFailures: h.failures, CooldownUntil: h.cooldownUntil}
	}

	h.failures++
	if h.failures >= cfg.FailureThreshold {
		cooldown := backoff(cfg.BackoffBase, cfg.BackoffCap, h.failures-cfg.FailureThreshold)
		if kind == core.KindRateLimitExceeded && retryAfter > 0 {
			cooldown = retryAfter
		}
		h.state = StateCooling
		h.cooldownUntil = now.Add(cooldown)
	}

	return HealthStatus{State: h.state, ConsecutiveFailures: h.failures, CooldownUntil: h.cooldownUntil}
}

// backoff doubles per extra failure beyond the threshold, capped.
func backoff(base, cap time.Duration, extra int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	d := base
	for i := 0; i < extra; i++ {
		d *= 2
		if cap > 0 && d >= cap {
			return cap
		}
	}
	if cap > 0 && d > cap {
		return cap
	}
	return d
}

func healthGauge(s HealthState) float64 {
	switch s {
	case StateCooling:
		return 1
	case StateUnusable:
		return 2
	default:
		return 0
	}
}
