// Package ratelimit provides per-provider admission control using a
// dual-window token bucket (per-second and per-minute budgets).
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/marketsrc/hermes/internal/core"
)

// Config holds the per-provider budget.
type Config struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
}

// Limiter owns one dual-window bucket per provider. The provider set is
// fixed at construction; buckets are never added or removed afterward,
// so lookups need no locking.
type Limiter struct {
	buckets map[core.ProviderID]*Bucket
}

// New creates a limiter for the given provider budgets.
func New(budgets map[core.ProviderID]Config) *Limiter {
	buckets := make(map[core.ProviderID]*Bucket, len(budgets))
	for id, cfg := range budgets {
		buckets[id] = NewBucket(cfg.RequestsPerSecond, cfg.RequestsPerMinute)
	}
	return &Limiter{buckets: buckets}
}

// Acquire admits one call of the given cost against a provider's budget,
// waiting at most maxWait for tokens.
func (l *Limiter) Acquire(ctx context.Context, provider core.ProviderID, cost float64, maxWait time.Duration) error {
	b, ok := l.buckets[provider]
	if !ok {
		return fmt.Errorf("ratelimit: unknown provider %q", provider)
	}
	return b.Acquire(ctx, cost, maxWait)
}

// Status reports the current bucket state for a provider.
func (l *Limiter) Status(provider core.ProviderID) (Status, bool) {
	b, ok := l.buckets[provider]
	if !ok {
		return Status{}, false
	}
	return b.Status(), true
}

// Providers returns the provider IDs the limiter budgets.
func (l *Limiter) Providers() []core.ProviderID {
	ids := make([]core.ProviderID, 0, len(l.buckets))
	for id := range l.buckets {
		ids = append(ids, id)
	}
	return ids
}
