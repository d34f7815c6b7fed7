// Package router orchestrates market-data requests: cache lookup,
// in-flight coalescing, rate-limited dispatch, ordered failover across
// providers, and per-provider health tracking.
package router

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/marketsrc/hermes/internal/cache"
	"github.com/marketsrc/hermes/internal/core"
	"github.com/marketsrc/hermes/internal/metrics"
	"github.com/marketsrc/hermes/internal/provider"
	"github.com/marketsrc/hermes/internal/ratelimit"
)

// Config holds router configuration
type Config struct {
	// Policy maps each data kind to its ordered provider list,
	// primary first. Static for the process lifetime.
	Policy map[core.DataKind][]core.ProviderID `mapstructure:"policy"`
	// TTL is the cache lifetime per data kind.
	TTL map[core.DataKind]time.Duration `mapstructure:"ttl"`

	FailureThreshold int           `mapstructure:"failure_threshold"`
	BackoffBase      time.Duration `mapstructure:"backoff_base"`
	BackoffCap       time.Duration `mapstructure:"backoff_cap"`
	MaxLimiterWait   time.Duration `mapstructure:"max_rate_limit_wait"`
}

// DefaultConfig returns default router configuration
func DefaultConfig() Config {
	return Config{
		TTL: map[core.DataKind]time.Duration{
			core.KindQuote: 15 * time.Second,
			core.KindBars:  10 * time.Minute,
			core.KindNews:  5 * time.Minute,
		},
		FailureThreshold: 3,
		BackoffBase:      30 * time.Second,
		BackoffCap:       15 * time.Minute,
		MaxLimiterWait:   2 * time.Second,
	}
}

// Archiver receives successful fetches for write-only snapshotting.
// It is never consulted on the read path.
type Archiver interface {
	Store(ctx context.Context, kind core.DataKind, symbol string, v any) error
}

// payload is the envelope stored in the cache: the canonical value plus
// the provider that produced it.
type payload struct {
	value    any
	provider core.ProviderID
}

// outcome is what a coalesced fetch yields to every attached caller.
type outcome struct {
	payload   payload
	fromCache bool
	stale     bool
}

// Router is the single long-lived request orchestrator. One instance
// serves many concurrent callers.
type Router struct {
	cfg      Config
	registry *provider.Registry
	limiter  *ratelimit.Limiter
	cache    *cache.Cache
	logger   *zap.Logger
	metrics  *metrics.Registry
	archiver Archiver

	group  singleflight.Group
	health map[core.ProviderID]*healthRecord

	now func() time.Time
}

// New creates a router. Health records are created for every provider
// named by the routing policy; the set never changes afterward.
func New(cfg Config, registry *provider.Registry, limiter *ratelimit.Limiter, c *cache.Cache, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.MaxLimiterWait <= 0 {
		cfg.MaxLimiterWait = DefaultConfig().MaxLimiterWait
	}

	health := make(map[core.ProviderID]*healthRecord)
	for _, ids := range cfg.Policy {
		for _, id := range ids {
			if _, ok := health[id]; !ok {
				health[id] = newHealthRecord()
			}
		}
	}

	return &Router{
		cfg:      cfg,
		registry: registry,
		limiter:  limiter,
		cache:    c,
		logger:   logger,
		health:   health,
		now:      time.Now,
	}
}

// SetMetrics attaches a metrics registry. Optional.
func (r *Router) SetMetrics(m *metrics.Registry) {
	r.metrics = m
}

// SetArchiver attaches a snapshot sink. Optional.
func (r *Router) SetArchiver(a Archiver) {
	r.archiver = a
}

// GetQuote returns the current quote for a symbol.
func (r *Router) GetQuote(ctx context.Context, symbol string) (*core.QuoteResult, error) {
	key := cache.Key(core.KindQuote, symbol)

	out, err := r.serve(ctx, core.KindQuote, key, symbol, func(ctx context.Context, c provider.Client) (any, error) {
		q, err := c.GetQuote(ctx, symbol)
		if err != nil {
			return nil, err
		}
		return *q, nil
	})
	if err != nil {
		return nil, err
	}

	return &core.QuoteResult{
		Quote: out.payload.value.(core.Quote),
		Meta:  out.meta(),
	}, nil
}

// GetBars returns historical bars for a symbol over the range.
func (r *Router) GetBars(ctx context.Context, symbol string, timeframe core.Timeframe, rng core.Range) (*core.BarsResult, error) {
	key := cache.Key(core.KindBars, symbol, string(timeframe),
		rng.Start.UTC().Format(time.RFC3339), rng.End.UTC().Format(time.RFC3339))

	out, err := r.serve(ctx, core.KindBars, key, symbol, func(ctx context.Context, c provider.Client) (any, error) {
		bars, err := c.GetBars(ctx, symbol, timeframe, rng)
		if err != nil {
			return nil, err
		}
		return bars, nil
	})
	if err != nil {
		return nil, err
	}

	return &core.BarsResult{
		Bars: out.payload.value.([]core.Bar),
		Meta: out.meta(),
	}, nil
}

// GetNews returns news for a symbol, or market-wide news when symbol is
// empty.
func (r *Router) GetNews(ctx context.Context, symbol string) (*core.NewsResult, error) {
	key := cache.Key(core.KindNews, symbol)

	out, err := r.serve(ctx, core.KindNews, key, symbol, func(ctx context.Context, c provider.Client) (any, error) {
		items, err := c.GetNews(ctx, symbol)
		if err != nil {
			return nil, err
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}

	return &core.NewsResult{
		Items: out.payload.value.([]core.NewsItem),
		Meta:  out.meta(),
	}, nil
}

func (o outcome) meta() core.Meta {
	return core.Meta{
		Provider:  o.payload.provider,
		FromCache: o.fromCache,
		Stale:     o.stale,
	}
}

// serve implements the request algorithm shared by all data kinds:
// fresh-cache check, then a coalesced dispatch so at most one upstream
// fetch per key is in flight.
func (r *Router) serve(ctx context.Context, kind core.DataKind, key, symbol string, call fetchFunc) (outcome, error) {
	if v, ok := r.cache.Get(key); ok {
		r.metrics.RecordCacheLookup(string(kind), "hit")
		return outcome{payload: v.(payload), fromCache: true}, nil
	}
	r.metrics.RecordCacheLookup(string(kind), "miss")

	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.dispatch(ctx, kind, key, symbol, call)
	})
	if err != nil {
		return outcome{}, err
	}
	return v.(outcome), nil
}

// fetchFunc invokes one data-kind operation against a concrete client.
type fetchFunc func(context.Context, provider.Client) (any, error)

// dispatch walks the routing policy for the kind: skip cooling and
// unusable providers (forcing the soonest-to-recover one when every
// candidate is cooling), acquire rate-limiter admission with a bounded
// wait, call the provider, and maintain health state from the outcome.
// Exhaustion degrades to a stale cache read when one exists.
func (r *Router) dispatch(ctx context.Context, kind core.DataKind, key, symbol string, call fetchFunc) (any, error) {
	candidates, forced := r.candidates(kind)

	for i, id := range candidates {
		if i > 0 {
			r.metrics.RecordFailover(string(kind))
		}
		if ctx.Err() != nil {
			break
		}

		client, ok := r.registry.Get(id)
		if !ok {
			r.logger.Error("policy names unregistered provider",
				zap.String("provider", string(id)),
				zap.String("kind", string(kind)),
			)
			continue
		}

		waitStart := r.now()
		if err := r.limiter.Acquire(ctx, id, 1, r.cfg.MaxLimiterWait); err != nil {
			// Bounded-wait overflow is handled like an upstream
			// timeout: count it and move to the next candidate.
			r.metrics.RecordLimiterWait(string(id), r.now().Sub(waitStart).Seconds())
			r.recordFailure(id, kind, core.NewProviderError(core.KindTimeout, id, "rate limit wait exceeded", err))
			continue
		}
		r.metrics.RecordLimiterWait(string(id), r.now().Sub(waitStart).Seconds())

		value, err := call(ctx, client)
		if err == nil {
			r.recordSuccess(id, kind)
			p := payload{value: value, provider: id}
			r.cache.Set(key, p, r.ttl(kind), []string{symbol, string(id), string(kind)})
			r.snapshot(ctx, kind, symbol, value)
			return outcome{payload: p}, nil
		}

		pe := asProviderError(id, err)
		if pe.Kind.SurfacedImmediately() {
			if pe.Kind == core.KindAuthFailed {
				r.recordFailure(id, kind, pe)
			} else {
				r.metrics.RecordProviderRequest(string(id), string(kind), string(pe.Kind))
			}
			return outcome{}, pe
		}
		r.recordFailure(id, kind, pe)
	}

	if v, ok := r.cache.GetStale(key); ok {
		r.metrics.RecordStaleServed(string(kind))
		r.logger.Warn("serving stale cache entry",
			zap.String("kind", string(kind)),
			zap.String("symbol", symbol),
			zap.Bool("forced_attempt", forced),
		)
		return outcome{payload: v.(payload), fromCache: true, stale: true}, nil
	}

	return nil, core.NewProviderError(core.KindAllUnavailable, "",
		"no provider could serve "+string(kind)+" for "+symbol, nil)
}

// candidates returns the ordered providers to attempt. When every
// policy entry is cooling, the one with the earliest cooldown expiry is
// force-attempted to guarantee forward progress; unusable providers are
// never attempted.
func (r *Router) candidates(kind core.DataKind) ([]core.ProviderID, bool) {
	now := r.now()

	var eligible []core.ProviderID
	var soonest core.ProviderID
	var soonestAt time.Time

	for _, id := range r.cfg.Policy[kind] {
		h, ok := r.health[id]
		if !ok {
			continue
		}
		st := h.snapshot()
		switch {
		case st.State == StateUnusable:
			// requires a config fix; never attempted
		case st.State == StateCooling && now.Before(st.CooldownUntil):
			if soonest == "" || st.CooldownUntil.Before(soonestAt) {
				soonest = id
				soonestAt = st.CooldownUntil
			}
		default:
			eligible = append(eligible, id)
		}
	}

	if len(eligible) == 0 && soonest != "" {
		return []core.ProviderID{soonest}, true
	}
	return eligible, false
}

func (r *Router) recordSuccess(id core.ProviderID, kind core.DataKind) {
	h := r.health[id]
	if h == nil {
		return
	}
	st := h.markSuccess()
	r.metrics.RecordProviderRequest(string(id), string(kind), "success")
	r.metrics.SetProviderHealth(string(id), healthGauge(st.State))
}

func (r *Router) recordFailure(id core.ProviderID, kind core.DataKind, pe *core.ProviderError) {
	h := r.health[id]
	if h == nil {
		return
	}

	before := h.snapshot().State
	st := h.markFailure(pe.Kind, pe.RetryAfter, r.cfg, r.now())

	r.metrics.RecordProviderRequest(string(id), string(kind), string(pe.Kind))
	r.metrics.SetProviderHealth(string(id), healthGauge(st.State))

	if st.State != before {
		r.logger.Info("provider state changed",
			zap.String("provider", string(id)),
			zap.String("from", string(before)),
			zap.String("to", string(st.State)),
			zap.Int("consecutive_failures", st.ConsecutiveFailures),
			zap.Time("cooldown_until", st.CooldownUntil),
		)
	} else {
		r.logger.Warn("provider call failed",
			zap.String("provider", string(id)),
			zap.String("kind", string(kind)),
			zap.Error(pe),
		)
	}
}

// CheckProvider runs the provider's health check through the regular
// rate-limiter budget. A passing check recovers a cooling or unusable
// provider.
func (r *Router) CheckProvider(ctx context.Context, id core.ProviderID) error {
	client, ok := r.registry.Get(id)
	if !ok {
		return core.NewProviderError(core.KindNotFound, id, "provider not registered", nil)
	}

	if err := r.limiter.Acquire(ctx, id, 1, r.cfg.MaxLimiterWait); err != nil {
		return core.NewProviderError(core.KindTimeout, id, "rate limit wait exceeded", err)
	}

	if err := client.HealthCheck(ctx); err != nil {
		r.recordFailure(id, "", asProviderError(id, err))
		return err
	}
	r.recordRecovery(id)
	return nil
}

// recordRecovery clears any health state, unusable included. Only a
// passing explicit health check takes this path; regular call
// successes go through recordSuccess and cannot clear unusable.
func (r *Router) recordRecovery(id core.ProviderID) {
	h := r.health[id]
	if h == nil {
		return
	}
	before := h.snapshot().State
	st := h.markRecovered()
	r.metrics.SetProviderHealth(string(id), healthGauge(st.State))
	if st.State != before {
		r.logger.Info("provider recovered by health check",
			zap.String("provider", string(id)),
			zap.String("from", string(before)),
		)
	}
}

// HealthStatus reports the health of every provider under management.
func (r *Router) HealthStatus() map[core.ProviderID]HealthStatus {
	out := make(map[core.ProviderID]HealthStatus, len(r.health))
	for id, h := range r.health {
		out[id] = h.snapshot()
	}
	return out
}

func (r *Router) ttl(kind core.DataKind) time.Duration {
	if ttl, ok := r.cfg.TTL[kind]; ok && ttl > 0 {
		return ttl
	}
	return DefaultConfig().TTL[kind]
}

// snapshot forwards a successful fetch to the archiver, best effort.
func (r *Router) snapshot(ctx context.Context, kind core.DataKind, symbol string, value any) {
	if r.archiver == nil {
		return
	}
	if err := r.archiver.Store(ctx, kind, symbol, value); err != nil {
		r.logger.Warn("archive snapshot failed",
			zap.String("kind", string(kind)),
			zap.String("symbol", symbol),
			zap.Error(err),
		)
	}
}

// asProviderError normalizes any client error into a tagged
// ProviderError; unrecognized errors count as upstream failures.
func asProviderError(id core.ProviderID, err error) *core.ProviderError {
	var pe *core.ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return core.NewProviderError(core.KindUpstreamError, id, "unclassified provider failure", err)
}
