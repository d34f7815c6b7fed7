// Package app wires the long-lived routing stack: one registry, one
// rate limiter, one cache, one router, constructed once at startup and
// passed explicitly into every request path.
package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/marketsrc/hermes/internal/archive"
	"github.com/marketsrc/hermes/internal/cache"
	"github.com/marketsrc/hermes/internal/config"
	"github.com/marketsrc/hermes/internal/core"
	"github.com/marketsrc/hermes/internal/logger"
	"github.com/marketsrc/hermes/internal/metrics"
	"github.com/marketsrc/hermes/internal/provider"
	"github.com/marketsrc/hermes/internal/ratelimit"
	"github.com/marketsrc/hermes/internal/router"
)

// App owns the single router instance and its collaborators.
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *provider.Registry
	limiter  *ratelimit.Limiter
	cache    *cache.Cache
	router   *router.Router
	metrics  *metrics.Registry
}

// New builds the stack from configuration and the given provider
// clients. Clients without an enabled config entry are rejected so the
// limiter always budgets every routable provider.
func New(cfg *config.Config, log *zap.Logger, clients ...provider.Client) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	budgets := make(map[core.ProviderID]ratelimit.Config)
	for name, p := range cfg.Providers {
		if !p.Enabled {
			continue
		}
		budgets[core.ProviderID(name)] = ratelimit.Config{
			RequestsPerSecond: p.RequestsPerSecond,
			RequestsPerMinute: p.RequestsPerMinute,
		}
	}

	registry := provider.NewRegistry()
	for _, c := range clients {
		if _, ok := budgets[c.Name()]; !ok {
			return nil, fmt.Errorf("provider %q has no enabled configuration", c.Name())
		}
		registry.Register(c)
	}

	store := cache.New(cfg.Cache.MaxEntries)

	rcfg := router.Config{
		Policy: cfg.Policy(),
		TTL: map[core.DataKind]time.Duration{
			core.KindQuote: cfg.TTLFor(core.KindQuote),
			core.KindBars:  cfg.TTLFor(core.KindBars),
			core.KindNews:  cfg.TTLFor(core.KindNews),
		},
		FailureThreshold: cfg.Router.FailureThreshold,
		BackoffBase:      cfg.Router.BackoffBase,
		BackoffCap:       cfg.Router.BackoffCap,
		MaxLimiterWait:   cfg.Router.MaxRateLimitWait,
	}
	limiter := ratelimit.New(budgets)
	rt := router.New(rcfg, registry, limiter, store, logger.Component(log, "router"))

	a := &App{
		cfg:      cfg,
		logger:   log,
		registry: registry,
		limiter:  limiter,
		cache:    store,
		router:   rt,
	}

	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewRegistry()
		rt.SetMetrics(a.metrics)
	}

	if cfg.Archive.Enabled {
		storage, err := newArchiveStorage(cfg.Archive)
		if err != nil {
			return nil, fmt.Errorf("building archive storage: %w", err)
		}
		rt.SetArchiver(archive.NewSnapshotter(storage))
	}

	return a, nil
}

func newArchiveStorage(cfg config.ArchiveConfig) (archive.Storage, error) {
	switch cfg.Type {
	case "s3":
		return archive.NewS3(archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	default:
		return archive.NewLocalFS(cfg.Path)
	}
}

// Router returns the request orchestrator.
func (a *App) Router() *router.Router {
	return a.router
}

// Metrics returns the metrics registry, or nil when disabled.
func (a *App) Metrics() *metrics.Registry {
	return a.metrics
}

// CacheStats reports cache counters.
func (a *App) CacheStats() cache.Stats {
	return a.cache.Stats()
}

// InvalidateSymbol drops every cached entry for a symbol and returns
// how many were removed.
func (a *App) InvalidateSymbol(symbol string) int {
	return a.cache.Invalidate(symbol)
}

// LimiterStatus reports a provider's current token levels.
func (a *App) LimiterStatus(id core.ProviderID) (ratelimit.Status, bool) {
	return a.limiter.Status(id)
}

// HealthStatus reports every provider's health.
func (a *App) HealthStatus() map[core.ProviderID]router.HealthStatus {
	return a.router.HealthStatus()
}
