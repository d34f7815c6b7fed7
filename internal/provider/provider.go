package provider

import (
	"context"

	"github.com/marketsrc/hermes/internal/core"
)

// Client is the uniform capability contract every upstream implements.
// Operations return canonical types or a *core.ProviderError; no
// upstream-specific error type crosses this boundary. Field-level wire
// mapping is the concrete implementation's responsibility.
type Client interface {
	// Name returns the provider identifier used in routing policy,
	// logs, and cache tags.
	Name() core.ProviderID

	// GetQuote fetches the current quote for a symbol.
	GetQuote(ctx context.Context, symbol string) (*core.Quote, error)

	// GetBars fetches historical bars for a symbol over the range.
	GetBars(ctx context.Context, symbol string, timeframe core.Timeframe, rng core.Range) ([]core.Bar, error)

	// GetNews fetches news for a symbol, or market-wide news when
	// symbol is empty.
	GetNews(ctx context.Context, symbol string) ([]core.NewsItem, error)

	// HealthCheck probes upstream reachability. It consumes regular
	// rate-limiter budget like any other call.
	HealthCheck(ctx context.Context) error
}
