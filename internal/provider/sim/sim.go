// Package sim implements a deterministic synthetic market-data provider.
// It lets the full routing stack run end-to-end without upstream
// credentials and backs the router tests and the fetch command.
package sim

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/marketsrc/hermes/internal/core"
)

// Sim generates reproducible pseudo-market data keyed off the symbol.
type Sim struct {
	id core.ProviderID

	// now is swappable for tests
	now func() time.Time
}

// New creates a simulated provider with the given identity.
func New(id core.ProviderID) *Sim {
	return &Sim{id: id, now: time.Now}
}

func (s *Sim) Name() core.ProviderID {
	return s.id
}

// basePrice derives a stable price level from the symbol.
func basePrice(symbol string) float64 {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return 20 + float64(h.Sum32()%98000)/100
}

// priceAt adds a slow deterministic oscillation so repeated fetches move.
func priceAt(symbol string, t time.Time) float64 {
	base := basePrice(symbol)
	phase := float64(t.Unix()%3600) / 3600 * 2 * math.Pi
	return base * (1 + 0.01*math.Sin(phase))
}

func (s *Sim) GetQuote(ctx context.Context, symbol string) (*core.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewProviderError(core.KindTimeout, s.id, "context done", err)
	}
	if symbol == "" {
		return nil, core.NewProviderError(core.KindNotFound, s.id, "empty symbol", nil)
	}

	now := s.now()
	price := priceAt(symbol, now)
	return &core.Quote{
		Symbol: symbol,
		Price:  price,
		Bid:    price * 0.9995,
		Ask:    price * 1.0005,
		Volume: int64(basePrice(symbol) * 1000),
		Time:   now,
	}, nil
}

func (s *Sim) GetBars(ctx context.Context, symbol string, timeframe core.Timeframe, rng core.Range) ([]core.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewProviderError(core.KindTimeout, s.id, "context done", err)
	}
	if symbol == "" {
		return nil, core.NewProviderError(core.KindNotFound, s.id, "empty symbol", nil)
	}
	if !rng.IsValid() {
		return nil, core.NewProviderError(core.KindMalformed, s.id,
			fmt.Sprintf("invalid range %v..%v", rng.Start, rng.End), nil)
	}

	step := timeframeStep(timeframe)
	var bars []core.Bar
	for t := rng.Start.Truncate(step); t.Before(rng.End); t = t.Add(step) {
		open := priceAt(symbol, t)
		close := priceAt(symbol, t.Add(step))
		high := math.Max(open, close) * 1.002
		low := math.Min(open, close) * 0.998
		bars = append(bars, core.Bar{
			Symbol:    symbol,
			Timeframe: timeframe,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    int64(basePrice(symbol) * 500),
			Time:      t,
		})
	}
	return bars, nil
}

func (s *Sim) GetNews(ctx context.Context, symbol string) ([]core.NewsItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewProviderError(core.KindTimeout, s.id, "context done", err)
	}

	now := s.now()
	subject := symbol
	if subject == "" {
		subject = "markets"
	}
	return []core.NewsItem{
		{
			Headline:    fmt.Sprintf("Simulated headline for %s", subject),
			Summary:     "Synthetic item produced by the sim provider.",
			Source:      string(s.id),
			Symbols:     symbolsFor(symbol),
			PublishedAt: now.Add(-time.Hour),
		},
	}, nil
}

func (s *Sim) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

func symbolsFor(symbol string) []string {
	if symbol == "" {
		return nil
	}
	return []string{symbol}
}

func timeframeStep(tf core.Timeframe) time.Duration {
	switch tf {
	case core.Timeframe1Min:
		return time.Minute
	case core.Timeframe5Min:
		return 5 * time.Minute
	case core.Timeframe15Min:
		return 15 * time.Minute
	case core.Timeframe1Hour:
		return time.Hour
	case core.Timeframe1Week:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}
