package core

import "time"

// ProviderID identifies a concrete upstream data provider. The set of
// providers is fixed at configuration time.
type ProviderID string

// DataKind represents the category of market data requested
type DataKind string

const (
	KindQuote DataKind = "quote"
	KindBars  DataKind = "bars"
	KindNews  DataKind = "news"
)

// Timeframe represents a bar interval
type Timeframe string

const (
	Timeframe1Min  Timeframe = "1m"
	Timeframe5Min  Timeframe = "5m"
	Timeframe15Min Timeframe = "15m"
	Timeframe1Hour Timeframe = "1h"
	Timeframe1Day  Timeframe = "1d"
	Timeframe1Week Timeframe = "1w"
)

// IsValid reports whether the timeframe is one of the supported intervals.
func (t Timeframe) IsValid() bool {
	switch t {
	case Timeframe1Min, Timeframe5Min, Timeframe15Min,
		Timeframe1Hour, Timeframe1Day, Timeframe1Week:
		return true
	}
	return false
}

// Range is a half-open [Start, End) time window for historical queries.
type Range struct {
	Start time.Time
	End   time.Time
}

// IsValid checks that the range is non-empty and ordered.
func (r Range) IsValid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && r.Start.Before(r.End)
}

// Quote represents a real-time price quote
type Quote struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Bid    float64   `json:"bid,omitempty"`
	Ask    float64   `json:"ask,omitempty"`
	Volume int64     `json:"volume"`
	Time   time.Time `json:"time"`
}

// IsValid checks if the quote has required fields
func (q Quote) IsValid() bool {
	return q.Symbol != "" && q.Price > 0
}

// Bar represents a single OHLCV candlestick
type Bar struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	Time      time.Time `json:"time"`
}

// NewsItem represents a news article or announcement.
type NewsItem struct {
	Headline    string    `json:"headline"`
	Summary     string    `json:"summary,omitempty"`
	Source      string    `json:"source"`
	URL         string    `json:"url,omitempty"`
	Symbols     []string  `json:"symbols,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Meta annotates every routed result with how it was served.
type Meta struct {
	Provider  ProviderID `json:"provider"`
	FromCache bool       `json:"from_cache"`
	Stale     bool       `json:"stale"`
}

// QuoteResult is a quote plus serving metadata.
type QuoteResult struct {
	Quote Quote `json:"quote"`
	Meta  Meta  `json:"meta"`
}

// BarsResult is a bar series plus serving metadata.
type BarsResult struct {
	Bars []Bar `json:"bars"`
	Meta Meta  `json:"meta"`
}

// NewsResult is a news list plus serving metadata.
type NewsResult struct {
	Items []NewsItem `json:"items"`
	Meta  Meta       `json:"meta"`
}
