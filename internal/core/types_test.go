package core

import (
	"testing"
	"time"
)

func TestQuote_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		quote Quote
		valid bool
	}{
		{"valid", Quote{Symbol: "AAPL", Price: 187.32}, true},
		{"missing symbol", Quote{Price: 187.32}, false},
		{"zero price", Quote{Symbol: "AAPL"}, false},
		{"negative price", Quote{Symbol: "AAPL", Price: -1}, false},
	}

	for _, tc := range tests {
		if got := tc.quote.IsValid(); got != tc.valid {
			t.Errorf("%s: IsValid() = %v, want %v", tc.name, got, tc.valid)
		}
	}
}

func TestRange_IsValid(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		rng   Range
		valid bool
	}{
		{"ordered", Range{Start: now.Add(-time.Hour), End: now}, true},
		{"reversed", Range{Start: now, End: now.Add(-time.Hour)}, false},
		{"equal", Range{Start: now, End: now}, false},
		{"zero start", Range{End: now}, false},
		{"zero end", Range{Start: now}, false},
	}

	for _, tc := range tests {
		if got := tc.rng.IsValid(); got != tc.valid {
			t.Errorf("%s: IsValid() = %v, want %v", tc.name, got, tc.valid)
		}
	}
}
