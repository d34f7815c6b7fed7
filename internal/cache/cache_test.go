package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/marketsrc/hermes/internal/core"
)

// advance installs a controllable clock on the cache and returns a
// function that moves it forward.
func advance(c *Cache) func(time.Duration) {
	now := time.Now()
	c.now = func() time.Time { return now }
	return func(d time.Duration) { now = now.Add(d) }
}

func TestCache_RoundTrip(t *testing.T) {
	c := New(10)
	tick := advance(c)

	c.Set("quote:AAPL", 187.32, 60*time.Second, []string{"AAPL"})

	v, ok := c.Get("quote:AAPL")
	if !ok {
		t.Fatal("expected fresh hit immediately after set")
	}
	if v.(float64) != 187.32 {
		t.Errorf("got %v, want 187.32", v)
	}

	// Past the TTL the normal path misses but the stale path still serves.
	tick(61 * time.Second)

	if _, ok := c.Get("quote:AAPL"); ok {
		t.Error("expected miss past TTL")
	}
	v, ok = c.GetStale("quote:AAPL")
	if !ok {
		t.Fatal("expected stale read to return the expired value")
	}
	if v.(float64) != 187.32 {
		t.Errorf("stale read got %v, want 187.32", v)
	}
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	c := New(10)

	if _, ok := c.Get("nope"); ok {
		t.Error("expected miss for unknown key")
	}
	if _, ok := c.GetStale("nope"); ok {
		t.Error("expected stale miss for unknown key")
	}
}

func TestCache_SetReplaces(t *testing.T) {
	c := New(10)

	c.Set("k", 1, time.Minute, []string{"a"})
	c.Set("k", 2, time.Minute, []string{"b"})

	v, ok := c.Get("k")
	if !ok || v.(int) != 2 {
		t.Fatalf("got %v, %v; want 2, true", v, ok)
	}
	if n := c.Invalidate("a"); n != 0 {
		t.Errorf("stale tag index removed %d entries, want 0", n)
	}
	if n := c.Invalidate("b"); n != 1 {
		t.Errorf("Invalidate(b) = %d, want 1", n)
	}
}

func TestCache_InvalidateByTag(t *testing.T) {
	c := New(10)

	c.Set("quote:AAPL", 1, time.Minute, []string{"AAPL", "alpha", "quote"})
	c.Set("bars:AAPL:1d", 2, time.Minute, []string{"AAPL", "beta", "bars"})
	c.Set("quote:MSFT", 3, time.Minute, []string{"MSFT", "alpha", "quote"})

	if n := c.Invalidate("AAPL"); n != 2 {
		t.Fatalf("Invalidate(AAPL) = %d, want 2", n)
	}
	if _, ok := c.Get("quote:AAPL"); ok {
		t.Error("quote:AAPL should be gone")
	}
	if _, ok := c.Get("bars:AAPL:1d"); ok {
		t.Error("bars:AAPL:1d should be gone")
	}
	if _, ok := c.Get("quote:MSFT"); !ok {
		t.Error("quote:MSFT should survive")
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New(3)

	c.Set("a", 1, time.Minute, nil)
	c.Set("b", 2, time.Minute, nil)
	c.Set("c", 3, time.Minute, nil)

	// Touch a and c so b becomes least recently used.
	c.Get("a")
	c.Get("c")

	c.Set("d", 4, time.Minute, nil)

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("expected %s to survive", k)
		}
	}

	st := c.Stats()
	if st.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", st.Evictions)
	}
	if st.Size != 3 {
		t.Errorf("Size = %d, want 3", st.Size)
	}
}

func TestCache_EvictionTieBreaksByInsertion(t *testing.T) {
	c := New(2)

	c.Set("first", 1, time.Minute, nil)
	c.Set("second", 2, time.Minute, nil)
	// Neither has been read; the earliest insertion goes first.
	c.Set("third", 3, time.Minute, nil)

	if _, ok := c.Get("first"); ok {
		t.Error("expected first (earliest insertion) to be evicted")
	}
	if _, ok := c.Get("second"); !ok {
		t.Error("expected second to survive")
	}
}

func TestCache_Stats(t *testing.T) {
	c := New(10)

	c.Set("k", 1, time.Minute, nil)
	c.Get("k")
	c.Get("k")
	c.Get("missing")

	st := c.Stats()
	if st.Hits != 2 {
		t.Errorf("Hits = %d, want 2", st.Hits)
	}
	if st.Misses != 1 {
		t.Errorf("Misses = %d, want 1", st.Misses)
	}
	if st.Size != 1 {
		t.Errorf("Size = %d, want 1", st.Size)
	}
}

func TestCache_StaleReadDoesNotCountStats(t *testing.T) {
	c := New(10)
	tick := advance(c)

	c.Set("k", 1, time.Second, nil)
	tick(2 * time.Second)

	c.GetStale("k")
	c.GetStale("missing")

	st := c.Stats()
	if st.Hits != 0 || st.Misses != 0 {
		t.Errorf("stale reads moved counters: hits=%d misses=%d", st.Hits, st.Misses)
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		kind     core.DataKind
		symbol   string
		params   []string
		expected string
	}{
		{core.KindQuote, "AAPL", nil, "quote:AAPL"},
		{core.KindBars, "AAPL", []string{"1d", "2024-01-01", "2024-02-01"}, "bars:AAPL:1d:2024-01-01:2024-02-01"},
		{core.KindNews, "", nil, "news:"},
	}

	for _, tc := range tests {
		if got := Key(tc.kind, tc.symbol, tc.params...); got != tc.expected {
			t.Errorf("Key(%s, %s, %v) = %q, want %q", tc.kind, tc.symbol, tc.params, got, tc.expected)
		}
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New(100)
	done := make(chan struct{})

	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", j%50)
				c.Set(key, j, time.Minute, []string{"t"})
				c.Get(key)
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	if st := c.Stats(); st.Size > 100 {
		t.Errorf("Size = %d exceeds bound 100", st.Size)
	}
}
