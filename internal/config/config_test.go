package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marketsrc/hermes/internal/core"
)

func TestDefaults_AreValid(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"zero threshold", func(c *Config) { c.Router.FailureThreshold = 0 }},
		{"zero backoff base", func(c *Config) { c.Router.BackoffBase = 0 }},
		{"cap below base", func(c *Config) { c.Router.BackoffCap = time.Second; c.Router.BackoffBase = time.Minute }},
		{"negative limiter wait", func(c *Config) { c.Router.MaxRateLimitWait = -time.Second }},
		{"zero cache entries", func(c *Config) { c.Cache.MaxEntries = 0 }},
		{"provider zero rps", func(c *Config) {
			c.Providers["sim-primary"] = ProviderConfig{Enabled: true, RequestsPerMinute: 60}
		}},
		{"routing unknown kind", func(c *Config) { c.Routing["ticks"] = []string{"sim-primary"} }},
		{"routing empty chain", func(c *Config) { c.Routing["quote"] = nil }},
		{"routing unknown provider", func(c *Config) { c.Routing["quote"] = []string{"ghost"} }},
		{"routing disabled provider", func(c *Config) {
			c.Providers["off"] = ProviderConfig{Enabled: false}
			c.Routing["quote"] = []string{"off"}
		}},
		{"archive localfs without path", func(c *Config) { c.Archive.Enabled = true; c.Archive.Type = "localfs" }},
		{"archive s3 without bucket", func(c *Config) { c.Archive.Enabled = true; c.Archive.Type = "s3" }},
		{"archive unknown type", func(c *Config) { c.Archive.Enabled = true; c.Archive.Type = "tape" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	content := `
server:
  host: 127.0.0.1
  port: 9090
providers:
  alpha:
    enabled: true
    requests_per_second: 4
    requests_per_minute: 120
  beta:
    enabled: true
    requests_per_second: 2
    requests_per_minute: 60
routing:
  quote: [alpha, beta]
  bars: [alpha]
  news: [beta]
cache:
  max_entries: 100
  quote_ttl: 10s
  bars_ttl: 5m
  news_ttl: 2m
router:
  failure_threshold: 5
  backoff_base: 10s
  backoff_cap: 5m
  max_rate_limit_wait: 1s
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config invalid: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Router.FailureThreshold != 5 {
		t.Errorf("failure_threshold = %d, want 5", cfg.Router.FailureThreshold)
	}
	if cfg.Cache.QuoteTTL != 10*time.Second {
		t.Errorf("quote_ttl = %v, want 10s", cfg.Cache.QuoteTTL)
	}
	if got := cfg.Providers["alpha"].RequestsPerSecond; got != 4 {
		t.Errorf("alpha rps = %f, want 4", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPolicy(t *testing.T) {
	cfg := Defaults()
	policy := cfg.Policy()

	quote, ok := policy[core.KindQuote]
	if !ok {
		t.Fatal("expected quote policy")
	}
	if len(quote) != 2 || quote[0] != "sim-primary" {
		t.Errorf("quote policy = %v, want [sim-primary sim-backup]", quote)
	}
}

func TestTTLFor(t *testing.T) {
	cfg := Defaults()

	tests := []struct {
		kind core.DataKind
		want time.Duration
	}{
		{core.KindQuote, 15 * time.Second},
		{core.KindBars, 10 * time.Minute},
		{core.KindNews, 5 * time.Minute},
		{core.DataKind("other"), 0},
	}

	for _, tc := range tests {
		if got := cfg.TTLFor(tc.kind); got != tc.want {
			t.Errorf("TTLFor(%s) = %v, want %v", tc.kind, got, tc.want)
		}
	}
}
