package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/marketsrc/hermes/internal/core"
)

type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Routing   map[string][]string       `mapstructure:"routing"`
	Cache     CacheConfig               `mapstructure:"cache"`
	Router    RouterConfig              `mapstructure:"router"`
	Metrics   MetricsConfig             `mapstructure:"metrics"`
	Archive   ArchiveConfig             `mapstructure:"archive"`
}

type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

// ProviderConfig holds one upstream's budget and credentials.
type ProviderConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
}

// CacheConfig bounds the in-memory cache and sets per-kind TTLs.
type CacheConfig struct {
	MaxEntries int           `mapstructure:"max_entries"`
	QuoteTTL   time.Duration `mapstructure:"quote_ttl"`
	BarsTTL    time.Duration `mapstructure:"bars_ttl"`
	NewsTTL    time.Duration `mapstructure:"news_ttl"`
}

// RouterConfig holds failover and health tuning.
type RouterConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	BackoffBase      time.Duration `mapstructure:"backoff_base"`
	BackoffCap       time.Duration `mapstructure:"backoff_cap"`
	MaxRateLimitWait time.Duration `mapstructure:"max_rate_limit_wait"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ArchiveConfig holds snapshot archival settings.
type ArchiveConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Type    string   `mapstructure:"type"` // "localfs" or "s3"
	Path    string   `mapstructure:"path"` // For localfs
	S3      S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Providers: map[string]ProviderConfig{
			"sim-primary": {
				Enabled:           true,
				RequestsPerSecond: 10,
				RequestsPerMinute: 300,
			},
			"sim-backup": {
				Enabled:           true,
				RequestsPerSecond: 5,
				RequestsPerMinute: 100,
			},
		},
		Routing: map[string][]string{
			string(core.KindQuote): {"sim-primary", "sim-backup"},
			string(core.KindBars):  {"sim-primary", "sim-backup"},
			string(core.KindNews):  {"sim-backup", "sim-primary"},
		},
		Cache: CacheConfig{
			MaxEntries: 4096,
			QuoteTTL:   15 * time.Second,
			BarsTTL:    10 * time.Minute,
			NewsTTL:    5 * time.Minute,
		},
		Router: RouterConfig{
			FailureThreshold: 3,
			BackoffBase:      30 * time.Second,
			BackoffCap:       15 * time.Minute,
			MaxRateLimitWait: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Type:    "localfs",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server: port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Router.FailureThreshold < 1 {
		return fmt.Errorf("router: failure_threshold must be at least 1, got %d", c.Router.FailureThreshold)
	}
	if c.Router.BackoffBase <= 0 {
		return fmt.Errorf("router: backoff_base must be positive, got %v", c.Router.BackoffBase)
	}
	if c.Router.BackoffCap < c.Router.BackoffBase {
		return fmt.Errorf("router: backoff_cap %v below backoff_base %v", c.Router.BackoffCap, c.Router.BackoffBase)
	}
	if c.Router.MaxRateLimitWait < 0 {
		return fmt.Errorf("router: max_rate_limit_wait cannot be negative, got %v", c.Router.MaxRateLimitWait)
	}

	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("cache: max_entries must be at least 1, got %d", c.Cache.MaxEntries)
	}

	for name, p := range c.Providers {
		if !p.Enabled {
			continue
		}
		if p.RequestsPerSecond <= 0 {
			return fmt.Errorf("provider %s: requests_per_second must be positive, got %f", name, p.RequestsPerSecond)
		}
		if p.RequestsPerMinute <= 0 {
			return fmt.Errorf("provider %s: requests_per_minute must be positive, got %f", name, p.RequestsPerMinute)
		}
	}

	for kind, chain := range c.Routing {
		switch core.DataKind(kind) {
		case core.KindQuote, core.KindBars, core.KindNews:
		default:
			return fmt.Errorf("routing: unknown data kind %q", kind)
		}
		if len(chain) == 0 {
			return fmt.Errorf("routing: empty provider list for %s", kind)
		}
		for _, name := range chain {
			p, ok := c.Providers[name]
			if !ok {
				return fmt.Errorf("routing: %s references unknown provider %q", kind, name)
			}
			if !p.Enabled {
				return fmt.Errorf("routing: %s references disabled provider %q", kind, name)
			}
		}
	}

	if c.Archive.Enabled {
		switch c.Archive.Type {
		case "localfs":
			if c.Archive.Path == "" {
				return fmt.Errorf("archive: path required for localfs")
			}
		case "s3":
			if c.Archive.S3.Bucket == "" {
				return fmt.Errorf("archive: s3 bucket required")
			}
		default:
			return fmt.Errorf("archive: unknown type %q", c.Archive.Type)
		}
	}

	return nil
}

// TTLFor returns the configured cache TTL for a data kind.
func (c *Config) TTLFor(kind core.DataKind) time.Duration {
	switch kind {
	case core.KindQuote:
		return c.Cache.QuoteTTL
	case core.KindBars:
		return c.Cache.BarsTTL
	case core.KindNews:
		return c.Cache.NewsTTL
	}
	return 0
}

// Policy converts the routing table into typed form.
func (c *Config) Policy() map[core.DataKind][]core.ProviderID {
	policy := make(map[core.DataKind][]core.ProviderID, len(c.Routing))
	for kind, chain := range c.Routing {
		ids := make([]core.ProviderID, 0, len(chain))
		for _, name := range chain {
			ids = append(ids, core.ProviderID(name))
		}
		policy[core.DataKind(kind)] = ids
	}
	return policy
}
