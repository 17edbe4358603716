// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	// Addr is the public listen address of the API.
	Addr string `env:"ADDR" envDefault:":8080"`

	// AdminAddr serves /healthz and /metrics when set. Kept off the
	// public listener so the public surface stays exactly the documented
	// route set.
	AdminAddr string `env:"ADMIN_ADDR"`

	// RedisAddr enables the shared Redis cache and the background
	// refresh queue. When empty the API falls back to a local store and
	// in-process refreshes.
	RedisAddr string `env:"REDIS_ADDR"`

	Upstream UpstreamConfig
	Cache    CacheConfig
}

// UpstreamConfig identifies the GitHub repository the API republishes.
type UpstreamConfig struct {
	Repo   string `env:"DATA_REPO" envDefault:"raidtools/gamedata"`
	Branch string `env:"DATA_BRANCH" envDefault:"main"`

	// ContentURL and ListingURL override the derived GitHub URLs, which
	// lets tests and mirrors point the proxy anywhere.
	ContentURL string `env:"DATA_CONTENT_URL"`
	ListingURL string `env:"DATA_LISTING_URL"`

	// Token raises the GitHub API rate limit when present.
	Token string `env:"GITHUB_TOKEN"`
}

// CacheConfig controls where cached responses live and how long they stay
// servable.
type CacheConfig struct {
	// Dir enables the filesystem store when Redis is not configured.
	Dir string `env:"CACHE_DIR"`

	// FreshTTL is the window during which a cached response is served
	// without revalidation (the max-age directive).
	FreshTTL time.Duration `env:"CACHE_FRESH_TTL" envDefault:"5m"`

	// StaleTTL is the stale-while-revalidate window: stale entries are
	// still served for this long while a background refresh runs.
	StaleTTL time.Duration `env:"CACHE_STALE_TTL" envDefault:"24h"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the configuration is internally consistent
func (c *Config) Validate() error {
	if owner, name, ok := strings.Cut(c.Upstream.Repo, "/"); !ok || owner == "" || name == "" {
		return fmt.Errorf("DATA_REPO must be owner/name, got %q", c.Upstream.Repo)
	}
	if c.Cache.FreshTTL <= 0 {
		return fmt.Errorf("CACHE_FRESH_TTL must be positive, got %s", c.Cache.FreshTTL)
	}
	if c.Cache.StaleTTL < 0 {
		return fmt.Errorf("CACHE_STALE_TTL must not be negative, got %s", c.Cache.StaleTTL)
	}
	return nil
}

// HasRedis returns true if a shared Redis cache is configured
func (c *Config) HasRedis() bool {
	return c.RedisAddr != ""
}

// ContentBase returns the base URL for raw file fetches
func (u UpstreamConfig) ContentBase() string {
	if u.ContentURL != "" {
		return strings.TrimRight(u.ContentURL, "/")
	}
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s", u.Repo, u.Branch)
}

// ListingBase returns the base URL for directory listings
func (u UpstreamConfig) ListingBase() string {
	if u.ListingURL != "" {
		return strings.TrimRight(u.ListingURL, "/")
	}
	return fmt.Sprintf("https://api.github.com/repos/%s/contents", u.Repo)
}

// SourceURL returns the browsable home of the dataset, linked from the
// API info payload.
func (u UpstreamConfig) SourceURL() string {
	return "https://github.com/" + u.Repo
}

// HardTTL is the total lifetime of a stored entry: the freshness window
// plus the stale-while-revalidate window. Past it the store may drop the
// entry entirely.
func (c CacheConfig) HardTTL() time.Duration {
	return c.FreshTTL + c.StaleTTL
}
