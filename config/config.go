package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
	Line      LineConfig
	Query     QueryConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 5000
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls how crawl sessions are started.
type BrowserConfig struct {
	// Engine selects the session provider: "rod" (Chromium), "http"
	// (static fetch with a Chrome TLS fingerprint) or "auto" (http first,
	// Chromium when the table is not in the static page).
	Engine string // default: "rod"

	// EscalationTTL is how long "auto" keeps using Chromium after the
	// static fetch fell short.
	EscalationTTL time.Duration // default: 24h

	// Headless is the default for callers that do not choose.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// CDPURL connects to an already running browser instead of launching one.
	CDPURL string

	// Proxy is passed to Chromium and to the static fetcher.
	Proxy string
}

// ScraperConfig controls the crawl loop.
type ScraperConfig struct {
	// MaxAttempts is the per-page attempt ceiling.
	MaxAttempts int // default: 3

	// NavigationTimeout bounds one page load.
	NavigationTimeout time.Duration // default: 30s

	// TableTimeout bounds the wait for the results table.
	TableTimeout time.Duration // default: 10s

	// BackoffMin and BackoffMax bound the random pause between attempts.
	BackoffMin time.Duration // default: 1s
	BackoffMax time.Duration // default: 3s

	// PageDelay is the fixed pause between pages.
	PageDelay time.Duration // default: 500ms

	// MaxConcurrentCrawls bounds crawls running at once across the process.
	MaxConcurrentCrawls int // default: 2

	// BlockedResourceTypes lists resource types the browser does not load.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 3
}

// CacheConfig controls the query result cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached results.
	MaxEntries int // default: 200

	// TTL is how long a result is served from cache. 0 disables caching.
	TTL time.Duration // default: 5m
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// LineConfig holds the LINE Messaging API channel credentials.
type LineConfig struct {
	ChannelSecret      string
	ChannelAccessToken string
	APIBase            string // default: "https://api.line.me"
}

// Enabled reports whether both LINE credentials are set.
func (c LineConfig) Enabled() bool {
	return c.ChannelSecret != "" && c.ChannelAccessToken != ""
}

// QueryConfig locates the quick-query preset file.
type QueryConfig struct {
	File string // default: "config.json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("WARRANT_HOST", "0.0.0.0"),
			Port: envIntOr("WARRANT_PORT", 5000),
			Mode: envOr("WARRANT_MODE", "release"),
		},
		Browser: BrowserConfig{
			Engine:        envOr("WARRANT_ENGINE", "rod"),
			EscalationTTL: envDurationOr("WARRANT_ESCALATION_TTL", 24*time.Hour),
			Headless:      envBoolOr("WARRANT_HEADLESS", true),
			NoSandbox:     envBoolOr("WARRANT_NO_SANDBOX", false),
			BrowserBin:    os.Getenv("WARRANT_BROWSER_BIN"),
			CDPURL:        os.Getenv("WARRANT_CDP_URL"),
			Proxy:         os.Getenv("WARRANT_PROXY"),
		},
		Scraper: ScraperConfig{
			MaxAttempts:         envIntOr("WARRANT_MAX_ATTEMPTS", 3),
			NavigationTimeout:   envDurationOr("WARRANT_NAV_TIMEOUT", 30*time.Second),
			TableTimeout:        envDurationOr("WARRANT_TABLE_TIMEOUT", 10*time.Second),
			BackoffMin:          envDurationOr("WARRANT_BACKOFF_MIN", time.Second),
			BackoffMax:          envDurationOr("WARRANT_BACKOFF_MAX", 3*time.Second),
			PageDelay:           envDurationOr("WARRANT_PAGE_DELAY", 500*time.Millisecond),
			MaxConcurrentCrawls: envIntOr("WARRANT_MAX_CONCURRENT_CRAWLS", 2),
			BlockedResourceTypes: envSliceOr("WARRANT_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("WARRANT_AUTH_ENABLED", true),
			APIKeys: envSliceOr("WARRANT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("WARRANT_RATE_RPS", 1.0),
			Burst:             envIntOr("WARRANT_RATE_BURST", 3),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("WARRANT_CACHE_MAX_ENTRIES", 200),
			TTL:        envDurationOr("WARRANT_CACHE_TTL", 5*time.Minute),
		},
		Log: LogConfig{
			Level:  envOr("WARRANT_LOG_LEVEL", "info"),
			Format: envOr("WARRANT_LOG_FORMAT", "json"),
		},
		Line: LineConfig{
			ChannelSecret:      os.Getenv("LINE_CHANNEL_SECRET"),
			ChannelAccessToken: os.Getenv("LINE_CHANNEL_ACCESS_TOKEN"),
			APIBase:            envOr("LINE_API_BASE", "https://api.line.me"),
		},
		Query: QueryConfig{
			File: envOr("WARRANT_QUERY_FILE", "config.json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
