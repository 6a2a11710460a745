package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Rate limiter backends.
const (
	BackendMemory = "memory"
	BackendStore  = "store"
)

// Config represents the complete application configuration. Values are
// layered as defaults, then the config file, then EDGEGATE_* environment
// variables, then runtime overrides.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Edge      EdgeConfig      `mapstructure:"edge"`
	Contact   ContactConfig   `mapstructure:"contact"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Site      SiteConfig      `mapstructure:"site"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
	Debug     DebugConfig     `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// EdgeConfig configures the request-routing middleware.
type EdgeConfig struct {
	// DebugHeaders adds x-middleware-timestamp to passed-through responses.
	DebugHeaders   bool   `mapstructure:"debug_headers"`
	SessionCookie  string `mapstructure:"session_cookie"`
	LoginPath      string `mapstructure:"login_path"`
	InternalPrefix string `mapstructure:"internal_prefix"`
	APIPrefix      string `mapstructure:"api_prefix"`

	// RoutesFile optionally adds redirects and protected prefixes on top of
	// the built-in tables.
	RoutesFile string `mapstructure:"routes_file"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig configures the contact endpoint limiter.
type RateLimitConfig struct {
	// Backend is "memory" (per process) or "store" (shared libsql table).
	Backend  string        `mapstructure:"backend"`
	Endpoint string        `mapstructure:"endpoint"`
	Method   string        `mapstructure:"method"`
	Limit    int           `mapstructure:"limit"`
	Window   time.Duration `mapstructure:"window"`
	Strict   bool          `mapstructure:"strict"`

	// SweepInterval controls how often expired windows are evicted.
	// Zero disables sweeping.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// ContactConfig configures POST /api/contact.
type ContactConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Store persists submissions in libsql instead of logging them.
	Store bool `mapstructure:"store"`
}

// AnalyticsConfig configures POST /api/analytics.
type AnalyticsConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	EventsPerSecond float64 `mapstructure:"events_per_second"`
	Burst           int     `mapstructure:"burst"`
}

// SiteConfig points at pre-rendered pages.
type SiteConfig struct {
	Root string `mapstructure:"root"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles per Fulmen Forge Workhorse Standard:
// - SIMPLE: Console output only, minimal configuration (CLI tools)
// - STRUCTURED: Structured sinks, correlation IDs (API services)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled controls whether pprof endpoints are exposed
	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	rl := c.Edge.RateLimit
	switch rl.Backend {
	case BackendMemory, BackendStore:
	default:
		return fmt.Errorf("edge.rate_limit.backend must be %q or %q, got %q", BackendMemory, BackendStore, rl.Backend)
	}
	if rl.Limit <= 0 {
		return fmt.Errorf("edge.rate_limit.limit must be positive, got %d", rl.Limit)
	}
	if rl.Window <= 0 {
		return fmt.Errorf("edge.rate_limit.window must be positive, got %s", rl.Window)
	}
	if rl.SweepInterval < 0 {
		return fmt.Errorf("edge.rate_limit.sweep_interval must not be negative")
	}
	if !strings.HasPrefix(rl.Endpoint, "/") {
		return fmt.Errorf("edge.rate_limit.endpoint must start with '/': %q", rl.Endpoint)
	}
	switch strings.ToUpper(rl.Method) {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return fmt.Errorf("edge.rate_limit.method not supported: %q", rl.Method)
	}

	if c.Analytics.EventsPerSecond < 0 {
		return fmt.Errorf("analytics.events_per_second must not be negative")
	}
	return nil
}

// NeedsStore reports whether any component persists to libsql.
func (c *Config) NeedsStore() bool {
	return c.Edge.RateLimit.Backend == BackendStore || (c.Contact.Enabled && c.Contact.Store)
}
