// Package config provides centralized configuration management for edgegate.
// Values are layered with spf13/viper:
// Layer 1: built-in defaults (SetDefaults)
// Layer 2: config file (--config, or config.yaml in the XDG config dir)
// Layer 3: EDGEGATE_* environment variables and runtime overrides
package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/namelens/edgegate/internal/appid"
)

const (
	defaultAppName   = "edgegate"
	defaultEnvPrefix = "EDGEGATE_"
)

var (
	// appConfig holds the current application configuration
	appConfig   *Config
	configMu    sync.RWMutex
	appIdentity *appidentity.Identity
)

// SetDefaults registers every known key on v. Keys without a default are
// invisible to viper's environment lookup, so everything is listed here.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Store defaults (path is resolved after decode)
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	// Edge defaults
	v.SetDefault("edge.debug_headers", false)
	v.SetDefault("edge.session_cookie", "session")
	v.SetDefault("edge.login_path", "/login")
	v.SetDefault("edge.internal_prefix", "/_next")
	v.SetDefault("edge.api_prefix", "/api")
	v.SetDefault("edge.routes_file", "")
	v.SetDefault("edge.rate_limit.backend", BackendMemory)
	v.SetDefault("edge.rate_limit.endpoint", "/api/contact")
	v.SetDefault("edge.rate_limit.method", "POST")
	v.SetDefault("edge.rate_limit.limit", 10)
	v.SetDefault("edge.rate_limit.window", "1h")
	v.SetDefault("edge.rate_limit.strict", false)
	v.SetDefault("edge.rate_limit.sweep_interval", "10m")

	// Site collaborators
	v.SetDefault("contact.enabled", true)
	v.SetDefault("contact.store", false)
	v.SetDefault("analytics.enabled", true)
	v.SetDefault("analytics.events_per_second", 50.0)
	v.SetDefault("analytics.burst", 100)
	v.SetDefault("site.root", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "STRUCTURED")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)

	// Debug defaults
	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.pprof_enabled", false)
}

// envAliases are short variable names kept alongside the derived
// EDGEGATE_SECTION_KEY form.
func envAliases() map[string]string {
	return map[string]string{
		"server.host":        "HOST",
		"server.port":        "PORT",
		"logging.level":      "LOG_LEVEL",
		"logging.profile":    "LOG_PROFILE",
		"store.path":         "DB_PATH",
		"store.url":          "DB_URL",
		"store.auth_token":   "DB_AUTH_TOKEN",
		"metrics.port":       "METRICS_PORT",
		"edge.debug_headers": "DEBUG_HEADERS",
	}
}

// Load loads configuration from the default config file locations.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	return LoadFile(ctx, "", runtimeOverrides...)
}

// LoadFile loads configuration using path as the config file. An empty path
// searches the XDG config directories and ./config; a missing file there is
// not an error.
func LoadFile(ctx context.Context, path string, runtimeOverrides ...map[string]any) (*Config, error) {
	if appIdentity == nil {
		if identity, err := appid.Get(ctx); err == nil {
			appIdentity = identity
		}
	}

	v := viper.New()
	SetDefaults(v)

	prefix := envPrefix()
	v.SetEnvPrefix(strings.TrimSuffix(prefix, "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases() {
		derived := prefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, derived, prefix+alias); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	v.SetConfigType("yaml")
	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		for _, dir := range configDirs() {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Runtime overrides win over every other layer
	for _, overrides := range runtimeOverrides {
		for key, value := range flatten("", overrides) {
			v.Set(key, value)
		}
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	cfg.Edge.RateLimit.Backend = strings.ToLower(strings.TrimSpace(cfg.Edge.RateLimit.Backend))
	cfg.Edge.RateLimit.Method = strings.ToUpper(strings.TrimSpace(cfg.Edge.RateLimit.Method))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Store the loaded config
	setConfig(cfg)

	return cfg, nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

func flatten(prefix string, in map[string]any) map[string]any {
	out := map[string]any{}
	for key, value := range in {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			for k, v := range flatten(full, nested) {
				out[k] = v
			}
			continue
		}
		out[full] = value
	}
	return out
}

func envPrefix() string {
	prefix := defaultEnvPrefix
	if appIdentity != nil && strings.TrimSpace(appIdentity.EnvPrefix) != "" {
		prefix = appIdentity.EnvPrefix
	}
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return prefix
}

// configDirs returns the directories searched for config.yaml
func configDirs() []string {
	configName, binaryName := appNamesForPaths()
	dirs := []string{}
	if dir := gfconfig.GetAppConfigDir(configName); strings.TrimSpace(dir) != "" {
		dirs = append(dirs, dir)
	}
	if binaryName != configName {
		if dir := gfconfig.GetAppConfigDir(binaryName); strings.TrimSpace(dir) != "" {
			dirs = append(dirs, dir)
		}
	}
	return append(dirs, "./config")
}

// appNamesForPaths returns the config name and binary name from app identity,
// falling back to "edgegate" if not set.
func appNamesForPaths() (configName string, binaryName string) {
	configName = defaultAppName
	binaryName = defaultAppName
	if appIdentity == nil {
		return configName, binaryName
	}

	if strings.TrimSpace(appIdentity.ConfigName) != "" {
		configName = appIdentity.ConfigName
	}
	if strings.TrimSpace(appIdentity.BinaryName) != "" {
		binaryName = appIdentity.BinaryName
	}
	return configName, binaryName
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configName, _ := appNamesForPaths()
	configDir := gfconfig.GetAppConfigDir(configName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	configName, _ := appNamesForPaths()
	return gfconfig.GetAppDataDir(configName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	configName, binaryName := appNamesForPaths()
	dataDir := gfconfig.GetAppDataDir(configName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + binaryName + ".db"
	}
	return filepath.Join(dataDir, binaryName+".db")
}
