package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namelens/edgegate/internal/config"
	"github.com/namelens/edgegate/internal/core/edge"
	"github.com/namelens/edgegate/internal/core/store"
	errwrap "github.com/namelens/edgegate/internal/errors"
	"github.com/namelens/edgegate/internal/observability"
)

// outcome grades one doctor diagnostic.
type outcome int

const (
	outcomePass outcome = iota
	outcomeWarn
	outcomeFail
)

func (o outcome) marker() string {
	switch o {
	case outcomePass:
		return "✅"
	case outcomeWarn:
		return "⚠️ "
	default:
		return "❌"
	}
}

type finding struct {
	outcome outcome
	detail  string
	fields  []zap.Field
}

func pass(detail string, fields ...zap.Field) finding {
	return finding{outcome: outcomePass, detail: detail, fields: fields}
}

func warn(detail string, fields ...zap.Field) finding {
	return finding{outcome: outcomeWarn, detail: detail, fields: fields}
}

func fail(detail string, err error) finding {
	f := finding{outcome: outcomeFail, detail: detail}
	if err != nil {
		f.fields = []zap.Field{zap.Error(err)}
	}
	return f
}

type diagnostic struct {
	name string
	run  func(ctx context.Context) finding
}

// doctorEnv is loaded once and shared by the config-dependent diagnostics.
type doctorEnv struct {
	cfg    *config.Config
	cfgErr error
}

var errConfigNotLoaded = errors.New("config not loaded")

func (e *doctorEnv) needsConfig(run func(ctx context.Context, cfg *config.Config) finding) func(context.Context) finding {
	return func(ctx context.Context) finding {
		if e.cfgErr != nil {
			return warn("skipped (config not loaded)")
		}
		if e.cfg == nil {
			return fail("skipped", errConfigNotLoaded)
		}
		return run(ctx, e.cfg)
	}
}

func diagnostics(env *doctorEnv) []diagnostic {
	return []diagnostic{
		{"Go version", func(context.Context) finding {
			v := runtime.Version()
			if v >= "go1.23" {
				return pass(v, zap.String("go_version", v))
			}
			return warn(v+" (recommended: go1.23+)", zap.String("go_version", v))
		}},
		{"Crucible access", func(context.Context) finding {
			if v := crucible.GetVersion().Crucible; v != "" {
				return pass("v"+v, zap.String("crucible_version", v))
			}
			return fail("cannot access Crucible", errwrap.NewExternalServiceError("Crucible service unavailable"))
		}},
		{"Gofulmen access", func(context.Context) finding {
			if v := crucible.GetVersion().Gofulmen; v != "" {
				return pass("v"+v, zap.String("gofulmen_version", v))
			}
			return fail("cannot access Gofulmen", nil)
		}},
		{"config directory", func(context.Context) finding {
			path := config.DefaultConfigPath()
			if path == "" {
				return fail("cannot resolve config directory", errwrap.NewInternalError("config directory not resolved"))
			}
			return pass(filepath.Dir(path), zap.String("config_dir", filepath.Dir(path)))
		}},
		{"configuration", func(context.Context) finding {
			if env.cfgErr != nil {
				return fail("invalid", env.cfgErr)
			}
			return pass("valid")
		}},
		{"edge routes", env.needsConfig(func(_ context.Context, cfg *config.Config) finding {
			rt, err := checkRoutes(cfg)
			if err != nil {
				return fail(err.Error(), err)
			}
			return pass(fmt.Sprintf("%d redirects, %d protected prefixes", rt.Redirects().Len(), len(rt.ProtectedPrefixes().List())))
		})},
		{"database", env.needsConfig(checkDatabase)},
		{"site root", env.needsConfig(func(_ context.Context, cfg *config.Config) finding {
			root := strings.TrimSpace(cfg.Site.Root)
			if root == "" {
				return pass("not configured (API and edge only)")
			}
			if info, err := os.Stat(root); err != nil || !info.IsDir() {
				return warn(root + " is not a directory")
			}
			if !fileExists(filepath.Join(root, "index.html")) {
				return warn(root + " has no index.html")
			}
			return pass(root)
		})},
	}
}

func checkDatabase(ctx context.Context, cfg *config.Config) finding {
	if !cfg.NeedsStore() {
		return pass("not required (memory rate limit backend, contacts logged)")
	}
	db, err := openStoreWith(ctx, cfg.Store)
	if err != nil {
		return fail("cannot open store", err)
	}
	defer db.Close() //nolint:errcheck

	windows, err := db.CountRateLimits(ctx, store.RateLimitQuery{All: true})
	if err != nil {
		return fail("cannot read rate limits", err)
	}
	version, err := db.SchemaVersion(ctx)
	if err != nil {
		return fail("cannot read schema version", err)
	}
	return pass(fmt.Sprintf("%s (schema v%d, %d rate limit windows)", describeStore(cfg.Store), version, windows),
		zap.Int("schema_version", version),
		zap.Int("rate_limit_windows", windows))
}

// runDiagnostics logs each finding and counts the ones that did not pass.
func runDiagnostics(ctx context.Context, log *logging.Logger, checks []diagnostic) (warnings, failures int) {
	for i, d := range checks {
		f := d.run(ctx)
		line := fmt.Sprintf("[%d/%d] Checking %s... %s %s", i+1, len(checks), d.name, f.outcome.marker(), f.detail)
		switch f.outcome {
		case outcomePass:
			log.Info(line, f.fields...)
		case outcomeWarn:
			log.Warn(line, f.fields...)
			warnings++
		default:
			log.Error(line, f.fields...)
			failures++
		}
	}
	return warnings, failures
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long:  "Run diagnostic checks on the installation and configuration and suggest fixes for common issues.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		log := observability.CLILogger
		appName := "edgegate"
		if identity := GetAppIdentity(); identity != nil && identity.BinaryName != "" {
			appName = identity.BinaryName
		}

		log.Info("=== " + appName + " doctor ===")
		log.Info("")

		env := &doctorEnv{}
		env.cfg, env.cfgErr = loadConfig(ctx)
		warnings, failures := runDiagnostics(ctx, log, diagnostics(env))

		log.Info("")
		if warnings+failures == 0 {
			log.Info(fmt.Sprintf("✅ All checks passed! Your %s installation is healthy.", appName))
		} else {
			log.Warn("⚠️  Some checks failed. Review the output above for details.")
		}
		log.Info("=== End Diagnostics ===")
	},
}

var (
	doctorInitForce   bool
	doctorInitBackend string
	doctorResetConfig bool
	doctorResetData   bool
	doctorResetAll    bool
)

var doctorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}

		if _, err := os.Stat(configPath); err == nil && !doctorInitForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
		}

		backend := strings.ToLower(strings.TrimSpace(doctorInitBackend))
		if backend != config.BackendMemory && backend != config.BackendStore {
			return fmt.Errorf("--backend must be %q or %q", config.BackendMemory, config.BackendStore)
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		if err := os.WriteFile(configPath, []byte(buildInitConfig(backend)), 0644); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		observability.CLILogger.Info("Config initialized", zap.String("path", configPath))
		return nil
	},
}

var doctorConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration status and paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := configFileForLog()
		dataDir := config.DefaultDataDir()

		observability.CLILogger.Info("Configuration:")
		observability.CLILogger.Info(fmt.Sprintf("  Config file:    %s (%s)", configPath, existenceStatus(fileExists(configPath))))
		if dataDir != "" {
			observability.CLILogger.Info(fmt.Sprintf("  Data directory: %s (%s)", dataDir, existenceStatus(fileExists(dataDir))))
		} else {
			observability.CLILogger.Info("  Data directory: (not resolved)")
		}

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			observability.CLILogger.Warn("Config load failed", zap.Error(err))
			return nil
		}

		observability.CLILogger.Info(fmt.Sprintf("  Database:       %s", describeStore(cfg.Store)))
		observability.CLILogger.Info("")
		observability.CLILogger.Info("Environment:")
		prefix := envPrefix()
		for _, name := range []string{"ADMIN_TOKEN", "DB_URL", "DB_AUTH_TOKEN"} {
			observability.CLILogger.Info(fmt.Sprintf("  %s%s: %s", prefix, name, envStatus(prefix+name)))
		}

		rl := cfg.Edge.RateLimit
		observability.CLILogger.Info("")
		observability.CLILogger.Info("Effective Settings:")
		observability.CLILogger.Info(fmt.Sprintf("  edge.rate_limit: %s %s, %d per %s (backend=%s, strict=%t)", rl.Method, rl.Endpoint, rl.Limit, rl.Window, rl.Backend, rl.Strict))
		observability.CLILogger.Info(fmt.Sprintf("  edge.routes_file: %s", valueOrUnset(cfg.Edge.RoutesFile)))
		observability.CLILogger.Info(fmt.Sprintf("  contact.enabled: %t (store=%t)", cfg.Contact.Enabled, cfg.Contact.Store))
		observability.CLILogger.Info(fmt.Sprintf("  analytics.enabled: %t", cfg.Analytics.Enabled))
		observability.CLILogger.Info(fmt.Sprintf("  site.root: %s", valueOrUnset(cfg.Site.Root)))
		return nil
	},
}

var doctorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset user configuration and/or data",
	RunE: func(cmd *cobra.Command, args []string) error {
		if doctorResetAll {
			doctorResetConfig = true
			doctorResetData = true
		}

		if !doctorResetConfig && !doctorResetData {
			return fmt.Errorf("specify --config, --data, or --all")
		}

		if doctorResetData {
			cfg, err := loadConfig(cmd.Context())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Store.URL != "" {
				return fmt.Errorf("remote store configured; database reset is not supported")
			}

			absPath, _ := filepath.Abs(cfg.Store.Path)
			if err := os.Remove(absPath); err == nil {
				observability.CLILogger.Info("Database removed", zap.String("path", absPath))
			} else if os.IsNotExist(err) {
				observability.CLILogger.Info("Database already removed", zap.String("path", absPath))
			} else {
				return fmt.Errorf("remove database: %w", err)
			}
		}

		if doctorResetConfig {
			configPath := config.DefaultConfigPath()
			if configPath == "" {
				observability.CLILogger.Warn("Config path not resolved; skipping config reset")
			} else if err := os.Remove(configPath); err == nil {
				observability.CLILogger.Info("Config removed", zap.String("path", configPath))
			} else if os.IsNotExist(err) {
				observability.CLILogger.Info("Config already removed", zap.String("path", configPath))
			} else {
				return fmt.Errorf("remove config file: %w", err)
			}
		}

		return nil
	},
}

var doctorValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the current config file and routes file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := configFileForLog()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", configPath)
		}

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}
		if _, err := checkRoutes(cfg); err != nil {
			return err
		}

		observability.CLILogger.Info("Config is valid", zap.String("path", configPath))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.AddCommand(doctorInitCmd)
	doctorCmd.AddCommand(doctorConfigCmd)
	doctorCmd.AddCommand(doctorResetCmd)
	doctorCmd.AddCommand(doctorValidateCmd)

	doctorInitCmd.Flags().BoolVar(&doctorInitForce, "force", false, "overwrite existing config file")
	doctorInitCmd.Flags().StringVar(&doctorInitBackend, "backend", config.BackendMemory, "rate limit backend: memory|store")

	doctorResetCmd.Flags().BoolVar(&doctorResetConfig, "config", false, "remove user config file")
	doctorResetCmd.Flags().BoolVar(&doctorResetData, "data", false, "remove local database")
	doctorResetCmd.Flags().BoolVar(&doctorResetAll, "all", false, "remove config and data")
}

// checkRoutes builds a router the way serve does, without a live limiter.
func checkRoutes(cfg *config.Config) (*edge.Router, error) {
	opts, err := edgeOptions(cfg)
	if err != nil {
		return nil, err
	}
	return edge.New(opts)
}

func describeStore(cfg config.StoreConfig) string {
	if strings.TrimSpace(cfg.URL) != "" {
		return cfg.URL + " (remote)"
	}
	absPath, _ := filepath.Abs(cfg.Path)
	if info, err := os.Stat(absPath); err == nil {
		return fmt.Sprintf("%s (%s)", absPath, formatFileSize(info.Size()))
	}
	return absPath + " (not created yet)"
}

// formatFileSize returns a human-readable file size
func formatFileSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}

func buildInitConfig(backend string) string {
	lines := []string{
		"# edgegate config - created by 'edgegate doctor init'",
		"server:",
		"  host: localhost",
		"  port: 8080",
		"edge:",
		"  session_cookie: session",
		"  login_path: /login",
		"  # routes_file: /etc/edgegate/routes.yaml",
		"  rate_limit:",
		"    backend: " + backend,
		"    endpoint: /api/contact",
		"    method: POST",
		"    limit: 10",
		"    window: 1h",
		"contact:",
		"  enabled: true",
	}
	if backend == config.BackendStore {
		lines = append(lines, "  store: true")
	} else {
		lines = append(lines, "  store: false")
	}
	lines = append(lines,
		"analytics:",
		"  enabled: true",
		"# site:",
		"#   root: ./out",
	)
	return strings.Join(lines, "\n") + "\n"
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func existenceStatus(exists bool) string {
	if exists {
		return "exists"
	}
	return "missing"
}

func envStatus(name string) string {
	if strings.TrimSpace(os.Getenv(name)) != "" {
		return "(set)"
	}
	return "(not set)"
}

func valueOrUnset(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(unset)"
	}
	return value
}
