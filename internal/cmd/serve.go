package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/namelens/edgegate/internal/config"
	errwrap "github.com/namelens/edgegate/internal/errors"
	"github.com/namelens/edgegate/internal/metrics"
	"github.com/namelens/edgegate/internal/observability"
	"github.com/namelens/edgegate/internal/server"
	"github.com/namelens/edgegate/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// signalHealthChecker implements HealthChecker for signal system
type signalHealthChecker struct{}

func (s signalHealthChecker) CheckHealth(ctx context.Context) error {
	return nil // Signal handlers are registered and ready
}

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// identityHealthChecker validates app identity metadata
type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func (i identityHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case i.binaryName == "":
		return errwrap.NewConfigInvalidError("app identity missing binary name")
	case i.envPrefix == "":
		return errwrap.NewConfigInvalidError("app identity missing env prefix")
	case i.configName == "":
		return errwrap.NewConfigInvalidError("app identity missing config name")
	}
	return nil
}

// storeHealthChecker pings the shared libsql store.
type storeHealthChecker struct {
	stack *siteStack
}

func (s storeHealthChecker) CheckHealth(ctx context.Context) error {
	if s.stack == nil || s.stack.db == nil {
		return errwrap.NewInternalError("store not initialized")
	}
	if err := s.stack.db.Ping(ctx); err != nil {
		return errwrap.WrapDatabaseError(ctx, err, "store unreachable")
	}
	return nil
}

// serveOverrides turns explicitly set flags into runtime overrides.
func serveOverrides(cmd *cobra.Command) map[string]any {
	serverSection := map[string]any{}
	if cmd.Flags().Changed("host") {
		serverSection["host"] = serverHost
	}
	if cmd.Flags().Changed("port") {
		serverSection["port"] = serverPort
	}
	overrides := map[string]any{}
	if len(serverSection) > 0 {
		overrides["server"] = serverSection
	}
	if verbose {
		overrides["logging"] = map[string]any{"level": "debug"}
	}
	return overrides
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the edge router and site API with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (validated; edge tables apply on restart)

The server will cleanly shut down the HTTP server, stop the rate limit
sweeper, close the store and flush logs on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		cfg, err := loadConfig(ctx, serveOverrides(cmd))
		if err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "config load failed")
		}

		// Get app identity for telemetry namespace
		identity := GetAppIdentity()
		namespace := identity.TelemetryNamespace()

		if err := observability.InitServerLogger(identity.BinaryName, observability.ServerLogOptions{
			Level:       cfg.Logging.Level,
			Profile:     cfg.Logging.Profile,
			Namespace:   namespace,
			Environment: logEnvironment(cfg),
		}); err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "server logger initialization failed")
		}

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, namespace); err != nil {
				observability.ServerLogger.Error("Failed to initialize metrics",
					zap.Error(err))
				return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
			}
		}

		stack, err := buildSiteStack(ctx, cfg)
		if err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "site initialization failed")
		}
		defer func() {
			if err := stack.Close(); err != nil {
				observability.ServerLogger.Warn("Failed to close store", zap.Error(err))
			}
		}()

		method, path := stack.router.RateLimitedEndpoint()
		policy := stack.router.Policy()
		observability.ServerLogger.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("namespace", namespace),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Int("redirects", stack.router.Redirects().Len()),
			zap.Strings("protected_prefixes", stack.router.ProtectedPrefixes().List()),
			zap.String("rate_limit_backend", cfg.Edge.RateLimit.Backend),
			zap.String("rate_limit_endpoint", method+" "+path),
			zap.Int("rate_limit", policy.Limit),
			zap.Duration("rate_limit_window", policy.Window))

		// Initialize health manager
		handlers.InitHealthManager(versionInfo.Version)
		hm := handlers.GetHealthManager()
		hm.RegisterChecker("signal_handlers", signalHealthChecker{})
		if cfg.Metrics.Enabled {
			hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		}
		hm.RegisterChecker("app_identity", identityHealthChecker{
			binaryName: identity.BinaryName,
			envPrefix:  identity.EnvPrefix,
			configName: identity.ConfigName,
		})
		switch {
		case stack.db == nil:
		case cfg.Contact.Enabled && cfg.Contact.Store:
			hm.RegisterChecker("store", storeHealthChecker{stack: stack})
		default:
			// Only the rate limiter uses the store, and it fails open.
			hm.RegisterDegradableChecker("store", storeHealthChecker{stack: stack})
		}

		srv, err := server.New(cfg.Server.Host, cfg.Server.Port, stack.deps)
		if err != nil {
			return errwrap.WrapInternal(ctx, err, "server initialization failed")
		}

		handlers.SetAppIdentity(identity)
		handlers.SetEdgeInfo(handlers.EdgeInfo{
			Redirects:         stack.router.Redirects().Len(),
			ProtectedPrefixes: len(stack.router.ProtectedPrefixes().List()),
			RateLimitBackend:  cfg.Edge.RateLimit.Backend,
			RateLimitRule:     fmt.Sprintf("%s %s %d/%s", method, path, policy.Limit, policy.Window),
		})

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		// Register graceful shutdown handlers (LIFO order - last registered, first executed)
		// Handler 1: Flush logger (executed last)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Flushing logger...")
			if err := observability.ServerLogger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				observability.ServerLogger.Warn("Logger sync returned error (may be benign)",
					zap.Error(err))
			}
			return nil
		})

		// Handler 2: Shutdown HTTP server and background work (executed first)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Shutting down HTTP server...")
			defer cancel()

			shutdownCtx, stop := context.WithTimeout(ctx, shutdownTimeout)
			defer stop()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			observability.ServerLogger.Info("HTTP server stopped gracefully")
			return nil
		})

		// Register config reload handler (SIGHUP)
		signals.OnReload(func(ctx context.Context) error {
			observability.ServerLogger.Info("Received SIGHUP: validating configuration")

			next, err := loadConfig(ctx, serveOverrides(cmd))
			if err != nil {
				observability.ServerLogger.Error("Config reload failed", zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}
			if _, err := edgeOptions(next); err != nil {
				observability.ServerLogger.Error("Routes reload failed", zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "routes reload failed")
			}

			observability.ServerLogger.Info("Configuration is valid; restart to apply edge changes",
				zap.String("config_file", configFileForLog()))
			return nil
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			observability.ServerLogger.Warn("Failed to enable double-tap force quit",
				zap.Error(err))
		}

		metrics.SetServerStartTime(time.Now())

		g, gctx := errgroup.WithContext(runCtx)

		g.Go(func() error {
			defer cancel()
			return srv.Start()
		})

		g.Go(func() error {
			return stack.sweeper.Run(gctx)
		})

		g.Go(func() error {
			if err := signals.Listen(gctx); err != nil && !errors.Is(err, context.Canceled) {
				observability.ServerLogger.Error("Signal handler error", zap.Error(err))
				return err
			}
			return nil
		})

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return errwrap.WrapInternal(ctx, err, "server error")
		}
		return nil
	},
}

func configFileForLog() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

func logEnvironment(cfg *config.Config) string {
	if cfg.Debug.Enabled {
		return "development"
	}
	return "production"
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host (overrides server.host)")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port (overrides server.port)")
}
