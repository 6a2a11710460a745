package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/namelens/edgegate/internal/config"
	"github.com/namelens/edgegate/internal/core/analytics"
	"github.com/namelens/edgegate/internal/core/contact"
	"github.com/namelens/edgegate/internal/core/edge"
	"github.com/namelens/edgegate/internal/core/ratelimit"
	"github.com/namelens/edgegate/internal/core/status"
	"github.com/namelens/edgegate/internal/core/store"
	"github.com/namelens/edgegate/internal/metrics"
	"github.com/namelens/edgegate/internal/observability"
	"github.com/namelens/edgegate/internal/server"
)

// siteStack is everything serve wires together from config.
type siteStack struct {
	router  *edge.Router
	sweeper *ratelimit.Sweeper
	deps    server.Deps
	db      *store.Store
}

func (s *siteStack) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// edgeOptions maps config onto router options, layering the routes file on
// top of the built-in tables.
func edgeOptions(cfg *config.Config) (edge.Options, error) {
	opts := edge.DefaultOptions()
	opts.SessionCookie = cfg.Edge.SessionCookie
	opts.LoginPath = cfg.Edge.LoginPath
	opts.InternalPrefix = cfg.Edge.InternalPrefix
	opts.APIPrefix = cfg.Edge.APIPrefix
	opts.RateLimitPath = cfg.Edge.RateLimit.Endpoint
	opts.RateLimitMethod = cfg.Edge.RateLimit.Method
	opts.RateLimitPolicy = ratelimit.Policy{
		Limit:  cfg.Edge.RateLimit.Limit,
		Window: cfg.Edge.RateLimit.Window,
		Strict: cfg.Edge.RateLimit.Strict,
	}
	opts.DebugHeaders = cfg.Edge.DebugHeaders || cfg.Debug.Enabled

	if path := strings.TrimSpace(cfg.Edge.RoutesFile); path != "" {
		rf, err := edge.LoadRoutesFile(path)
		if err != nil {
			return edge.Options{}, err
		}
		if err := rf.Apply(&opts); err != nil {
			return edge.Options{}, fmt.Errorf("routes file %s: %w", path, err)
		}
	}
	return opts, nil
}

// openStoreWith opens and migrates the libsql store.
func openStoreWith(ctx context.Context, cfg config.StoreConfig) (*store.Store, error) {
	db, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func buildSiteStack(ctx context.Context, cfg *config.Config) (*siteStack, error) {
	stack := &siteStack{}

	if cfg.NeedsStore() {
		db, err := openStoreWith(ctx, cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		stack.db = db
	}

	opts, err := edgeOptions(cfg)
	if err != nil {
		_ = stack.Close()
		return nil, err
	}

	var pruner ratelimit.Pruner
	switch cfg.Edge.RateLimit.Backend {
	case config.BackendStore:
		limiter := &ratelimit.StoreLimiter{Store: stack.db}
		opts.Limiter, pruner = limiter, limiter
	default:
		limiter := ratelimit.NewMemory()
		opts.Limiter, pruner = limiter, limiter
	}

	router, err := edge.New(opts)
	if err != nil {
		_ = stack.Close()
		return nil, fmt.Errorf("build edge router: %w", err)
	}
	stack.router = router

	stack.sweeper = &ratelimit.Sweeper{
		Target:   pruner,
		Interval: cfg.Edge.RateLimit.SweepInterval,
		Window:   router.Policy().Window,
		OnSweep:  logSweep,
	}

	stack.deps = server.Deps{
		Edge:     router,
		Status:   status.NewGenerator(nil, nil),
		SiteRoot: strings.TrimSpace(cfg.Site.Root),
		Timeouts: server.Timeouts{
			Read:  cfg.Server.ReadTimeout,
			Write: cfg.Server.WriteTimeout,
			Idle:  cfg.Server.IdleTimeout,
		},
		AdminToken: adminToken(),
		Pprof:      cfg.Debug.PprofEnabled,
	}
	if cfg.Contact.Enabled {
		if cfg.Contact.Store && stack.db != nil {
			stack.deps.Contact = stack.db
		} else {
			stack.deps.Contact = contact.LogSink{}
		}
	}
	if cfg.Analytics.Enabled {
		stack.deps.Analytics = analytics.NewThrottled(analytics.LogSink{}, cfg.Analytics.EventsPerSecond, cfg.Analytics.Burst)
	}

	return stack, nil
}

// adminToken reads <PREFIX>ADMIN_TOKEN, honouring the app identity's prefix.
func adminToken() string {
	return strings.TrimSpace(os.Getenv(envPrefix() + "ADMIN_TOKEN"))
}

func logSweep(removed int, err error) {
	metrics.RecordRateLimitSwept(removed)

	logger := observability.ServerLogger
	if logger == nil {
		return
	}
	if err != nil {
		logger.Warn("Rate limit sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		logger.Debug("Rate limit sweep", zap.Int("removed", removed))
	}
}
