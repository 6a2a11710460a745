package server

import (
	"net/http"

	"github.com/fulmenhq/gofulmen/signals"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/namelens/edgegate/internal/observability"
	"github.com/namelens/edgegate/internal/server/handlers"
)

// AdminSignalPath accepts signal requests when an admin token is configured.
const AdminSignalPath = "/api/admin/signal"

const (
	adminRatePerMinute = 10
	adminRateBurst     = 5
)

func (s *Server) registerRoutes() {
	r := s.router

	r.Get("/health", handlers.HealthHandler)
	r.Get("/health/live", handlers.LivenessHandler)
	r.Get("/health/ready", handlers.ReadinessHandler)
	r.Get("/health/startup", handlers.StartupHandler)
	r.Get("/version", handlers.VersionHandler)
	r.Get("/metrics", MetricsHandler)

	// Site API. A nil collaborator leaves its route unmounted.
	if s.deps.Contact != nil {
		r.Post("/api/contact", handlers.ContactHandler(s.deps.Contact))
	}
	if s.deps.Analytics != nil {
		r.Post("/api/analytics", handlers.AnalyticsHandler(s.deps.Analytics))
	}
	if s.deps.Status != nil {
		r.Get("/api/status", handlers.StatusHandler(s.deps.Status))
	}

	if h := adminSignalHandler(s.deps.AdminToken); h != nil {
		r.Post(AdminSignalPath, h.ServeHTTP)
	}

	if s.deps.Pprof {
		r.Mount("/debug", chimw.Profiler())
	}

	// Static pages take whatever the routes above did not claim.
	if s.deps.SiteRoot != "" {
		site := NewSiteHandler(s.deps.SiteRoot)
		r.Get("/*", site.ServeHTTP)
		r.Head("/*", site.ServeHTTP)
	}
}

// adminSignalHandler returns nil when no token is configured.
func adminSignalHandler(token string) http.Handler {
	logger := observability.ServerLogger
	if token == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no admin token)")
		}
		return nil
	}

	h := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: token,
		RateLimit: adminRatePerMinute,
		RateBurst: adminRateBurst,
	})

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", AdminSignalPath),
			zap.Int("rate_per_minute", adminRatePerMinute),
			zap.Int("burst", adminRateBurst))
		logger.Warn("Admin endpoint enabled; keep it off the public internet")
	}
	return h
}
