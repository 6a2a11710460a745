package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/namelens/edgegate/internal/core/analytics"
	"github.com/namelens/edgegate/internal/core/contact"
	"github.com/namelens/edgegate/internal/core/edge"
	"github.com/namelens/edgegate/internal/core/status"
	"github.com/namelens/edgegate/internal/observability"
	servermw "github.com/namelens/edgegate/internal/server/middleware"
)

// Timeouts configures the underlying http.Server.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
	Idle  time.Duration
}

// DefaultTimeouts matches the server.* config defaults.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Read:  30 * time.Second,
		Write: 30 * time.Second,
		Idle:  120 * time.Second,
	}
}

// Deps are the site collaborators mounted on the router. Nil fields disable
// the corresponding route; a nil Edge router is replaced by the default one.
type Deps struct {
	Edge      *edge.Router
	Contact   contact.Sink
	Analytics analytics.Sink
	Status    *status.Generator
	SiteRoot  string
	Timeouts  Timeouts

	// AdminToken enables the admin signal endpoint when non-empty.
	AdminToken string
	// Pprof mounts net/http/pprof under /debug.
	Pprof bool
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	host   string
	port   int
	deps   Deps
}

// New creates a new HTTP server instance
func New(host string, port int, deps Deps) (*Server, error) {
	if deps.Edge == nil {
		router, err := edge.New(edge.DefaultOptions())
		if err != nil {
			return nil, err
		}
		deps.Edge = router
	}
	if deps.Timeouts == (Timeouts{}) {
		deps.Timeouts = DefaultTimeouts()
	}

	r := chi.NewRouter()

	// Standard chi middleware
	r.Use(middleware.RealIP)

	// RequestID → Metrics → Recovery → Edge
	r.Use(servermw.RequestID)      // 1. Request ID (early for correlation)
	r.Use(servermw.RequestMetrics) // 2. Metrics (measure everything, including edge rejections)
	r.Use(servermw.Recovery)       // 3. Panic recovery
	r.Use(deps.Edge.Middleware)    // 4. Redirects, auth gate, contact rate limit

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	s := &Server{
		router: r,
		host:   host,
		port:   port,
		deps:   deps,
		server: &http.Server{
			Handler:      r,
			ReadTimeout:  deps.Timeouts.Read,
			WriteTimeout: deps.Timeouts.Write,
			IdleTimeout:  deps.Timeouts.Idle,
		},
	}

	s.registerRoutes()

	return s, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called. A Shutdown that
// happens first makes Serve return immediately.
func (s *Server) Serve(ln net.Listener) error {
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Starting HTTP server",
			zap.String("host", s.host),
			zap.Int("port", s.port),
			zap.String("addr", ln.Addr().String()))
	}

	err := s.server.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Shutting down HTTP server")
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.port
}
