package edge

import (
	"net/http"
	"path"
	"strings"

	"github.com/namelens/edgegate/internal/core/ratelimit"
	"github.com/namelens/edgegate/internal/metrics"
	"github.com/namelens/edgegate/internal/observability"
	"go.uber.org/zap"
)

// Matcher decides which request paths the edge layer is invoked for at all.
// Skipped paths never reach Evaluate.
type Matcher struct {
	ExcludePrefixes []string
	ExcludeExact    []string
	// Always lists paths that are evaluated even when an exclusion matches.
	Always []string
}

// DefaultMatcher excludes static assets, image optimisation, well-known
// files and anything with a file extension, but always includes the
// rate-limited endpoint.
func DefaultMatcher(rateLimitPath string) *Matcher {
	m := &Matcher{
		ExcludePrefixes: []string{"/api/", "/_next/static", "/_next/image", "/images/", "/public/"},
		ExcludeExact:    []string{"/favicon.ico", "/robots.txt", "/sitemap.xml"},
	}
	if rateLimitPath != "" {
		m.Always = []string{rateLimitPath}
	}
	return m
}

// Skip reports whether p should bypass the edge layer entirely.
func (m *Matcher) Skip(p string) bool {
	if m == nil {
		return false
	}
	for _, always := range m.Always {
		if p == always {
			return false
		}
	}
	for _, exact := range m.ExcludeExact {
		if p == exact {
			return true
		}
	}
	for _, prefix := range m.ExcludePrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return path.Ext(p) != ""
}

// Middleware applies the router to every matched request.
func (rt *Router) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rt.matcher.Skip(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		outcome := rt.Evaluate(r.Context(), RequestFromHTTP(r))
		metrics.RecordEdgeDecision(string(outcome.Rule), outcome.Action.String())
		rt.logOutcome(r, outcome)

		switch outcome.Action {
		case ActionRedirect:
			http.Redirect(w, r, outcome.Location, outcome.Status)
		case ActionReject:
			metrics.RecordRateLimited()
			copyHeaders(w.Header(), outcome.Headers)
			http.Error(w, http.StatusText(outcome.Status), outcome.Status)
		default:
			copyHeaders(w.Header(), outcome.Headers)
			next.ServeHTTP(w, r)
		}
	})
}

func (rt *Router) logOutcome(r *http.Request, outcome Outcome) {
	if outcome.Err != nil {
		metrics.RecordLimiterError(limiterBackend(rt.limiter))
	}
	if observability.ServerLogger == nil {
		return
	}

	if outcome.Err != nil {
		observability.ServerLogger.Warn("Rate limiter unavailable, allowing request",
			zap.String("path", r.URL.Path),
			zap.String("client", outcome.ClientKey),
			zap.Error(outcome.Err),
		)
		return
	}

	switch outcome.Action {
	case ActionRedirect:
		observability.ServerLogger.Debug("Edge redirect",
			zap.String("rule", string(outcome.Rule)),
			zap.String("path", r.URL.Path),
			zap.String("location", outcome.Location),
			zap.Int("status", outcome.Status),
		)
	case ActionReject:
		observability.ServerLogger.Info("Rate limit exceeded",
			zap.String("path", r.URL.Path),
			zap.String("client", outcome.ClientKey),
			zap.Int("count", outcome.Decision.Count),
		)
	}
}

func limiterBackend(l ratelimit.Limiter) string {
	switch l.(type) {
	case *ratelimit.Memory:
		return "memory"
	default:
		return "store"
	}
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}
