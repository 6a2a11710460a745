package output

import (
	"fmt"

	"github.com/namelens/edgegate/internal/core/edge"
	"github.com/namelens/edgegate/internal/core/ratelimit"
)

// RouteSet is the effective routing configuration of an edge router.
type RouteSet struct {
	Redirects         []edge.Entry  `json:"redirects"`
	ProtectedPrefixes []string      `json:"protected_prefixes"`
	RateLimit         RateLimitInfo `json:"rate_limit"`
}

// RateLimitInfo describes the rate-limited endpoint.
type RateLimitInfo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Limit  int    `json:"limit"`
	Window string `json:"window"`
	Strict bool   `json:"strict"`
}

// NewRouteSet snapshots rt.
func NewRouteSet(rt *edge.Router) RouteSet {
	method, path := rt.RateLimitedEndpoint()
	return RouteSet{
		Redirects:         rt.Redirects().Entries(),
		ProtectedPrefixes: rt.ProtectedPrefixes().List(),
		RateLimit:         newRateLimitInfo(method, path, rt.Policy()),
	}
}

func newRateLimitInfo(method, path string, p ratelimit.Policy) RateLimitInfo {
	return RateLimitInfo{
		Method: method,
		Path:   path,
		Limit:  p.Limit,
		Window: p.Window.String(),
		Strict: p.Strict,
	}
}

// FormatRoutes renders routes in the requested format.
func FormatRoutes(format Format, routes RouteSet) (string, error) {
	if format == FormatJSON {
		return renderJSON(routes)
	}

	redirects := section{
		title:  "Redirects (308)",
		header: []string{"From", "To"},
		empty:  "(none)",
		footer: fmt.Sprintf("%d entries", len(routes.Redirects)),
	}
	for _, e := range routes.Redirects {
		redirects.rows = append(redirects.rows, []string{e.From, e.To})
	}

	protected := section{
		title:  "Protected prefixes (307 to login without session)",
		header: []string{"Prefix"},
		empty:  "(none)",
	}
	for _, p := range routes.ProtectedPrefixes {
		protected.rows = append(protected.rows, []string{p})
	}

	comparison := "count > limit"
	if routes.RateLimit.Strict {
		comparison = "count >= limit"
	}
	limited := section{
		title:  "Rate limit",
		header: []string{"Method", "Path", "Limit", "Window", "Rejects when"},
		rows: [][]string{{
			routes.RateLimit.Method,
			routes.RateLimit.Path,
			fmt.Sprintf("%d", routes.RateLimit.Limit),
			routes.RateLimit.Window,
			comparison,
		}},
	}

	return renderSections(format, redirects, protected, limited), nil
}
