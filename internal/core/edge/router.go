// Package edge implements the per-request gatekeeper that runs in front of
// every page and API handler: asset bypass, legacy redirects, session gating,
// contact form rate limiting and response annotation, in that order.
package edge

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/namelens/edgegate/internal/core/ratelimit"
)

// Response headers attached on pass-through.
const (
	HeaderPagePath  = "X-Page-Path"
	HeaderTimestamp = "X-Middleware-Timestamp"
)

// Action is the kind of outcome the router produced.
type Action int

const (
	ActionPass Action = iota
	ActionRedirect
	ActionReject
	ActionPassWithHeaders
)

func (a Action) String() string {
	switch a {
	case ActionPass:
		return "pass"
	case ActionRedirect:
		return "redirect"
	case ActionReject:
		return "reject"
	case ActionPassWithHeaders:
		return "pass_with_headers"
	default:
		return "unknown"
	}
}

// Rule names the pipeline stage that decided an outcome.
type Rule string

const (
	RuleBypass    Rule = "bypass"
	RuleRedirect  Rule = "redirect"
	RuleAuth      Rule = "auth"
	RuleRateLimit Rule = "rate_limit"
	RuleDefault   Rule = "default"
)

// Request is the subset of an incoming request the router inspects.
type Request struct {
	Path    string
	Method  string
	Header  http.Header
	Cookies map[string]string
}

// RequestFromHTTP builds a Request from an *http.Request.
func RequestFromHTTP(r *http.Request) Request {
	req := Request{
		Method: r.Method,
		Header: r.Header,
	}
	if r.URL != nil {
		req.Path = r.URL.Path
	}
	cookies := r.Cookies()
	if len(cookies) > 0 {
		req.Cookies = make(map[string]string, len(cookies))
		for _, c := range cookies {
			if _, seen := req.Cookies[c.Name]; !seen {
				req.Cookies[c.Name] = c.Value
			}
		}
	}
	return req
}

// HasCookie reports cookie presence; the value is never inspected.
func (r Request) HasCookie(name string) bool {
	_, ok := r.Cookies[name]
	return ok
}

// Outcome is the single result of evaluating a request.
type Outcome struct {
	Action   Action
	Rule     Rule
	Status   int
	Location string
	Headers  http.Header

	// ClientKey and Decision are set when the rate limit rule ran.
	ClientKey string
	Decision  *ratelimit.Decision

	// Err records a limiter failure. The request is let through when set.
	Err error
}

// Options configures a Router. Zero values fall back to DefaultOptions.
type Options struct {
	Redirects         map[string]string
	ProtectedPrefixes []string
	SessionCookie     string
	LoginPath         string
	InternalPrefix    string
	APIPrefix         string

	RateLimitPath   string
	RateLimitMethod string
	RateLimitPolicy ratelimit.Policy
	Limiter         ratelimit.Limiter

	// DebugHeaders adds X-Middleware-Timestamp on pass-through. Keep it off
	// in production so the hot path does not format timestamps.
	DebugHeaders bool

	Matcher *Matcher
	Clock   func() time.Time
}

// DefaultOptions returns the marketing site configuration.
func DefaultOptions() Options {
	return Options{
		Redirects:         DefaultRedirects(),
		ProtectedPrefixes: DefaultProtectedPrefixes(),
		SessionCookie:     "session",
		LoginPath:         "/login",
		InternalPrefix:    "/_next",
		APIPrefix:         "/api",
		RateLimitPath:     "/api/contact",
		RateLimitMethod:   http.MethodPost,
		RateLimitPolicy:   ratelimit.DefaultPolicy,
	}
}

// Router evaluates requests. It is immutable after New apart from the state
// owned by its Limiter, and is safe for concurrent use.
type Router struct {
	redirects      RedirectTable
	protected      PrefixSet
	sessionCookie  string
	loginPath      string
	internalPrefix string
	apiPrefix      string

	rateLimitPath   string
	rateLimitMethod string
	policy          ratelimit.Policy
	limiter         ratelimit.Limiter

	debugHeaders bool
	matcher      *Matcher
	clock        func() time.Time
}

// New validates opts and builds a Router.
func New(opts Options) (*Router, error) {
	defaults := DefaultOptions()

	if opts.Redirects == nil {
		opts.Redirects = defaults.Redirects
	}
	if opts.ProtectedPrefixes == nil {
		opts.ProtectedPrefixes = defaults.ProtectedPrefixes
	}
	opts.SessionCookie = firstNonEmpty(opts.SessionCookie, defaults.SessionCookie)
	opts.LoginPath = firstNonEmpty(opts.LoginPath, defaults.LoginPath)
	opts.InternalPrefix = firstNonEmpty(opts.InternalPrefix, defaults.InternalPrefix)
	opts.APIPrefix = firstNonEmpty(opts.APIPrefix, defaults.APIPrefix)
	opts.RateLimitPath = firstNonEmpty(opts.RateLimitPath, defaults.RateLimitPath)
	opts.RateLimitMethod = firstNonEmpty(opts.RateLimitMethod, defaults.RateLimitMethod)
	if opts.RateLimitPolicy.Limit <= 0 {
		opts.RateLimitPolicy.Limit = defaults.RateLimitPolicy.Limit
	}
	if opts.RateLimitPolicy.Window <= 0 {
		opts.RateLimitPolicy.Window = defaults.RateLimitPolicy.Window
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewMemory()
	}

	if !strings.HasPrefix(opts.LoginPath, "/") {
		return nil, errors.New("login path must start with /")
	}

	redirects, err := NewRedirectTable(opts.Redirects)
	if err != nil {
		return nil, err
	}
	protected, err := NewPrefixSet(opts.ProtectedPrefixes)
	if err != nil {
		return nil, err
	}
	if protected.Match(opts.LoginPath) {
		return nil, errors.New("login path cannot be a protected path")
	}

	matcher := opts.Matcher
	if matcher == nil {
		matcher = DefaultMatcher(opts.RateLimitPath)
	}

	return &Router{
		redirects:       redirects,
		protected:       protected,
		sessionCookie:   opts.SessionCookie,
		loginPath:       opts.LoginPath,
		internalPrefix:  opts.InternalPrefix,
		apiPrefix:       opts.APIPrefix,
		rateLimitPath:   opts.RateLimitPath,
		rateLimitMethod: strings.ToUpper(opts.RateLimitMethod),
		policy:          opts.RateLimitPolicy,
		limiter:         opts.Limiter,
		debugHeaders:    opts.DebugHeaders,
		matcher:         matcher,
		clock:           opts.Clock,
	}, nil
}

// Evaluate runs the pipeline and returns exactly one outcome.
func (rt *Router) Evaluate(ctx context.Context, req Request) Outcome {
	path := req.Path

	if rt.bypass(req) {
		return Outcome{Action: ActionPass, Rule: RuleBypass}
	}

	// Destinations are never looked up again, so chains cannot loop.
	if dest, ok := rt.redirects.Lookup(path); ok {
		return Outcome{
			Action:   ActionRedirect,
			Rule:     RuleRedirect,
			Status:   http.StatusPermanentRedirect,
			Location: dest,
		}
	}

	if rt.protected.Match(path) && !req.HasCookie(rt.sessionCookie) {
		return Outcome{
			Action:   ActionRedirect,
			Rule:     RuleAuth,
			Status:   http.StatusTemporaryRedirect,
			Location: rt.loginPath,
		}
	}

	if rt.isRateLimited(req) {
		return rt.rateLimit(ctx, req)
	}

	headers := http.Header{}
	headers.Set(HeaderPagePath, path)
	if rt.debugHeaders {
		headers.Set(HeaderTimestamp, strconv.FormatInt(rt.now().UnixMilli(), 10))
	}
	return Outcome{Action: ActionPassWithHeaders, Rule: RuleDefault, Headers: headers}
}

// Redirects returns the effective redirect table.
func (rt *Router) Redirects() RedirectTable {
	return rt.redirects
}

// ProtectedPrefixes returns the effective protected prefix set.
func (rt *Router) ProtectedPrefixes() PrefixSet {
	return rt.protected
}

// Policy returns the rate limit policy applied to the contact endpoint.
func (rt *Router) Policy() ratelimit.Policy {
	return rt.policy
}

// RateLimitedEndpoint returns the method and path guarded by the limiter.
func (rt *Router) RateLimitedEndpoint() (method, path string) {
	return rt.rateLimitMethod, rt.rateLimitPath
}

// bypass exempts assets and API routes. The rate-limited endpoint lives under
// the API prefix, so its guarded method is carved out here and reaches the
// rate limit rule.
func (rt *Router) bypass(req Request) bool {
	path := req.Path
	if rt.isRateLimited(req) {
		return false
	}
	return strings.Contains(path, ".") ||
		strings.HasPrefix(path, rt.internalPrefix) ||
		strings.HasPrefix(path, rt.apiPrefix)
}

func (rt *Router) isRateLimited(req Request) bool {
	return req.Path == rt.rateLimitPath && strings.EqualFold(req.Method, rt.rateLimitMethod)
}

func (rt *Router) rateLimit(ctx context.Context, req Request) Outcome {
	key := ClientKey(req.Header)

	decision, err := rt.limiter.Allow(ctx, key, rt.policy)
	if err != nil {
		return Outcome{Action: ActionPass, Rule: RuleRateLimit, ClientKey: key, Err: err}
	}

	if decision.Allowed {
		return Outcome{Action: ActionPass, Rule: RuleRateLimit, ClientKey: key, Decision: &decision}
	}

	headers := http.Header{}
	if wait := decision.RetryAfter(rt.now()); wait > 0 {
		headers.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
	}
	return Outcome{
		Action:    ActionReject,
		Rule:      RuleRateLimit,
		Status:    http.StatusTooManyRequests,
		Headers:   headers,
		ClientKey: key,
		Decision:  &decision,
	}
}

func (rt *Router) now() time.Time {
	if rt.clock != nil {
		return rt.clock()
	}
	return time.Now().UTC()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
