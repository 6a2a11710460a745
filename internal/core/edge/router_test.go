package edge

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/namelens/edgegate/internal/core/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRouter(t *testing.T, mutate func(*Options)) (*Router, *testClock) {
	t.Helper()
	clock := newTestClock()
	mem := ratelimit.NewMemory()
	mem.Clock = clock.Now

	opts := DefaultOptions()
	opts.Limiter = mem
	opts.Clock = clock.Now
	if mutate != nil {
		mutate(&opts)
	}

	rt, err := New(opts)
	require.NoError(t, err)
	return rt, clock
}

func get(path string) Request {
	return Request{Path: path, Method: http.MethodGet, Header: http.Header{}}
}

func contactPost(client string) Request {
	h := http.Header{}
	if client != "" {
		h.Set("X-Forwarded-For", client)
	}
	return Request{Path: "/api/contact", Method: http.MethodPost, Header: h}
}

func TestBypassHasPriority(t *testing.T) {
	rt, _ := newTestRouter(t, func(o *Options) {
		o.Redirects["/legacy.html"] = "/new"
		o.ProtectedPrefixes = append(o.ProtectedPrefixes, "/_next", "/api")
	})
	ctx := context.Background()

	paths := []string{
		"/logo.png",
		"/admin/report.pdf",
		"/legacy.html",
		"/_next/static/chunk.js",
		"/_next/data",
		"/api/analytics",
		"/api/status",
		"/api",
	}
	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			outcome := rt.Evaluate(ctx, get(p))
			assert.Equal(t, ActionPass, outcome.Action)
			assert.Equal(t, RuleBypass, outcome.Rule)
			assert.Empty(t, outcome.Headers)
		})
	}
}

func TestContactEndpointGetStillBypasses(t *testing.T) {
	rt, _ := newTestRouter(t, nil)

	outcome := rt.Evaluate(context.Background(), get("/api/contact"))
	assert.Equal(t, ActionPass, outcome.Action)
	assert.Equal(t, RuleBypass, outcome.Rule)
}

func TestRedirectTable(t *testing.T) {
	rt, _ := newTestRouter(t, nil)
	ctx := context.Background()

	cases := map[string]string{
		"/services/web": "/services/web-development",
		"/services/crm": "/services/crm-integration",
	}
	for from, to := range cases {
		outcome := rt.Evaluate(ctx, get(from))
		assert.Equal(t, ActionRedirect, outcome.Action)
		assert.Equal(t, RuleRedirect, outcome.Rule)
		assert.Equal(t, to, outcome.Location)
		assert.GreaterOrEqual(t, outcome.Status, 300)
		assert.Less(t, outcome.Status, 400)
	}
}

func TestRedirectIsExactMatchOnly(t *testing.T) {
	rt, _ := newTestRouter(t, nil)
	ctx := context.Background()

	for _, p := range []string{"/services/web/", "/services/webx", "/services", "/services/web-development"} {
		outcome := rt.Evaluate(ctx, get(p))
		assert.NotEqual(t, RuleRedirect, outcome.Rule, p)
	}
}

func TestRedirectIsIdempotent(t *testing.T) {
	rt, _ := newTestRouter(t, nil)
	ctx := context.Background()

	first := rt.Evaluate(ctx, get("/services/crm"))
	for i := 0; i < 5; i++ {
		again := rt.Evaluate(ctx, get("/services/crm"))
		assert.Equal(t, first, again)
	}
}

func TestRedirectRunsBeforeAuth(t *testing.T) {
	rt, _ := newTestRouter(t, func(o *Options) {
		o.Redirects["/admin/old"] = "/admin/new"
	})

	outcome := rt.Evaluate(context.Background(), get("/admin/old"))
	assert.Equal(t, RuleRedirect, outcome.Rule)
	assert.Equal(t, "/admin/new", outcome.Location)
}

func TestAuthRedirectsWithoutSession(t *testing.T) {
	rt, _ := newTestRouter(t, nil)
	ctx := context.Background()

	for _, p := range []string{"/admin", "/admin/users", "/dashboard", "/dashboard/stats", "/adminpanel"} {
		outcome := rt.Evaluate(ctx, get(p))
		assert.Equal(t, ActionRedirect, outcome.Action, p)
		assert.Equal(t, RuleAuth, outcome.Rule, p)
		assert.Equal(t, "/login", outcome.Location, p)
		assert.Equal(t, http.StatusTemporaryRedirect, outcome.Status, p)
	}
}

func TestAuthPassesWithSession(t *testing.T) {
	rt, _ := newTestRouter(t, nil)

	req := get("/dashboard")
	req.Cookies = map[string]string{"session": ""}

	outcome := rt.Evaluate(context.Background(), req)
	assert.Equal(t, ActionPassWithHeaders, outcome.Action)
	assert.Equal(t, "/dashboard", outcome.Headers.Get(HeaderPagePath))
}

func TestAuthIgnoresOtherCookies(t *testing.T) {
	rt, _ := newTestRouter(t, nil)

	req := get("/admin")
	req.Cookies = map[string]string{"theme": "dark"}

	outcome := rt.Evaluate(context.Background(), req)
	assert.Equal(t, RuleAuth, outcome.Rule)
}

func TestCustomSessionCookie(t *testing.T) {
	rt, _ := newTestRouter(t, func(o *Options) {
		o.SessionCookie = "sid"
	})

	req := get("/admin")
	req.Cookies = map[string]string{"sid": "abc"}

	outcome := rt.Evaluate(context.Background(), req)
	assert.Equal(t, ActionPassWithHeaders, outcome.Action)
}

// Lenient mode (count > limit) is the default and admits limit+1 requests.
func TestRateLimitAdmitsElevenThenRejects(t *testing.T) {
	rt, _ := newTestRouter(t, nil)
	ctx := context.Background()

	for i := 1; i <= 11; i++ {
		outcome := rt.Evaluate(ctx, contactPost("1.2.3.4"))
		assert.Equal(t, ActionPass, outcome.Action, "request %d", i)
		assert.Equal(t, RuleRateLimit, outcome.Rule)
		assert.Empty(t, outcome.Headers.Get(HeaderPagePath))
	}

	outcome := rt.Evaluate(ctx, contactPost("1.2.3.4"))
	assert.Equal(t, ActionReject, outcome.Action)
	assert.Equal(t, http.StatusTooManyRequests, outcome.Status)
	assert.Equal(t, "1.2.3.4", outcome.ClientKey)
	assert.Equal(t, "3600", outcome.Headers.Get("Retry-After"))
}

func TestRateLimitStrictAdmitsExactlyLimit(t *testing.T) {
	rt, _ := newTestRouter(t, func(o *Options) {
		o.RateLimitPolicy.Strict = true
	})
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		outcome := rt.Evaluate(ctx, contactPost("1.2.3.4"))
		assert.Equal(t, ActionPass, outcome.Action, "request %d", i)
	}

	outcome := rt.Evaluate(ctx, contactPost("1.2.3.4"))
	assert.Equal(t, ActionReject, outcome.Action)
}

func TestRateLimitWindowReset(t *testing.T) {
	rt, clock := newTestRouter(t, nil)
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		rt.Evaluate(ctx, contactPost("1.2.3.4"))
	}

	clock.Advance(time.Hour + time.Millisecond)

	outcome := rt.Evaluate(ctx, contactPost("1.2.3.4"))
	assert.Equal(t, ActionPass, outcome.Action)
	require.NotNil(t, outcome.Decision)
	assert.Equal(t, 1, outcome.Decision.Count)
}

func TestRateLimitIdentityIsolation(t *testing.T) {
	rt, _ := newTestRouter(t, nil)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		rt.Evaluate(ctx, contactPost("1.2.3.4"))
	}
	assert.Equal(t, ActionReject, rt.Evaluate(ctx, contactPost("1.2.3.4")).Action)

	outcome := rt.Evaluate(ctx, contactPost("5.6.7.8"))
	assert.Equal(t, ActionPass, outcome.Action)
	assert.Equal(t, 1, outcome.Decision.Count)
}

func TestRateLimitUnknownClientsShareCounter(t *testing.T) {
	rt, _ := newTestRouter(t, nil)
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		outcome := rt.Evaluate(ctx, contactPost(""))
		assert.Equal(t, UnknownClient, outcome.ClientKey)
	}
	assert.Equal(t, ActionReject, rt.Evaluate(ctx, contactPost("")).Action)
}

func TestRateLimitMethodIsCaseInsensitive(t *testing.T) {
	rt, _ := newTestRouter(t, nil)

	req := contactPost("1.2.3.4")
	req.Method = "post"

	outcome := rt.Evaluate(context.Background(), req)
	assert.Equal(t, RuleRateLimit, outcome.Rule)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, ratelimit.Policy) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("store unavailable")
}

func TestRateLimitFailsOpen(t *testing.T) {
	rt, _ := newTestRouter(t, func(o *Options) {
		o.Limiter = failingLimiter{}
	})

	outcome := rt.Evaluate(context.Background(), contactPost("1.2.3.4"))
	assert.Equal(t, ActionPass, outcome.Action)
	assert.Error(t, outcome.Err)
	assert.Nil(t, outcome.Decision)
}

func TestDefaultPassThroughHeaders(t *testing.T) {
	rt, _ := newTestRouter(t, nil)

	outcome := rt.Evaluate(context.Background(), get("/about"))
	assert.Equal(t, ActionPassWithHeaders, outcome.Action)
	assert.Equal(t, RuleDefault, outcome.Rule)
	assert.Equal(t, "/about", outcome.Headers.Get(HeaderPagePath))
	assert.Empty(t, outcome.Headers.Get(HeaderTimestamp))
}

func TestDebugHeadersAddTimestamp(t *testing.T) {
	rt, _ := newTestRouter(t, func(o *Options) {
		o.DebugHeaders = true
	})

	outcome := rt.Evaluate(context.Background(), get("/about"))
	assert.Equal(t, "/about", outcome.Headers.Get(HeaderPagePath))
	assert.Equal(t, "1748768400000", outcome.Headers.Get(HeaderTimestamp))
}

func TestConcurrentEvaluateCountsEveryAllowedRequest(t *testing.T) {
	rt, _ := newTestRouter(t, func(o *Options) {
		o.RateLimitPolicy = ratelimit.Policy{Limit: 99, Window: time.Hour}
	})
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		allowed  int
		rejected int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				outcome := rt.Evaluate(ctx, contactPost("9.9.9.9"))
				mu.Lock()
				if outcome.Action == ActionReject {
					rejected++
				} else {
					allowed++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, allowed)
	assert.Equal(t, 100, rejected)
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{Redirects: map[string]string{"services": "/x"}})
	assert.Error(t, err)

	_, err = New(Options{ProtectedPrefixes: []string{"admin"}})
	assert.Error(t, err)

	_, err = New(Options{LoginPath: "/admin/login"})
	assert.Error(t, err)

	_, err = New(Options{LoginPath: "login"})
	assert.Error(t, err)
}

func TestNewFillsDefaults(t *testing.T) {
	rt, err := New(Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, rt.Redirects().Len())
	assert.Equal(t, []string{"/admin", "/dashboard"}, rt.ProtectedPrefixes().List())
	assert.Equal(t, ratelimit.DefaultPolicy, rt.Policy())

	method, path := rt.RateLimitedEndpoint()
	assert.Equal(t, "POST", method)
	assert.Equal(t, "/api/contact", path)
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "pass", ActionPass.String())
	assert.Equal(t, "redirect", ActionRedirect.String())
	assert.Equal(t, "reject", ActionReject.String())
	assert.Equal(t, "pass_with_headers", ActionPassWithHeaders.String())
	assert.Equal(t, "unknown", Action(42).String())
}
