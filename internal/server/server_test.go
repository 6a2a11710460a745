package server

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/edgegate/internal/core/analytics"
	"github.com/namelens/edgegate/internal/core/contact"
	"github.com/namelens/edgegate/internal/core/status"
	apperrors "github.com/namelens/edgegate/internal/errors"
)

type memorySink struct {
	mu   sync.Mutex
	subs []contact.Submission
}

func (m *memorySink) Save(_ context.Context, sub contact.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, sub)
	return nil
}

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	srv, err := New("127.0.0.1", 0, deps)
	require.NoError(t, err)
	return srv
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := newTestServer(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if body.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected error code NOT_FOUND, got %s", body.Error.Code)
	}

	assert.Equal(t, "/does-not-exist", rec.Header().Get("X-Page-Path"))
}

func TestServerRedirectsLegacyPaths(t *testing.T) {
	srv := newTestServer(t, Deps{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/services/crm", nil))

	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "/services/crm-integration", rec.Header().Get("Location"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServerGatesProtectedPaths(t *testing.T) {
	srv := newTestServer(t, Deps{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestServerRateLimitsContactEndpoint(t *testing.T) {
	sink := &memorySink{}
	srv := newTestServer(t, Deps{Contact: sink})

	form := url.Values{"name": {"Ada"}, "email": {"ada@example.com"}, "message": {"Hello"}}
	post := func(client string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	for i := 1; i <= 11; i++ {
		rec := post("1.2.3.4")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}

	rec := post("1.2.3.4")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too Many Requests\n", rec.Body.String())

	rec = post("5.6.7.8")
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Len(t, sink.subs, 12)
}

func TestServerAnalyticsAndStatus(t *testing.T) {
	var events []analytics.Event
	var mu sync.Mutex
	srv := newTestServer(t, Deps{
		Analytics: analytics.SinkFunc(func(_ context.Context, e analytics.Event) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, e)
		}),
		Status: status.NewGenerator(rand.New(rand.NewPCG(5, 5)), nil),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/analytics", strings.NewReader(`{"event":"demo_request"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Page-Path"))
	require.Len(t, events, 1)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var snap status.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.NotEmpty(t, snap.Services)
}

func TestServerDisabledRoutesReturnNotFound(t *testing.T) {
	srv := newTestServer(t, Deps{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerServesSitePages(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<h1>home</h1>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "about.html"), []byte("<h1>about</h1>"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "services", "web-development"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "services", "web-development", "index.html"), []byte("web"), 0o600))

	srv := newTestServer(t, Deps{SiteRoot: root})

	cases := map[string]string{
		"/":                         "<h1>home</h1>",
		"/about":                    "<h1>about</h1>",
		"/services/web-development": "web",
	}
	for path, body := range cases {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, body, rec.Body.String(), path)
		assert.Equal(t, path, rec.Header().Get("X-Page-Path"), path)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/../etc/passwd", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerServeAndShutdown(t *testing.T) {
	srv := newTestServer(t, Deps{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	target := "http://" + ln.Addr().String() + "/about"
	require.Eventually(t, func() bool {
		resp, err := http.Get(target) // #nosec G107 -- local test server
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.Header.Get("X-Page-Path") == "/about"
	}, 2*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, <-done)
}

func TestServerAdminSignalEndpointNeedsToken(t *testing.T) {
	post := func(srv *Server) int {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, AdminSignalPath, strings.NewReader(`{"signal":"HUP"}`)))
		return rec.Code
	}

	assert.Equal(t, http.StatusNotFound, post(newTestServer(t, Deps{})))

	code := post(newTestServer(t, Deps{AdminToken: "s3cret"}))
	assert.NotEqual(t, http.StatusNotFound, code)
	assert.NotEqual(t, http.StatusOK, code, "unauthenticated signal must be refused")
}

func TestServerPprofOnlyWhenEnabled(t *testing.T) {
	get := func(srv *Server) int {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/cmdline", nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusNotFound, get(newTestServer(t, Deps{})))
	assert.Equal(t, http.StatusOK, get(newTestServer(t, Deps{Pprof: true})))
}
