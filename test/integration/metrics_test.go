package integration

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/edgegate/internal/core/contact"
	"github.com/namelens/edgegate/internal/core/edge"
	"github.com/namelens/edgegate/internal/core/ratelimit"
	"github.com/namelens/edgegate/internal/observability"
	"github.com/namelens/edgegate/internal/server"
	"github.com/namelens/edgegate/internal/server/handlers"
)

func initLoggers(t *testing.T) {
	t.Helper()
	require.NoError(t, observability.InitCLILogger("test", false))
	require.NoError(t, observability.InitServerLogger("test", observability.ServerLogOptions{Level: "warn"}))
}

// isPermissionError reports socket errors raised by sandboxes that forbid
// loopback binds.
func isPermissionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission denied") || strings.Contains(msg, "not permitted")
}

func initMetricsOrSkip(t *testing.T) {
	t.Helper()
	if err := observability.InitMetrics("test", 0, "test"); err != nil {
		if isPermissionError(err) {
			t.Skipf("metrics exporter cannot bind: %v", err)
		}
		require.NoError(t, err)
	}
	t.Cleanup(func() {
		if observability.PrometheusExporter != nil {
			_ = observability.PrometheusExporter.Stop()
			observability.PrometheusExporter = nil
		}
		observability.TelemetrySystem = nil
	})
}

// startEdgeServer serves an edge-routed site on an IPv4 loopback listener.
// The client does not follow redirects so edge responses stay visible.
func startEdgeServer(t *testing.T, limit int) (*httptest.Server, *http.Client) {
	t.Helper()

	opts := edge.DefaultOptions()
	opts.RateLimitPolicy = ratelimit.Policy{Limit: limit, Window: time.Hour}
	router, err := edge.New(opts)
	require.NoError(t, err)

	srv, err := server.New("127.0.0.1", 0, server.Deps{Edge: router, Contact: contact.LogSink{}})
	require.NoError(t, err)

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if isPermissionError(err) {
			t.Skipf("loopback listener refused: %v", err)
		}
		require.NoError(t, err)
	}

	ts := &httptest.Server{Listener: listener, Config: &http.Server{Handler: srv.Handler()}}
	ts.Start()
	t.Cleanup(ts.Close)

	client := ts.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return ts, client
}

func postContactForm(t *testing.T, client *http.Client, base, forwardedFor string) int {
	t.Helper()
	form := url.Values{"name": {"Ada"}, "email": {"ada@example.com"}, "message": {"Need a new site"}}
	req, err := http.NewRequest(http.MethodPost, base+"/api/contact", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Forwarded-For", forwardedFor)

	resp, err := client.Do(req)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	require.NoError(t, resp.Body.Close())
	return resp.StatusCode
}

func scrape(t *testing.T, client *http.Client, base string) (string, *http.Response) {
	t.Helper()
	resp, err := client.Get(base + "/metrics")
	require.NoError(t, err)
	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, readErr)
	return string(body), resp
}

func TestMetricsEndpointCountsEdgeDecisions(t *testing.T) {
	initLoggers(t)
	initMetricsOrSkip(t)
	handlers.InitHealthManager("test")

	ts, client := startEdgeServer(t, 1)

	resp, err := client.Get(ts.URL + "/services/web")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusPermanentRedirect, resp.StatusCode)
	assert.Equal(t, "/services/web-development", resp.Header.Get("Location"))

	resp, err = client.Get(ts.URL + "/dashboard/reports")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)

	assert.Equal(t, http.StatusOK, postContactForm(t, client, ts.URL, "203.0.113.20"))
	assert.Equal(t, http.StatusTooManyRequests, postContactForm(t, client, ts.URL, "203.0.113.20"))

	body, resp := scrape(t, client, ts.URL)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "test_edge_decisions_total")
	assert.Contains(t, body, "test_edge_rate_limited_total")
	assert.Contains(t, body, "test_http_requests_total")
	assert.Contains(t, body, "edge:redirect")
}

func TestMetricsEndpointUnderConcurrentLoad(t *testing.T) {
	initLoggers(t)
	initMetricsOrSkip(t)
	handlers.InitHealthManager("test")

	ts, client := startEdgeServer(t, 1000)

	paths := []string{"/services/crm", "/admin", "/health", "/version"}
	const requests = 40
	jobs := make(chan string, requests)
	for i := 0; i < requests; i++ {
		jobs <- paths[i%len(paths)]
	}
	close(jobs)

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if resp, err := client.Get(ts.URL + path); err == nil {
					_ = resp.Body.Close()
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	body, _ := scrape(t, client, ts.URL)
	assert.Contains(t, body, "test_http_request_duration_ms")
	assert.Contains(t, body, "test_edge_decisions_total")
	assert.Less(t, elapsed, 5*time.Second)
}

func TestMetricsEndpointPrometheusFormat(t *testing.T) {
	initLoggers(t)
	initMetricsOrSkip(t)
	handlers.InitHealthManager("test")

	ts, client := startEdgeServer(t, 10)

	resp, err := client.Get(ts.URL + "/version")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	body, resp := scrape(t, client, ts.URL)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain; version=0.0.4"),
		"unexpected content type %q", resp.Header.Get("Content-Type"))

	samples := 0
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		assert.GreaterOrEqual(t, len(strings.Fields(line)), 2, "malformed sample %q", line)
		samples++
	}
	assert.Greater(t, samples, 0)
}

func TestMetricsEndpointWithTelemetryDisabled(t *testing.T) {
	initLoggers(t)

	exporter, sys := observability.PrometheusExporter, observability.TelemetrySystem
	observability.PrometheusExporter, observability.TelemetrySystem = nil, nil
	t.Cleanup(func() {
		observability.PrometheusExporter, observability.TelemetrySystem = exporter, sys
	})
	t.Setenv("EDGEGATE_METRICS_ENABLED", "false")
	handlers.InitHealthManager("test")

	ts, client := startEdgeServer(t, 10)

	// Edge decisions still apply without telemetry
	resp, err := client.Get(ts.URL + "/services/web")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusPermanentRedirect, resp.StatusCode)

	_, resp = scrape(t, client, ts.URL)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
