package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/namelens/edgegate/internal/observability"
)

// statusRecorder captures what the handler chain wrote.
type statusRecorder struct {
	http.ResponseWriter
	status       int
	bytesWritten int64
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.bytesWritten += int64(n)
	return n, err
}

// fixedEndpoints are labelled by path even when the edge router answered
// before chi matched a route.
var fixedEndpoints = map[string]string{
	"/health":         "/health/*",
	"/health/live":    "/health/*",
	"/health/ready":   "/health/*",
	"/health/startup": "/health/*",
	"/version":        "/version",
	"/metrics":        "/metrics",
	"/api/contact":    "/api/contact",
	"/api/analytics":  "/api/analytics",
	"/api/status":     "/api/status",
	"/":               "/",
}

// EndpointLabel maps a request to a low-cardinality metrics label. Site pages
// share one label, and requests the edge router short-circuited are labelled
// by outcome.
func EndpointLabel(r *http.Request, status int) string {
	if label, ok := fixedEndpoints[r.URL.Path]; ok {
		return label
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		switch pattern := rctx.RoutePattern(); pattern {
		case "":
		case "/*":
			return "page"
		default:
			return pattern
		}
	}
	switch status {
	case http.StatusPermanentRedirect:
		return "edge:redirect"
	case http.StatusTemporaryRedirect:
		return "edge:login"
	case http.StatusTooManyRequests:
		return "edge:rate_limited"
	}
	return "/unknown"
}

// RequestMetrics emits Prometheus-style request metrics and one structured log
// line per request.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if observability.TelemetrySystem == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		duration := time.Since(start)

		endpoint := EndpointLabel(r, rec.status)
		status := strconv.Itoa(rec.status)
		labels := map[string]string{
			"method":   r.Method,
			"endpoint": endpoint,
			"status":   status,
		}
		sizeLabels := map[string]string{
			"method":   r.Method,
			"endpoint": endpoint,
		}

		_ = observability.TelemetrySystem.Counter("http_requests_total", 1, labels)
		_ = observability.TelemetrySystem.Histogram("http_request_duration_ms", duration, labels)
		if r.ContentLength > 0 {
			_ = observability.TelemetrySystem.Gauge("http_request_size_bytes", float64(r.ContentLength), sizeLabels)
		}
		_ = observability.TelemetrySystem.Gauge("http_response_size_bytes", float64(rec.bytesWritten), sizeLabels)

		if rec.status >= http.StatusBadRequest {
			errorType := "client_error"
			if rec.status >= http.StatusInternalServerError {
				errorType = "server_error"
			}
			_ = observability.TelemetrySystem.Counter("http_errors_total", 1, map[string]string{
				"method":     r.Method,
				"endpoint":   endpoint,
				"status":     status,
				"error_type": errorType,
			})
		}

		if observability.ServerLogger != nil {
			observability.ServerLogger.Info("HTTP request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("endpoint", endpoint),
				zap.Int("status", rec.status),
				zap.Duration("duration", duration),
				zap.Int64("request_size", r.ContentLength),
				zap.Int64("response_size", rec.bytesWritten),
				zap.String("request_id", GetRequestID(r.Context())),
				zap.String("page_path", rec.Header().Get("X-Page-Path")),
				zap.String("location", rec.Header().Get("Location")),
			)
		}
	})
}
