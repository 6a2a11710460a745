package metrics

import (
	"time"

	"github.com/namelens/edgegate/internal/observability"
)

// Process-level metrics
const (
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"
	ServerStartTime     = "app_server_start_time_seconds"
)

// RecordHealthCheck counts one checker run and its latency
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	_ = observability.TelemetrySystem.Counter(
		HealthCheckTotal,
		1,
		map[string]string{
			"check":  checkName,
			"status": status,
		},
	)
	_ = observability.TelemetrySystem.Histogram(
		HealthCheckDuration,
		duration,
		map[string]string{"check": checkName},
	)
}

// SetServerStartTime records when serve began accepting work
func SetServerStartTime(t time.Time) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(t.Unix()), nil)
	}
}
