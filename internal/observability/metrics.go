package observability

import (
	"fmt"
	"net"
	"strconv"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/fulmenhq/gofulmen/telemetry/exporters"
)

// DefaultMetricsPort is reported when the exporter bound an ephemeral port
// whose number could not be read back.
const DefaultMetricsPort = 9090

var (
	// TelemetrySystem records request, edge and error metrics. Nil when
	// metrics are disabled; callers check before emitting.
	TelemetrySystem *telemetry.System

	// PrometheusExporter serves the scrape endpoint that /metrics proxies.
	PrometheusExporter *exporters.PrometheusExporter

	metricsPort int
)

// InitMetrics starts a Prometheus exporter on port (0 picks a free port) and
// installs TelemetrySystem on top of it. Metric names are prefixed with
// namespace, or serviceName when namespace is empty.
func InitMetrics(serviceName string, port int, namespace string) error {
	if port < 0 {
		port = 0
	}
	prefix := namespace
	if prefix == "" {
		prefix = serviceName
	}

	exporter := exporters.NewPrometheusExporter(prefix, fmt.Sprintf(":%d", port))
	if err := exporter.Start(); err != nil {
		return fmt.Errorf("start prometheus exporter: %w", err)
	}

	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: exporter})
	if err != nil {
		return fmt.Errorf("telemetry system: %w", err)
	}

	PrometheusExporter = exporter
	TelemetrySystem = sys
	metricsPort = boundPort(exporter.GetAddr(), port)
	return nil
}

// GetMetricsPort returns the port the exporter is listening on.
func GetMetricsPort() int {
	return metricsPort
}

func boundPort(addr string, requested int) int {
	_, raw, err := net.SplitHostPort(addr)
	if err == nil {
		if port, convErr := strconv.Atoi(raw); convErr == nil && port > 0 {
			return port
		}
	}
	if requested == 0 {
		return DefaultMetricsPort
	}
	return requested
}
