package metrics

import (
	"github.com/namelens/edgegate/internal/observability"
)

// Edge and site metrics
const (
	EdgeDecisionsTotal      = "edge_decisions_total"
	EdgeRateLimitedTotal    = "edge_rate_limited_total"
	EdgeLimiterErrorsTotal  = "edge_limiter_errors_total"
	EdgeRateLimitSweptTotal = "edge_rate_limit_swept_total"
	ContactSubmissionsTotal = "contact_submissions_total"
	AnalyticsEventsTotal    = "analytics_events_total"
)

// RecordEdgeDecision counts one router outcome by rule and action
func RecordEdgeDecision(rule, action string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			EdgeDecisionsTotal,
			1,
			map[string]string{
				"rule":   rule,
				"action": action,
			},
		)
	}
}

// RecordRateLimited counts a rejected contact submission
func RecordRateLimited() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(EdgeRateLimitedTotal, 1, nil)
	}
}

// RecordLimiterError counts a limiter backend failure
func RecordLimiterError(backend string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			EdgeLimiterErrorsTotal,
			1,
			map[string]string{"backend": backend},
		)
	}
}

// RecordRateLimitSwept counts records evicted by a sweep
func RecordRateLimitSwept(removed int) {
	if removed <= 0 {
		return
	}
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(EdgeRateLimitSweptTotal, float64(removed), nil)
	}
}

// RecordContactSubmission counts a contact form submission by status
// (accepted, invalid, failed)
func RecordContactSubmission(status string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ContactSubmissionsTotal,
			1,
			map[string]string{"status": status},
		)
	}
}

// RecordAnalyticsEvent counts an analytics event by status
// (accepted, invalid, dropped)
func RecordAnalyticsEvent(status string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			AnalyticsEventsTotal,
			1,
			map[string]string{"status": status},
		)
	}
}
