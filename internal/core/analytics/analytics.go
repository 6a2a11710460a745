// Package analytics accepts named client events and hands them to a
// fire-and-forget sink.
package analytics

import (
	"context"
	"errors"
	"strings"

	"github.com/namelens/edgegate/internal/metrics"
	"github.com/namelens/edgegate/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// MaxEventNameLength bounds event names.
const MaxEventNameLength = 128

// Event is a single named event with free-form properties.
type Event struct {
	Name       string         `json:"event"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Validate rejects empty or oversized event names.
func (e Event) Validate() error {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return errors.New("event name is required")
	}
	if len(name) > MaxEventNameLength {
		return errors.New("event name is too long")
	}
	return nil
}

// Sink consumes events. Track never reports failure to the caller.
type Sink interface {
	Track(ctx context.Context, event Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event Event)

// Track calls f.
func (f SinkFunc) Track(ctx context.Context, event Event) {
	f(ctx, event)
}

// LogSink writes each event as a structured log line.
type LogSink struct{}

// Track implements Sink.
func (LogSink) Track(_ context.Context, event Event) {
	if observability.ServerLogger == nil {
		return
	}
	observability.ServerLogger.Info("Analytics event",
		zap.String("event", event.Name),
		zap.Any("properties", event.Properties),
	)
}

// Throttled forwards events to Next while the token bucket has capacity and
// drops the rest.
type Throttled struct {
	Next    Sink
	limiter *rate.Limiter
}

// NewThrottled allows eventsPerSecond on average with the given burst. A
// non-positive rate disables throttling.
func NewThrottled(next Sink, eventsPerSecond float64, burst int) *Throttled {
	limit := rate.Inf
	if eventsPerSecond > 0 {
		limit = rate.Limit(eventsPerSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Throttled{Next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Track implements Sink.
func (t *Throttled) Track(ctx context.Context, event Event) {
	if t == nil || t.Next == nil {
		return
	}
	if !t.limiter.Allow() {
		metrics.RecordAnalyticsEvent("dropped")
		return
	}
	t.Next.Track(ctx, event)
}
