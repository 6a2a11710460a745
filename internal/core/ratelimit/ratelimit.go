// Package ratelimit implements fixed-window request counting keyed by client
// identity. Backends share the window transition in Apply so an in-process map
// and an external store behave identically.
package ratelimit

import (
	"context"
	"time"
)

// Record is the fixed-window state for a single client key.
type Record struct {
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
}

// Policy describes a fixed window.
//
// Strict selects the comparison used once a window is open. The default
// (false) rejects only when the stored count is greater than Limit, which
// admits Limit+1 requests per window. Strict rejects at count >= Limit.
type Policy struct {
	Limit  int
	Window time.Duration
	Strict bool
}

// DefaultPolicy is the contact form policy: 10 per hour, lenient comparison.
var DefaultPolicy = Policy{Limit: 10, Window: time.Hour}

// Decision is the result of a single Allow call.
type Decision struct {
	Allowed     bool
	Count       int
	WindowStart time.Time
	ResetAt     time.Time
}

// RetryAfter returns how long a rejected caller should wait before the window
// resets. It is zero for allowed decisions.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed || d.ResetAt.IsZero() {
		return 0
	}
	wait := d.ResetAt.Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// Limiter checks and increments the counter for key in one step.
type Limiter interface {
	Allow(ctx context.Context, key string, policy Policy) (Decision, error)
}

// Pruner evicts records whose window started at or before cutoff.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

// Expired reports whether rec no longer describes an open window at now.
func (p Policy) Expired(rec *Record, now time.Time) bool {
	if rec == nil {
		return true
	}
	return now.Sub(rec.WindowStart) >= p.Window
}

func (p Policy) exceeded(count int) bool {
	if p.Strict {
		return count >= p.Limit
	}
	return count > p.Limit
}

// Apply advances rec for a request observed at now. It returns the record to
// persist, or nil when the stored record must stay untouched (rejections do
// not count).
func Apply(rec *Record, now time.Time, p Policy) (*Record, Decision) {
	if p.Expired(rec, now) {
		next := &Record{Count: 1, WindowStart: now}
		return next, Decision{
			Allowed:     true,
			Count:       1,
			WindowStart: now,
			ResetAt:     now.Add(p.Window),
		}
	}

	resetAt := rec.WindowStart.Add(p.Window)
	if p.exceeded(rec.Count) {
		return nil, Decision{
			Allowed:     false,
			Count:       rec.Count,
			WindowStart: rec.WindowStart,
			ResetAt:     resetAt,
		}
	}

	next := &Record{Count: rec.Count + 1, WindowStart: rec.WindowStart}
	return next, Decision{
		Allowed:     true,
		Count:       next.Count,
		WindowStart: next.WindowStart,
		ResetAt:     resetAt,
	}
}

func defaultNow() time.Time {
	return time.Now().UTC()
}
