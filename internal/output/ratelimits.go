package output

import (
	"fmt"
	"time"

	"github.com/namelens/edgegate/internal/core/ratelimit"
	"github.com/namelens/edgegate/internal/core/store"
)

// RateLimitRow is a stored window annotated against a policy.
type RateLimitRow struct {
	ClientKey   string    `json:"client_key"`
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
	ResetAt     time.Time `json:"reset_at"`
	State       string    `json:"state"`
}

// Window states.
const (
	StateOpen    = "open"
	StateBlocked = "blocked"
	StateExpired = "expired"
)

// NewRateLimitRows classifies entries under policy at now.
func NewRateLimitRows(entries []store.RateLimitEntry, policy ratelimit.Policy, now time.Time) []RateLimitRow {
	rows := make([]RateLimitRow, 0, len(entries))
	for _, entry := range entries {
		rec := entry.Record
		state := StateOpen
		if policy.Expired(&rec, now) {
			state = StateExpired
		} else if _, d := ratelimit.Apply(&rec, now, policy); !d.Allowed {
			// Apply never mutates rec; this only asks whether the next request passes.
			state = StateBlocked
		}
		rows = append(rows, RateLimitRow{
			ClientKey:   entry.ClientKey,
			Count:       rec.Count,
			WindowStart: rec.WindowStart,
			ResetAt:     rec.WindowStart.Add(policy.Window),
			State:       state,
		})
	}
	return rows
}

// FormatRateLimits renders stored rate limit windows.
func FormatRateLimits(format Format, rows []RateLimitRow) (string, error) {
	if format == FormatJSON {
		return renderJSON(rows)
	}

	s := section{
		title:  "Rate Limits",
		header: []string{"Client", "Count", "Window start", "Resets at", "State"},
		empty:  "(no stored rate limit state)",
	}
	blocked := 0
	for _, r := range rows {
		if r.State == StateBlocked {
			blocked++
		}
		s.rows = append(s.rows, []string{
			r.ClientKey,
			fmt.Sprintf("%d", r.Count),
			r.WindowStart.UTC().Format(time.RFC3339),
			r.ResetAt.UTC().Format(time.RFC3339),
			r.State,
		})
	}
	if len(rows) > 0 {
		s.footer = fmt.Sprintf("%d/%d blocked", blocked, len(rows))
	}
	return renderSections(format, s), nil
}
