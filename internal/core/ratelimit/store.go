package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"
)

// StateStore persists records outside the process. UpdateRateLimit must run
// fn atomically with respect to other callers using the same key: fn receives
// the stored record (nil when absent) and returns the record to write, or nil
// to leave storage untouched.
type StateStore interface {
	UpdateRateLimit(ctx context.Context, key string, fn func(*Record) *Record) error
	PruneRateLimits(ctx context.Context, cutoff time.Time) (int64, error)
}

// StoreLimiter is a Limiter backed by a shared StateStore so several
// replicas enforce a single window per client.
type StoreLimiter struct {
	Store StateStore
	Clock func() time.Time
}

// Allow implements Limiter.
func (l *StoreLimiter) Allow(ctx context.Context, key string, policy Policy) (Decision, error) {
	if l == nil || l.Store == nil {
		return Decision{}, errors.New("rate limit store is not configured")
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return Decision{}, errors.New("rate limit key is required")
	}

	now := l.now()
	var decision Decision
	err := l.Store.UpdateRateLimit(ctx, key, func(current *Record) *Record {
		next, d := Apply(current, now, policy)
		decision = d
		return next
	})
	if err != nil {
		return Decision{}, err
	}
	return decision, nil
}

// Prune implements Pruner.
func (l *StoreLimiter) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	if l == nil || l.Store == nil {
		return 0, nil
	}
	removed, err := l.Store.PruneRateLimits(ctx, cutoff)
	return int(removed), err
}

func (l *StoreLimiter) now() time.Time {
	if l != nil && l.Clock != nil {
		return l.Clock()
	}
	return defaultNow()
}
