package ratelimit

import (
	"context"
	"time"
)

// Sweeper periodically evicts records whose window has elapsed, bounding the
// growth of a Limiter that would otherwise keep every client key forever.
type Sweeper struct {
	Target   Pruner
	Interval time.Duration
	Window   time.Duration
	Clock    func() time.Time

	// OnSweep, when set, observes every pass.
	OnSweep func(removed int, err error)
}

// SweepOnce runs a single eviction pass.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	if s == nil || s.Target == nil {
		return 0, nil
	}
	cutoff := s.now().Add(-s.Window)
	removed, err := s.Target.Prune(ctx, cutoff)
	if s.OnSweep != nil {
		s.OnSweep(removed, err)
	}
	return removed, err
}

// Run sweeps every Interval until ctx is done. A non-positive Interval
// disables sweeping and Run simply waits for ctx.
func (s *Sweeper) Run(ctx context.Context) error {
	if s == nil || s.Target == nil || s.Interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, _ = s.SweepOnce(ctx)
		}
	}
}

func (s *Sweeper) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return defaultNow()
}
