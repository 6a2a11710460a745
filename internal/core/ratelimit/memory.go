package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local Limiter. State resets on restart and is not
// shared between replicas; use StoreLimiter for that.
type Memory struct {
	Clock func() time.Time

	mu      sync.Mutex
	records map[string]*Record
}

// NewMemory creates an empty in-memory limiter.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]*Record)}
}

// Allow implements Limiter. Records are updated in place.
func (m *Memory) Allow(ctx context.Context, key string, policy Policy) (Decision, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.records == nil {
		m.records = make(map[string]*Record)
	}

	current := m.records[key]
	next, decision := Apply(current, now, policy)
	if next != nil {
		if current != nil {
			*current = *next
		} else {
			m.records[key] = next
		}
	}
	return decision, nil
}

// Get returns a copy of the record for key.
func (m *Memory) Get(key string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Len returns the number of tracked keys, stale ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Prune implements Pruner.
func (m *Memory) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, rec := range m.records {
		if !rec.WindowStart.After(cutoff) {
			delete(m.records, key)
			removed++
		}
	}
	return removed, nil
}

// Reset drops all records.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]*Record)
}

func (m *Memory) now() time.Time {
	if m != nil && m.Clock != nil {
		return m.Clock()
	}
	return defaultNow()
}
