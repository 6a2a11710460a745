// Package status generates the mocked system status shown on the marketing
// site's live dashboard widget.
package status

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Snapshot is one generated status reading.
type Snapshot struct {
	Status            string    `json:"status"`
	UptimeSeconds     int64     `json:"uptime_seconds"`
	CPUPercent        float64   `json:"cpu_percent"`
	MemoryPercent     float64   `json:"memory_percent"`
	RequestsPerMinute int       `json:"requests_per_minute"`
	ResponseTimeMS    float64   `json:"response_time_ms"`
	Services          []Service `json:"services"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// Service is the state of one advertised component.
type Service struct {
	Name      string  `json:"name"`
	Status    string  `json:"status"`
	LatencyMS float64 `json:"latency_ms"`
}

// Overall and per-service states.
const (
	StatusOperational = "operational"
	StatusDegraded    = "degraded"
)

type walk struct {
	value, min, max, step float64
}

func (w *walk) next(r *rand.Rand) float64 {
	w.value += (r.Float64()*2 - 1) * w.step
	w.value = math.Max(w.min, math.Min(w.max, w.value))
	return w.value
}

// Generator produces snapshots whose metrics drift within fixed bounds from
// one call to the next.
type Generator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	started time.Time
	clock   func() time.Time

	cpu      walk
	memory   walk
	rpm      walk
	response walk
	services []string
}

// NewGenerator returns a generator. A nil rng seeds from the runtime; a nil
// clock uses time.Now.
func NewGenerator(rng *rand.Rand, clock func() time.Time) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if clock == nil {
		clock = time.Now
	}
	return &Generator{
		rng:      rng,
		started:  clock(),
		clock:    clock,
		cpu:      walk{value: 35, min: 5, max: 95, step: 6},
		memory:   walk{value: 55, min: 20, max: 90, step: 3},
		rpm:      walk{value: 1200, min: 200, max: 4000, step: 150},
		response: walk{value: 120, min: 40, max: 900, step: 25},
		services: []string{"web", "api", "database", "cdn"},
	}
}

// Next advances every metric one step and returns the reading.
func (g *Generator) Next() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	snap := Snapshot{
		Status:            StatusOperational,
		UptimeSeconds:     int64(now.Sub(g.started) / time.Second),
		CPUPercent:        round1(g.cpu.next(g.rng)),
		MemoryPercent:     round1(g.memory.next(g.rng)),
		RequestsPerMinute: int(g.rpm.next(g.rng)),
		ResponseTimeMS:    round1(g.response.next(g.rng)),
		GeneratedAt:       now.UTC(),
	}

	for _, name := range g.services {
		latency := round1(snap.ResponseTimeMS * (0.2 + g.rng.Float64()*0.6))
		state := StatusOperational
		if latency > 400 {
			state = StatusDegraded
		}
		snap.Services = append(snap.Services, Service{Name: name, Status: state, LatencyMS: latency})
	}

	if snap.CPUPercent > 90 || snap.ResponseTimeMS > 750 {
		snap.Status = StatusDegraded
	}
	for _, svc := range snap.Services {
		if svc.Status != StatusOperational {
			snap.Status = StatusDegraded
		}
	}

	return snap
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
