package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/errors"

	apperrors "github.com/namelens/edgegate/internal/errors"
	"github.com/namelens/edgegate/internal/metrics"
)

// Check results
const (
	checkHealthy   = "healthy"
	checkDegraded  = "degraded"
	checkUnhealthy = "unhealthy"
	checkTimeout   = "timeout"
)

// HealthResponse represents the aggregate health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProbeResponse represents individual probe response
type ProbeResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthChecker defines interface for health checkable components
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

type registeredChecker struct {
	checker HealthChecker
	// degradable failures report "degraded" instead of failing the probe,
	// for dependencies the edge can run without (a fail-open rate limiter).
	degradable bool
}

// HealthManager runs registered checkers for the health endpoints.
type HealthManager struct {
	mu       sync.RWMutex
	checkers map[string]registeredChecker
	version  string
}

func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checkers: make(map[string]registeredChecker),
		version:  version,
	}
}

// RegisterChecker registers a checker whose failure makes the service unhealthy.
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.register(name, checker, false)
}

// RegisterDegradableChecker registers a checker whose failure only degrades.
func (hm *HealthManager) RegisterDegradableChecker(name string, checker HealthChecker) {
	hm.register(name, checker, true)
}

func (hm *HealthManager) register(name string, checker HealthChecker, degradable bool) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = registeredChecker{checker: checker, degradable: degradable}
}

func (hm *HealthManager) runHealthChecks(ctx context.Context) map[string]string {
	hm.mu.RLock()
	names := make([]string, 0, len(hm.checkers))
	for name := range hm.checkers {
		names = append(names, name)
	}
	hm.mu.RUnlock()
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			checks[name] = checkTimeout
			continue
		}

		hm.mu.RLock()
		rc := hm.checkers[name]
		hm.mu.RUnlock()

		started := time.Now()
		err := rc.checker.CheckHealth(ctx)
		metrics.RecordHealthCheck(name, err == nil, time.Since(started))

		switch {
		case err == nil:
			checks[name] = checkHealthy
		case ctx.Err() != nil:
			checks[name] = checkTimeout
		case rc.degradable:
			checks[name] = checkDegraded
		default:
			checks[name] = checkUnhealthy
		}
	}
	return checks
}

func (hm *HealthManager) determineOverallStatus(checks map[string]string) string {
	overall := checkHealthy
	for _, status := range checks {
		switch status {
		case checkUnhealthy:
			return checkUnhealthy
		case checkDegraded, checkTimeout:
			overall = checkDegraded
		}
	}
	return overall
}

// probe describes one health endpoint.
type probe struct {
	name    string
	timeout time.Duration
	// runChecks is false for liveness: answering at all proves the process
	// is alive, and a slow store must not get the pod restarted.
	runChecks bool
}

var (
	aggregateProbe = probe{name: "aggregate", timeout: 5 * time.Second, runChecks: true}
	liveProbe      = probe{name: "live", timeout: 2 * time.Second}
	readyProbe     = probe{name: "ready", timeout: 5 * time.Second, runChecks: true}
	startupProbe   = probe{name: "startup", timeout: 3 * time.Second, runChecks: true}
)

func (hm *HealthManager) evaluate(ctx context.Context, p probe) (string, map[string]string) {
	if !p.runChecks {
		return checkHealthy, nil
	}
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	checks := hm.runHealthChecks(checkCtx)
	return hm.determineOverallStatus(checks), checks
}

func (hm *HealthManager) serveProbe(w http.ResponseWriter, r *http.Request, p probe) {
	status, checks := hm.evaluate(r.Context(), p)
	if status == checkUnhealthy {
		envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", p.name+" probe failed")
		apperrors.RespondWithError(w, r, enrichHealthEnvelope(envelope, p.name, status, checks))
		return
	}

	var body any = ProbeResponse{Status: status, Timestamp: time.Now().UTC()}
	if p == aggregateProbe {
		body = HealthResponse{
			Status:    status,
			Version:   hm.version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    checks,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}

// HealthHandler reports every check with the build version.
func (hm *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, aggregateProbe)
}

func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, liveProbe)
}

func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, readyProbe)
}

func (hm *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, startupProbe)
}

func enrichHealthEnvelope(envelope *errors.ErrorEnvelope, probe, status string, checks map[string]string) *errors.ErrorEnvelope {
	details := map[string]interface{}{"status": status, "probe": probe}
	if len(checks) > 0 {
		details["checks"] = checks
	}
	envelope = envelope.WithDetails(details)

	var failing []string
	for name, result := range checks {
		if result != checkHealthy {
			failing = append(failing, name)
		}
	}
	sort.Strings(failing)

	contextData := map[string]interface{}{"status": status, "probe": probe}
	if len(failing) > 0 {
		contextData["unhealthy_checks"] = failing
	}
	envelope, _ = envelope.WithContext(contextData)
	return envelope
}

var globalHealthManager *HealthManager

// InitHealthManager installs the manager used by the package-level handlers.
func InitHealthManager(version string) {
	globalHealthManager = NewHealthManager(version)
}

func GetHealthManager() *HealthManager {
	return globalHealthManager
}

// globalProbe routes to the global manager, or answers 503 before serve has
// installed one.
func globalProbe(p probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hm := globalHealthManager; hm != nil {
			hm.serveProbe(w, r, p)
			return
		}
		envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "health manager not initialized")
		apperrors.RespondWithError(w, r, enrichHealthEnvelope(envelope, p.name, "unknown", nil))
	}
}

var (
	HealthHandler    = globalProbe(aggregateProbe)
	LivenessHandler  = globalProbe(liveProbe)
	ReadinessHandler = globalProbe(readyProbe)
	StartupHandler   = globalProbe(startupProbe)
)
