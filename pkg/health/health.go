// Package health serves liveness and readiness probes. Registered checks run
// on a background ticker; probe endpoints only read the last recorded result,
// so a slow dependency can never stall the kubelet.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc probes one dependency. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// Streak thresholds: a probe flips to unhealthy only after consecutive
// failures, and back after consecutive successes, so one lost ping does not
// bounce the pod out of the endpoint set.
const (
	failAfter    = 3
	recoverAfter = 1
)

// probe is one registered check plus its last observed state. The streak
// counters are touched only by the single loop goroutine; state and err are
// shared with the HTTP endpoints under mu.
type probe struct {
	name    string
	timeout time.Duration
	check   CheckFunc

	fails, oks int

	mu      sync.Mutex
	healthy bool
	err     error
}

func newProbe(name string, timeout time.Duration, check CheckFunc) *probe {
	// Healthy until observed otherwise.
	return &probe{name: name, timeout: timeout, check: check, healthy: true}
}

func (p *probe) observe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.check(ctx)

	if err != nil {
		p.oks, p.fails = 0, p.fails+1
	} else {
		p.fails, p.oks = 0, p.oks+1
	}

	p.mu.Lock()
	p.err = err
	if p.fails >= failAfter {
		p.healthy = false
	}
	if p.oks >= recoverAfter {
		p.healthy = true
	}
	p.mu.Unlock()
}

func (p *probe) status() (healthy bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.healthy, p.err
}

func (p *probe) loop(ctx context.Context, interval time.Duration) {
	p.observe(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.observe(ctx)
		}
	}
}

// Health holds the registered probes and the manual ready flag.
type Health struct {
	ready atomic.Bool

	mu        sync.Mutex
	liveness  []*probe
	readiness []*probe
	cancel    context.CancelFunc
}

// New returns a Health in the not-ready state. Call SetReady(true) once
// startup completes.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a process-level check (goroutine leaks, GC
// pressure). A failing liveness probe asks the orchestrator to restart the
// pod, so only register checks whose failure a restart can actually fix.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newProbe(name, timeout, check))
}

// AddReadinessCheck registers a dependency check (database, downstream
// service). A failing readiness probe only takes the pod out of rotation.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newProbe(name, timeout, check))
}

// Start launches one loop goroutine per registered probe, each firing at the
// given interval. Register all checks before calling Start.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	probes := append(append([]*probe(nil), h.liveness...), h.readiness...)
	h.mu.Unlock()

	for _, p := range probes {
		go p.loop(ctx, interval)
	}
}

// Stop cancels the probe loops. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness gate. It is set to true after startup
// and back to false at the beginning of graceful shutdown to drain traffic.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the manual gate is open and every readiness probe
// is passing.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	h.mu.Lock()
	probes := h.readiness
	h.mu.Unlock()

	for _, p := range probes {
		if ok, _ := p.status(); !ok {
			return false
		}
	}
	return true
}

type probeResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves the liveness probe: 200 while every liveness check
// holds, 503 with the failing checks otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	probes := h.liveness
	h.mu.Unlock()
	writeProbe(w, failures(probes))
}

// ReadyEndpoint serves the readiness probe. It additionally requires the
// manual gate set by SetReady.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	probes := h.readiness
	h.mu.Unlock()

	fails := failures(probes)
	if !h.ready.Load() {
		fails["_readiness"] = "service is not ready"
	}
	writeProbe(w, fails)
}

func failures(probes []*probe) map[string]string {
	fails := make(map[string]string)
	for _, p := range probes {
		ok, err := p.status()
		if ok {
			continue
		}
		if err != nil {
			fails[p.name] = err.Error()
		} else {
			fails[p.name] = "check is unhealthy"
		}
	}
	return fails
}

func writeProbe(w http.ResponseWriter, fails map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	resp := probeResponse{Status: "ok"}
	code := http.StatusOK
	if len(fails) > 0 {
		resp = probeResponse{Status: "unhealthy", Checks: fails}
		code = http.StatusServiceUnavailable
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
