// Package health implements liveness and readiness probes for the HTTP
// server. All probes run from one background scheduler goroutine; probe
// results are flap-damped with consecutive-streak thresholds so a single
// blip never flips the reported state.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc probes one component. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// Streak thresholds: a probe goes down after failStreak consecutive
// failures and comes back after passStreak consecutive successes.
const (
	failStreak = 3
	passStreak = 1
)

// probe holds one registered check and its damped state. The scheduler
// goroutine is the only writer; HTTP handlers read under the mutex.
type probe struct {
	name    string
	timeout time.Duration
	check   CheckFunc

	mu      sync.Mutex
	down    bool
	lastErr error
	fails   int
	passes  int
}

func (p *probe) execute(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	p.observe(p.check(ctx))
}

func (p *probe) observe(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastErr = err
	if err != nil {
		p.passes = 0
		if p.fails++; p.fails >= failStreak {
			p.down = true
		}
		return
	}
	p.fails = 0
	if p.passes++; p.passes >= passStreak {
		p.down = false
	}
}

// status returns the damped state and the error behind it, if any.
func (p *probe) status() (down bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.down, p.lastErr
}

// Health runs registered probes and serves /livez and /readyz. Readiness
// combines the probes with a manual gate: SetReady(true) after startup,
// SetReady(false) to drain before shutdown.
type Health struct {
	ready atomic.Bool

	mu        sync.Mutex
	liveness  []*probe
	readiness []*probe
	stop      context.CancelFunc
}

// New creates a Health with no probes, in the not-ready state.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a probe for /livez. Liveness failures mean the
// process itself is broken, e.g. a goroutine leak.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newProbe(name, timeout, check))
}

// AddReadinessCheck registers a probe for /readyz. Readiness failures mean
// the service cannot serve traffic right now, e.g. the database is away.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newProbe(name, timeout, check))
}

func newProbe(name string, timeout time.Duration, check CheckFunc) *probe {
	// New probes start up: a dependency that is actually down gets caught by
	// the first scheduler pass, and starting down would fail /readyz during
	// the window before the first pass completes.
	return &probe{name: name, timeout: timeout, check: check}
}

// Start launches the probe scheduler. Every interval it runs each probe once,
// sequentially. Call Stop or cancel ctx to halt it.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.stop = cancel
	probes := make([]*probe, 0, len(h.liveness)+len(h.readiness))
	probes = append(probes, h.liveness...)
	probes = append(probes, h.readiness...)
	h.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for _, p := range probes {
			p.execute(ctx)
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, p := range probes {
					p.execute(ctx)
				}
			}
		}
	}()
}

// Stop halts the probe scheduler. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		h.stop()
		h.stop = nil
	}
}

// SetReady sets the manual readiness gate.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the gate is open and every readiness probe is up.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	return len(h.failures(h.snapshot(&h.readiness))) == 0
}

func (h *Health) snapshot(set *[]*probe) []*probe {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*probe, len(*set))
	copy(out, *set)
	return out
}

// failures maps every down probe to a description of why.
func (h *Health) failures(probes []*probe) map[string]string {
	var out map[string]string
	for _, p := range probes {
		down, err := p.status()
		if !down {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		if err != nil {
			out[p.name] = err.Error()
		} else {
			out[p.name] = "probe is down"
		}
	}
	return out
}

type probeReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 while every liveness probe is up, 503 with
// the failing probes otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, h.failures(h.snapshot(&h.liveness)))
}

// ReadyEndpoint serves /readyz: 200 while the manual gate is open and every
// readiness probe is up.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(h.snapshot(&h.readiness))
	if !h.ready.Load() {
		if failures == nil {
			failures = make(map[string]string)
		}
		failures["_readiness"] = "service is not ready"
	}
	writeReport(w, failures)
}

func writeReport(w http.ResponseWriter, failures map[string]string) {
	report := probeReport{Status: "ok"}
	code := http.StatusOK
	if len(failures) > 0 {
		report.Status = "unhealthy"
		report.Checks = failures
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}
