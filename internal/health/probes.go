package health

import (
	"context"
	"sync/atomic"
	"time"
)

// Probes answers liveness, readiness and startup questions.
type Probes struct {
	manager   *Manager
	version   string
	startTime time.Time

	initialized atomic.Bool
	inShutdown  atomic.Bool
}

// NewProbes wraps manager. A nil manager runs no dependency checks.
func NewProbes(version string, manager *Manager) *Probes {
	if manager == nil {
		manager = NewManager()
	}
	return &Probes{
		manager:   manager,
		version:   version,
		startTime: time.Now(),
	}
}

// MarkInitialized lets the startup probe pass. The console calls it once the
// session controller has booted.
func (p *Probes) MarkInitialized() { p.initialized.Store(true) }

// MarkShutdown fails readiness from now on.
func (p *Probes) MarkShutdown() { p.inShutdown.Store(true) }

func (p *Probes) IsInitialized() bool  { return p.initialized.Load() }
func (p *Probes) IsShuttingDown() bool { return p.inShutdown.Load() }

// ProbeResult is the JSON body of every probe endpoint.
type ProbeResult struct {
	Status    Status             `json:"status"`
	Version   string             `json:"version,omitempty"`
	Uptime    string             `json:"uptime,omitempty"`
	Checks    map[string]*Result `json:"checks,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

func (p *Probes) result(status Status, checks map[string]*Result) *ProbeResult {
	return &ProbeResult{
		Status:    status,
		Version:   p.version,
		Uptime:    time.Since(p.startTime).Round(time.Second).String(),
		Checks:    checks,
		Timestamp: time.Now(),
	}
}

// Liveness never runs dependency checks. It reports degraded while shutting down.
func (p *Probes) Liveness(context.Context) *ProbeResult {
	if p.IsShuttingDown() {
		return p.result(StatusDegraded, nil)
	}
	return p.result(StatusHealthy, nil)
}

// Readiness aggregates every registered checker.
func (p *Probes) Readiness(ctx context.Context) *ProbeResult {
	if p.IsShuttingDown() {
		return p.result(StatusUnhealthy, nil)
	}
	checks := p.manager.Check(ctx)
	return p.result(Worst(checks), checks)
}

// Startup passes once MarkInitialized was called.
func (p *Probes) Startup(context.Context) *ProbeResult {
	if p.IsInitialized() {
		return p.result(StatusHealthy, nil)
	}
	return p.result(StatusUnhealthy, nil)
}
