package health

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultCheckTimeout bounds each checker when the manager has no timeout set.
const DefaultCheckTimeout = 5 * time.Second

// Manager fans the registered checkers out concurrently, each bounded by its
// own timeout. Checkers are fixed at construction.
type Manager struct {
	checkers []Checker
	timeout  time.Duration
}

// NewManager creates a manager over checkers.
func NewManager(checkers ...Checker) *Manager {
	return &Manager{checkers: checkers, timeout: DefaultCheckTimeout}
}

// WithTimeout sets the per-check timeout.
func (m *Manager) WithTimeout(timeout time.Duration) *Manager {
	m.timeout = timeout
	return m
}

// Check returns one result per checker name. A checker that returns nil is
// reported unhealthy.
func (m *Manager) Check(ctx context.Context) map[string]*Result {
	out := make([]*Result, len(m.checkers))

	var g errgroup.Group
	for i, c := range m.checkers {
		g.Go(func() error {
			out[i] = m.run(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	results := make(map[string]*Result, len(out))
	for i, c := range m.checkers {
		results[c.Name()] = out[i]
	}
	return results
}

func (m *Manager) run(ctx context.Context, c Checker) *Result {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	r := c.Check(ctx)
	if r == nil {
		r = Unhealthy("check returned no result")
	}
	if r.Latency == 0 {
		r.Latency = time.Since(start)
	}
	return r
}
