package health

import (
	"context"
	"net/http"

	"github.com/felixgeelhaar/agriconnect/internal/session"
)

// Pinger is the part of the API client the backend check needs.
type Pinger interface {
	Ping(ctx context.Context) (int, error)
}

// BackendChecker reports whether the AgriConnect API answers.
type BackendChecker struct {
	api     Pinger
	baseURL string
}

// NewBackendChecker creates a checker against api.
func NewBackendChecker(api Pinger, baseURL string) *BackendChecker {
	return &BackendChecker{api: api, baseURL: baseURL}
}

func (c *BackendChecker) Name() string { return "backend-api" }

// Check is unhealthy on transport failure and degraded on 5xx. Any other
// status, including 404 on the API root, means the backend is up.
func (c *BackendChecker) Check(ctx context.Context) *Result {
	status, err := c.api.Ping(ctx)
	if err != nil {
		return Unhealthy("backend unreachable").
			WithDetail("url", c.baseURL).
			WithDetail("error", err.Error())
	}
	if status >= http.StatusInternalServerError {
		return Degraded("backend returned a server error").
			WithDetail("url", c.baseURL).
			WithDetail("status", status)
	}
	return Healthy("backend reachable").
		WithDetail("url", c.baseURL).
		WithDetail("status", status)
}

// SessionSource exposes the session being served.
type SessionSource interface {
	Snapshot() session.Session
}

// SessionChecker is degraded while the controller is still booting.
type SessionChecker struct {
	src SessionSource
}

// NewSessionChecker creates a checker over src.
func NewSessionChecker(src SessionSource) *SessionChecker {
	return &SessionChecker{src: src}
}

func (c *SessionChecker) Name() string { return "session" }

func (c *SessionChecker) Check(context.Context) *Result {
	s := c.src.Snapshot()
	if s.IsBooting() {
		return Degraded("session is booting").WithDetail("state", s.State.String())
	}
	r := Healthy("session settled").
		WithDetail("state", s.State.String()).
		WithDetail("confirming", s.Confirming)
	if s.IsAuthenticated() {
		r.WithDetail("role", string(s.Role))
	}
	return r
}
