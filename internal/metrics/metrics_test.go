package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/felixgeelhaar/agriconnect/internal/platform"
	"github.com/felixgeelhaar/agriconnect/internal/session"
)

var (
	_ session.Observer  = (*Metrics)(nil)
	_ platform.Observer = (*Metrics)(nil)
)

func TestSessionObserver(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveTransition(session.Authenticated)
	m.ObserveTransition(session.Authenticated)
	m.ObserveTransition(session.Unauthenticated)
	m.ObserveAuthAttempt("login", true)
	m.ObserveAuthAttempt("login", false)
	m.ObserveBootConfirmation(session.OutcomeKept)

	if got := testutil.ToFloat64(m.SessionTransitions.WithLabelValues("authenticated")); got != 2 {
		t.Errorf("authenticated transitions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SessionTransitions.WithLabelValues("unauthenticated")); got != 1 {
		t.Errorf("unauthenticated transitions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.AuthAttempts.WithLabelValues("login", "failure")); got != 1 {
		t.Errorf("failed logins = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.BootConfirmations.WithLabelValues("kept")); got != 1 {
		t.Errorf("kept boots = %v, want 1", got)
	}
}

func TestRequestObserver(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveRequest(http.MethodGet, "/auth/profile", http.StatusOK, 20*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/auth/profile", 0, time.Second)

	if got := testutil.ToFloat64(m.APIRequests.WithLabelValues("GET", "200")); got != 1 {
		t.Errorf("200 requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.APIRequests.WithLabelValues("GET", "error")); got != 1 {
		t.Errorf("failed requests = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.APIRequestDuration); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
}

func TestRecordError(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordError("AUTH-001")
	m.RecordError("")

	if got := testutil.ToFloat64(m.Errors.WithLabelValues("AUTH-001")); got != 1 {
		t.Errorf("AUTH-001 = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Errors.WithLabelValues("unknown")); got != 1 {
		t.Errorf("unknown = %v, want 1", got)
	}
}

func TestHandlerFor(t *testing.T) {
	reg, m := NewRegistry()
	m.ObserveTransition(session.Unauthenticated)

	rec := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"agriconnect_session_transitions_total", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
