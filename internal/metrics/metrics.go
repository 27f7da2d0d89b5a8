package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/felixgeelhaar/agriconnect/internal/session"
)

// Metrics holds all Prometheus metrics for AgriConnect
type Metrics struct {
	// Session metrics
	SessionTransitions *prometheus.CounterVec
	AuthAttempts       *prometheus.CounterVec
	BootConfirmations  *prometheus.CounterVec

	// Backend API metrics
	APIRequests        *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		SessionTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agriconnect_session_transitions_total",
				Help: "Total number of session state transitions",
			},
			[]string{"to"},
		),
		AuthAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agriconnect_auth_attempts_total",
				Help: "Total number of login and registration attempts",
			},
			[]string{"operation", "result"},
		),
		BootConfirmations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agriconnect_boot_confirmations_total",
				Help: "Outcomes of boot-time session confirmation",
			},
			[]string{"outcome"},
		),

		APIRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agriconnect_api_requests_total",
				Help: "Total number of backend API requests",
			},
			[]string{"method", "status"},
		),
		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agriconnect_api_request_duration_seconds",
				Help:    "Backend API request latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"method"},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agriconnect_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code"},
		),
	}
}

// ObserveTransition implements session.Observer.
func (m *Metrics) ObserveTransition(to session.State) {
	m.SessionTransitions.WithLabelValues(to.String()).Inc()
}

// ObserveAuthAttempt implements session.Observer.
func (m *Metrics) ObserveAuthAttempt(operation string, success bool) {
	m.AuthAttempts.WithLabelValues(operation, resultLabel(success)).Inc()
}

// ObserveBootConfirmation implements session.Observer.
func (m *Metrics) ObserveBootConfirmation(outcome string) {
	m.BootConfirmations.WithLabelValues(outcome).Inc()
}

// ObserveRequest implements platform.Observer. A zero status is recorded
// as "error".
func (m *Metrics) ObserveRequest(method, _ string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.APIRequests.WithLabelValues(method, label).Inc()
	m.APIRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// RecordError counts an error by its code. Empty codes are recorded as "unknown".
func (m *Metrics) RecordError(code string) {
	if code == "" {
		code = "unknown"
	}
	m.Errors.WithLabelValues(code).Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
