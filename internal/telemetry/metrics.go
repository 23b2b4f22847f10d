// Package telemetry provides Prometheus instrumentation for the
// orchestration core.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Component labels
const (
	ComponentCredential = "credential"
	ComponentLink       = "link"
	ComponentProfile    = "profile"
	ComponentSync       = "sync"
	ComponentRanking    = "ranking_poll"
	ComponentParsing    = "parsing_poll"
)

// Attempt results
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the collectors shared by the sync orchestrator and the
// polling controllers. A nil *Metrics is valid and records nothing.
type Metrics struct {
	attempts *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors on reg.
// If reg is nil, it returns nil (no-op metrics).
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careerlink_attempts_total",
			Help: "Attempts made by retrying and polling components",
		}, []string{"component", "result"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careerlink_outcomes_total",
			Help: "Terminal outcomes of sync runs, phases and polling sessions",
		}, []string{"component", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "careerlink_phase_duration_seconds",
			Help:    "Wall time from start to terminal outcome",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"component"}),
	}

	for _, c := range []prometheus.Collector{m.attempts, m.outcomes, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RecordAttempt counts a single attempt by component.
func (m *Metrics) RecordAttempt(component, result string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(component, result).Inc()
}

// RecordOutcome counts a terminal outcome and observes how long it took.
func (m *Metrics) RecordOutcome(component, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(component, outcome).Inc()
	m.duration.WithLabelValues(component).Observe(elapsed.Seconds())
}
