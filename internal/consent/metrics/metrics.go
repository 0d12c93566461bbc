package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for consent operations.
type Metrics struct {
	AccessAttempts *prometheus.CounterVec
	Transitions    *prometheus.CounterVec
	Decisions      *prometheus.CounterVec
	Conflicts      *prometheus.CounterVec
	Reconciled     *prometheus.CounterVec

	// Performance metrics
	OperationLatency *prometheus.HistogramVec
	LockWait         prometheus.Histogram
	BlobFetchLatency *prometheus.HistogramVec
	BlobFetchErrors  *prometheus.CounterVec
}

// New registers consent collectors on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers consent collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AccessAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consentbroker_access_attempts_total",
			Help: "Access attempts by delivery mode and verdict",
		}, []string{"delivery", "verdict"}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consentbroker_transitions_total",
			Help: "Audited consent transitions by action and resulting status",
		}, []string{"action", "status"}),
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consentbroker_owner_decisions_total",
			Help: "Owner decisions by decision kind",
		}, []string{"decision"}),
		Conflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consentbroker_conflicts_total",
			Help: "Units of work that lost an optimistic concurrency race, by operation",
		}, []string{"operation"}),
		Reconciled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consentbroker_reconciled_records_total",
			Help: "Consent records whose active flag was changed by reconciliation",
		}, []string{"active"}),

		OperationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "consentbroker_operation_latency_seconds",
			Help:    "Latency of consent service operations in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"operation"}),
		LockWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "consentbroker_pair_lock_wait_seconds",
			Help:    "Time spent waiting for the in-process pair lock",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		BlobFetchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "consentbroker_blob_fetch_seconds",
			Help:    "Latency of indirect payload fetches by reference scheme",
			Buckets: prometheus.DefBuckets,
		}, []string{"scheme"}),
		BlobFetchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consentbroker_blob_fetch_errors_total",
			Help: "Failed indirect payload fetches by reference scheme",
		}, []string{"scheme"}),
	}
}

func (m *Metrics) IncrementAccessAttempt(delivery, verdict string) {
	m.AccessAttempts.WithLabelValues(delivery, verdict).Inc()
}

func (m *Metrics) IncrementTransition(action, status string) {
	m.Transitions.WithLabelValues(action, status).Inc()
}

func (m *Metrics) IncrementDecision(decision string) {
	m.Decisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) IncrementConflict(operation string) {
	m.Conflicts.WithLabelValues(operation).Inc()
}

func (m *Metrics) AddReconciled(active bool, n int) {
	label := "false"
	if active {
		label = "true"
	}
	m.Reconciled.WithLabelValues(label).Add(float64(n))
}

func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	m.OperationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveLockWait(d time.Duration) {
	m.LockWait.Observe(d.Seconds())
}

func (m *Metrics) ObserveBlobFetch(scheme string, d time.Duration, err error) {
	m.BlobFetchLatency.WithLabelValues(scheme).Observe(d.Seconds())
	if err != nil {
		m.BlobFetchErrors.WithLabelValues(scheme).Inc()
	}
}
