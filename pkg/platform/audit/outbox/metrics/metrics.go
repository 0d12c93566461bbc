package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the outbox worker.
type Metrics struct {
	// Queue health metrics
	PendingDepth     prometheus.Gauge
	OldestPendingAge prometheus.Gauge

	// Processing metrics
	PublishedTotal  prometheus.Counter
	PublishFailures prometheus.Counter
	PublishDuration prometheus.Histogram
	BatchSize       prometheus.Histogram

	// Worker health metrics
	PollDuration prometheus.Histogram
}

// New creates a new Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the outbox metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PendingDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "consentbroker_outbox_pending_total",
			Help: "Current number of pending (unprocessed) outbox entries",
		}),
		OldestPendingAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "consentbroker_outbox_oldest_pending_seconds",
			Help: "Age in seconds of the oldest pending outbox entry",
		}),
		PublishedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "consentbroker_outbox_published_total",
			Help: "Total number of outbox entries successfully published downstream",
		}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "consentbroker_outbox_publish_failures_total",
			Help: "Total number of outbox publish failures",
		}),
		PublishDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "consentbroker_outbox_publish_duration_seconds",
			Help:    "Time taken to publish an outbox entry",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "consentbroker_outbox_batch_size",
			Help:    "Number of entries processed per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
		PollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "consentbroker_outbox_poll_duration_seconds",
			Help:    "Time taken for each poll cycle",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// SetPendingDepth sets the current number of pending entries.
func (m *Metrics) SetPendingDepth(count int64) {
	m.PendingDepth.Set(float64(count))
}

// SetOldestPendingAge sets the age of the oldest pending entry in seconds.
func (m *Metrics) SetOldestPendingAge(ageSeconds float64) {
	m.OldestPendingAge.Set(ageSeconds)
}

// AddPublished counts entries whose publish committed.
func (m *Metrics) AddPublished(n int) {
	m.PublishedTotal.Add(float64(n))
}

// IncPublishFailures increments the publish failures counter.
func (m *Metrics) IncPublishFailures() {
	m.PublishFailures.Inc()
}

// ObservePublishDuration records the publish operation latency.
func (m *Metrics) ObservePublishDuration(durationSeconds float64) {
	m.PublishDuration.Observe(durationSeconds)
}

// ObserveBatchSize records the size of a processed batch.
func (m *Metrics) ObserveBatchSize(size int) {
	m.BatchSize.Observe(float64(size))
}

// ObservePollDuration records the poll cycle latency.
func (m *Metrics) ObservePollDuration(durationSeconds float64) {
	m.PollDuration.Observe(durationSeconds)
}

