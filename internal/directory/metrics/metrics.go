// Package metrics provides Prometheus metrics for the directory cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the directory cache collectors.
type Metrics struct {
	CacheHitsTotal   *prometheus.CounterVec // by record type (item, party)
	CacheMissesTotal *prometheus.CounterVec

	CacheLookupDurationSeconds *prometheus.HistogramVec

	CacheInvalidationsTotal *prometheus.CounterVec
}

// New registers the collectors on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CacheHitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consentbroker_directory_cache_hits_total",
			Help: "Total number of directory cache hits by record type",
		}, []string{"type"}),

		CacheMissesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consentbroker_directory_cache_misses_total",
			Help: "Total number of directory cache misses by record type",
		}, []string{"type"}),

		CacheLookupDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "consentbroker_directory_cache_lookup_duration_seconds",
			Help:    "Duration of directory cache lookups by record type",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05},
		}, []string{"type"}),

		CacheInvalidationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consentbroker_directory_cache_invalidations_total",
			Help: "Total number of directory cache entries dropped after a write",
		}, []string{"type"}),
	}
}

func (m *Metrics) RecordCacheHit(recordType string) {
	m.CacheHitsTotal.WithLabelValues(recordType).Inc()
}

func (m *Metrics) RecordCacheMiss(recordType string) {
	m.CacheMissesTotal.WithLabelValues(recordType).Inc()
}

func (m *Metrics) ObserveLookupDuration(recordType string, durationSeconds float64) {
	m.CacheLookupDurationSeconds.WithLabelValues(recordType).Observe(durationSeconds)
}

func (m *Metrics) IncrementInvalidations(recordType string) {
	m.CacheInvalidationsTotal.WithLabelValues(recordType).Inc()
}

// CacheHitRate is hits over total lookups; zero when nothing was looked up.
func CacheHitRate(hits, misses float64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return hits / total
}
