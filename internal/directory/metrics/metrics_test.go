package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_CountsByType(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.RecordCacheHit("item")
	m.RecordCacheHit("item")
	m.RecordCacheMiss("party")
	m.IncrementInvalidations("party")
	m.ObserveLookupDuration("item", 0.001)

	assert.InDelta(t, 2, testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("item")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CacheMissesTotal.WithLabelValues("party")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CacheInvalidationsTotal.WithLabelValues("party")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.CacheLookupDurationSeconds))
}

func TestCacheHitRate(t *testing.T) {
	assert.InDelta(t, 0, CacheHitRate(0, 0), 0)
	assert.InDelta(t, 0.75, CacheHitRate(3, 1), 0.0001)
}
