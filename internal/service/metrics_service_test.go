package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/filemgr/pkg/jobs"
)

type fixedQueue struct {
	name  string
	stats jobs.Stats
}

func (q fixedQueue) Name() string      { return q.name }
func (q fixedQueue) Stats() jobs.Stats { return q.stats }

func TestMetricsSnapshotAggregatesCounters(t *testing.T) {
	m := NewMetricsService()
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.ObserveCatalogOperation("paged_query", nil, 4*time.Millisecond)
	m.ObserveCatalogOperation("paged_query", errors.New("boom"), 2*time.Millisecond)
	m.ObserveHTTPRequest("GET", "/api/v1/products/:id", 200, 10*time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.InDelta(t, 2.0/3.0, snap.CacheHitRatio, 0.0001)
	assert.Equal(t, uint64(2), snap.CatalogOperations)
	assert.Equal(t, uint64(1), snap.CatalogFailures)
	assert.InDelta(t, 3.0, snap.AverageCatalogOperationMs, 0.0001)
	assert.Equal(t, uint64(1), snap.RequestsTotal)
	assert.Nil(t, snap.Queues)
}

func TestMetricsWatchQueueExportsStats(t *testing.T) {
	m := NewMetricsService()
	q := fixedQueue{name: "exports", stats: jobs.Stats{Pending: 3, InFlight: 1, Succeeded: 7, Abandoned: 2}}
	require.NoError(t, m.WatchQueue(q))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetGauge() != nil:
				values[mf.GetName()] = metric.GetGauge().GetValue()
			case metric.GetCounter() != nil:
				values[mf.GetName()] = metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 3.0, values["filemgr_queue_pending_jobs"])
	assert.Equal(t, 2.0, values["filemgr_queue_jobs_abandoned_total"])

	snap := m.Snapshot()
	require.Contains(t, snap.Queues, "exports")
	assert.Equal(t, 3, snap.Queues["exports"].Pending)
	assert.Equal(t, uint64(7), snap.Queues["exports"].Succeeded)

	assert.Error(t, m.WatchQueue(q), "duplicate queue names are rejected")
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.RecordCacheOperation(true, time.Millisecond)
		m.ObserveCatalogOperation("query", nil, time.Millisecond)
		m.ObservePageHits(3)
		_ = m.WatchQueue(fixedQueue{name: "x"})
		_ = m.Snapshot()
	})
}
