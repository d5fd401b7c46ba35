package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Request("GET", 200)
	m.Retry()
	m.Refresh(true)
	m.CacheRead("budgets", true)
	m.CacheFetch("budgets", false)
	m.Mutation("budgets", "create", true)
	m.Rollback("budgets")
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Refresh(true)
	m.Refresh(false)
	m.Refresh(false)
	m.Mutation("budgets", "delete", false)
	m.CacheRead("categories", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Refreshes.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Refreshes.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues("budgets", "delete", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheReads.WithLabelValues("categories", "hit")))
}
