package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulerMetrics(reg)

	m.ObserveOperation("book", "ok", 0.02)
	m.ObserveOperation("book", "capacity_full", 0.01)
	m.ObserveOperation("book", "ok", 0.03)
	m.ObserveLedgerRetry("postgres")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("book", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("book", "capacity_full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ledgerRetries.WithLabelValues("postgres")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 3)
}

func TestSchedulerMetricsNilSafe(t *testing.T) {
	var m *SchedulerMetrics
	m.ObserveOperation("cancel", "ok", 0.1)
	m.ObserveLedgerRetry("memory")
}
