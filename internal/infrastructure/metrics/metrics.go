package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulerMetrics exposes counters/histograms for appointment scheduling.
type SchedulerMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	ledgerRetries     *prometheus.CounterVec
}

func NewSchedulerMetrics(reg prometheus.Registerer) *SchedulerMetrics {
	m := &SchedulerMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduler",
			Subsystem: "appointments",
			Name:      "operations_total",
			Help:      "Appointment operations by outcome",
		}, []string{"operation", "outcome"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scheduler",
			Subsystem: "appointments",
			Name:      "operation_duration_seconds",
			Help:      "Latency of appointment operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		ledgerRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduler",
			Subsystem: "ledger",
			Name:      "retries_total",
			Help:      "Ledger units of work retried after a serialization conflict",
		}, []string{"driver"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal, m.operationDuration, m.ledgerRetries)
	return m
}

func (m *SchedulerMetrics) ObserveOperation(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

func (m *SchedulerMetrics) ObserveLedgerRetry(driver string) {
	if m == nil {
		return
	}
	m.ledgerRetries.WithLabelValues(driver).Inc()
}
