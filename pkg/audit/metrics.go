package audit

import "github.com/prometheus/client_golang/prometheus"

// Failure reasons passed to the FailureHandler.
const (
	ReasonQueueFull = "queue_full"
	ReasonClosed    = "closed"
	ReasonInvalid   = "invalid"
	ReasonStorage   = "storage"
)

type recorderMetrics struct {
	recorded *prometheus.CounterVec
	failures *prometheus.CounterVec
	queued   prometheus.GaugeFunc
}

func newRecorderMetrics(depth func() float64) *recorderMetrics {
	const (
		namespace = "tenantmux"
		subsystem = "audit"
	)

	return &recorderMetrics{
		recorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_stored_total",
			Help:      "Number of audit events written to storage",
		}, []string{"status"}),

		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "failures_total",
			Help:      "Number of audit events that could not be stored, by reason",
		}, []string{"reason"}),

		queued: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_depth",
			Help:      "Number of audit events waiting to be stored",
		}, depth),
	}
}

func (m *recorderMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.recorded, m.failures, m.queued}
}
