package connmux

import "github.com/prometheus/client_golang/prometheus"

// Eviction reasons used in logs and the evictions_total label.
const (
	reasonCapacity = "capacity"
	reasonIdle     = "idle"
	reasonBroken   = "broken"
	reasonManual   = "invalidated"
	reasonShutdown = "shutdown"
)

type muxMetrics struct {
	handles       *prometheus.GaugeVec
	constructions *prometheus.CounterVec
	evictions     *prometheus.CounterVec
	acquireWait   prometheus.Histogram
}

func newMuxMetrics() *muxMetrics {
	const (
		namespace = "tenantmux"
		subsystem = "connmux"
	)

	return &muxMetrics{
		handles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "handles",
			Help:      "Number of handles in the registry by state",
		}, []string{"state"}),

		constructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "constructions_total",
			Help:      "Number of handle constructions by result",
		}, []string{"result"}),

		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "evictions_total",
			Help:      "Number of handles removed from the registry by reason",
		}, []string{"reason"}),

		acquireWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "acquire_wait_seconds",
			Help:      "Time spent in Acquire before a lease was granted or refused",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}),
	}
}

func (m *muxMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.handles, m.constructions, m.evictions, m.acquireWait}
}
