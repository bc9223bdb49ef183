package tenant

import "github.com/prometheus/client_golang/prometheus"

// Lookup results used as the lookups_total label.
const (
	resultHit      = "hit"
	resultMiss     = "miss"
	resultShared   = "shared"
	resultNegative = "negative"
	resultStale    = "stale"
	resultError    = "error"
)

type directoryMetrics struct {
	lookups *prometheus.CounterVec
	entries prometheus.GaugeFunc
}

func newDirectoryMetrics(size func() float64) *directoryMetrics {
	const (
		namespace = "tenantmux"
		subsystem = "directory"
	)

	return &directoryMetrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "lookups_total",
			Help:      "Number of tenant directory lookups by result",
		}, []string{"result"}),

		entries: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "entries",
			Help:      "Number of entries in the local directory cache",
		}, size),
	}
}

func (m *directoryMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.lookups, m.entries}
}
