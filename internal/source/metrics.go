package source

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records fetch outcomes.
type Metrics struct {
	Errors   *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics creates the fetch collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vmtop",
			Name:      "fetch_errors_total",
			Help:      "Fetches that were replaced by an empty result, by operation and error kind.",
		}, []string{"op", "kind"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vmtop",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of successful fetches.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.Errors, m.Duration)
	}
	return m
}
