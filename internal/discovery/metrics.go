package discovery

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the discovery instruments. A nil *Metrics records nothing.
type Metrics struct {
	probes   *prometheus.CounterVec
	devices  *prometheus.CounterVec
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the discovery instruments and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "networknest",
			Subsystem: "discovery",
			Name:      "probes_total",
			Help:      "Host probes issued, by outcome.",
		}, []string{"outcome"}),
		devices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "networknest",
			Subsystem: "discovery",
			Name:      "devices_found_total",
			Help:      "Devices reported by discovery runs, by method.",
		}, []string{"method"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "networknest",
			Subsystem: "discovery",
			Name:      "runs_total",
			Help:      "Discovery runs, by method and status.",
		}, []string{"method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "networknest",
			Subsystem: "discovery",
			Name:      "run_duration_seconds",
			Help:      "Wall time of discovery runs.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"method"}),
	}
	if reg != nil {
		reg.MustRegister(m.probes, m.devices, m.runs, m.duration)
	}
	return m
}

func (m *Metrics) observeProbe(found bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if found {
		outcome = "hit"
	}
	m.probes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeRun(method, status string, devices int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(method, status).Inc()
	m.devices.WithLabelValues(method).Add(float64(devices))
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}
