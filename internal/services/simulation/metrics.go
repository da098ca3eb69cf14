package simulation

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the prometheus collectors of the simulation service.
type Metrics struct {
	registry *prometheus.Registry

	runs     *prometheus.CounterVec
	days     prometheus.Counter
	duration prometheus.Histogram
	inFlight prometheus.Gauge
}

// NewMetrics registers the collectors on a registry of their own.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cropsim",
			Name:      "runs_total",
			Help:      "Simulation runs by outcome.",
		}, []string{"status"}),
		days: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cropsim",
			Name:      "simulated_days_total",
			Help:      "Days committed by all runs.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cropsim",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a simulation run.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cropsim",
			Name:      "runs_in_flight",
			Help:      "Runs currently executing.",
		}),
	}
	m.registry.MustRegister(m.runs, m.days, m.duration, m.inFlight,
		prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return m
}

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(status string, days int, seconds float64) {
	m.runs.WithLabelValues(status).Inc()
	m.days.Add(float64(days))
	m.duration.Observe(seconds)
}
