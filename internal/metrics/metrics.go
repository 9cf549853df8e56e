// Package metrics exposes probe and sweep counters in Prometheus format.
//
// All recording methods are safe on a nil *Metrics so components can be
// constructed without instrumentation in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "statuspulse"

type Metrics struct {
	registry *prometheus.Registry

	probes        *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
	sweeps        prometheus.Counter
	sweepsSkipped prometheus.Counter
	sweepDuration prometheus.Histogram
	sweepRunning  prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Probes performed, by trigger and result.",
		}, []string{"trigger", "result"}),
		probeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Wall-clock duration of probes.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"trigger"}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Scheduled sweeps completed.",
		}),
		sweepsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_skipped_total",
			Help:      "Ticks skipped because a sweep was still running.",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of full sweeps.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		sweepRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sweep_running",
			Help:      "1 while a sweep is in flight.",
		}),
	}
	m.registry.MustRegister(
		m.probes, m.probeDuration,
		m.sweeps, m.sweepsSkipped, m.sweepDuration, m.sweepRunning,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Trigger labels.
const (
	TriggerSweep    = "sweep"
	TriggerOnDemand = "on_demand"
)

func (m *Metrics) ObserveProbe(trigger string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "down"
	if ok {
		result = "up"
	}
	m.probes.WithLabelValues(trigger, result).Inc()
	m.probeDuration.WithLabelValues(trigger).Observe(d.Seconds())
}

func (m *Metrics) SweepStarted() {
	if m == nil {
		return
	}
	m.sweepRunning.Set(1)
}

func (m *Metrics) SweepFinished(d time.Duration) {
	if m == nil {
		return
	}
	m.sweepRunning.Set(0)
	m.sweeps.Inc()
	m.sweepDuration.Observe(d.Seconds())
}

func (m *Metrics) SweepSkipped() {
	if m == nil {
		return
	}
	m.sweepsSkipped.Inc()
}

// Registry is exposed for tests and for callers registering extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
