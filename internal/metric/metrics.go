// Package metric exposes Prometheus metrics for the serial link and the
// profile store.
//
// Every Record method is safe to call on a nil *Metrics, so components can
// take metrics as an optional dependency.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "superserial"

// Metrics contains the link-level metrics
type Metrics struct {
	LinkState      prometheus.Gauge
	LinkOpens      *prometheus.CounterVec
	BytesRead      prometheus.Counter
	BytesWritten   prometheus.Counter
	ErrorsTotal    *prometheus.CounterVec
	ProfileLoads   *prometheus.CounterVec
	ProfileSaves   *prometheus.CounterVec
	ProfilesLoaded prometheus.Gauge
}

// NewMetrics creates the metric collectors without registering them.
func NewMetrics() *Metrics {
	return &Metrics{
		LinkState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "link",
				Name:      "state",
				Help:      "Link state (0=disconnected, 1=connecting, 2=connected, 3=closing)",
			},
		),

		LinkOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "link",
				Name:      "opens_total",
				Help:      "Total number of open attempts by result",
			},
			[]string{"result"},
		),

		BytesRead: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "link",
				Name:      "bytes_read_total",
				Help:      "Total number of bytes read from the serial device",
			},
		),

		BytesWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "link",
				Name:      "bytes_written_total",
				Help:      "Total number of bytes written to the serial device",
			},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors by kind",
			},
			[]string{"kind"},
		),

		ProfileLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "profiles",
				Name:      "loads_total",
				Help:      "Total number of profile file loads by result",
			},
			[]string{"result"},
		),

		ProfileSaves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "profiles",
				Name:      "saves_total",
				Help:      "Total number of profile file saves by result",
			},
			[]string{"result"},
		),

		ProfilesLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "profiles",
				Name:      "loaded",
				Help:      "Number of profiles returned by the last successful load",
			},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.LinkState,
		m.LinkOpens,
		m.BytesRead,
		m.BytesWritten,
		m.ErrorsTotal,
		m.ProfileLoads,
		m.ProfileSaves,
		m.ProfilesLoaded,
	}
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// RecordLinkState updates the link state gauge
func (m *Metrics) RecordLinkState(state int) {
	if m == nil {
		return
	}
	m.LinkState.Set(float64(state))
}

// RecordOpen increments the open counter
func (m *Metrics) RecordOpen(ok bool) {
	if m == nil {
		return
	}
	m.LinkOpens.WithLabelValues(result(ok)).Inc()
}

// RecordBytesRead adds n to the read counter
func (m *Metrics) RecordBytesRead(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesRead.Add(float64(n))
}

// RecordBytesWritten adds n to the write counter
func (m *Metrics) RecordBytesWritten(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesWritten.Add(float64(n))
}

// RecordError increments the error counter for kind
func (m *Metrics) RecordError(kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordProfileLoad records a load attempt and, on success, the set size.
func (m *Metrics) RecordProfileLoad(ok bool, count int) {
	if m == nil {
		return
	}
	m.ProfileLoads.WithLabelValues(result(ok)).Inc()
	if ok {
		m.ProfilesLoaded.Set(float64(count))
	}
}

// RecordProfileSave increments the save counter
func (m *Metrics) RecordProfileSave(ok bool) {
	if m == nil {
		return
	}
	m.ProfileSaves.WithLabelValues(result(ok)).Inc()
}

// Registry owns a Prometheus registry holding the link metrics and the Go
// runtime collectors.
type Registry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
}

// NewRegistry creates a registry with every metric registered
func NewRegistry() *Registry {
	registry := &Registry{
		prometheusRegistry: prometheus.NewRegistry(),
		Metrics:            NewMetrics(),
	}

	registry.prometheusRegistry.MustRegister(registry.Metrics.collectors()...)
	registry.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return registry
}

// PrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prometheusRegistry, promhttp.HandlerOpts{})
}
