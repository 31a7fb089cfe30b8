// Package metrics wraps a namespaced Prometheus registry for the
// runtime's own operational telemetry: invocation counters/histograms per
// adapter tag, active-handle and active-adapter gauges, and pointer
// registry instrumentation (spec.md §5 expansion). Metrics are optional —
// a nil *Metrics (never calling InitPrometheus) makes every Record* call
// a no-op, so the runtime never depends on a scrape target existing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps the collectors this runtime emits.
type Metrics struct {
	registry *prometheus.Registry

	invocationsTotal *prometheus.CounterVec
	invocationDur    *prometheus.HistogramVec

	activeHandles  *prometheus.GaugeVec
	activeAdapters prometheus.Gauge

	pointerRegistrySize  prometheus.Gauge
	rejectedDereferences prometheus.Counter
	delayedQueueDepth    *prometheus.GaugeVec

	discoveryCacheHits   prometheus.Counter
	discoveryCacheMisses prometheus.Counter
}

var defaultBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000}

var current *Metrics

// InitPrometheus builds the registry and installs it as the process-wide
// instance returned by Current(). buckets are invocation-duration
// histogram boundaries in milliseconds; nil uses defaultBuckets.
func InitPrometheus(namespace string, buckets []float64) *Metrics {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,

		invocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Total number of metacall/metacall_await dispatches",
		}, []string{"tag", "function", "status"}),

		invocationDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_ms",
			Help:      "Dispatch duration in milliseconds",
			Buckets:   buckets,
		}, []string{"tag", "function"}),

		activeHandles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_handles",
			Help:      "Loaded handles currently attached, by adapter tag",
		}, []string{"tag"}),

		activeAdapters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_adapters",
			Help:      "Loader implementations currently initialized",
		}),

		pointerRegistrySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pointer_registry_size",
			Help:      "Live entries in the opaque pointer-reference registry",
		}),

		rejectedDereferences: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pointer_dereferences_rejected_total",
			Help:      "Dereferences of an unknown/released pointer id",
		}),

		delayedQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "delayed_destroy_queue_depth",
			Help:      "Pending delayed-release callbacks, by adapter tag",
		}, []string{"tag"}),

		discoveryCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_cache_hits_total",
			Help:      "load_from_file/memory calls whose source the discovery cache had already seen",
		}),

		discoveryCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_cache_misses_total",
			Help:      "load_from_file/memory calls whose source the discovery cache had not seen",
		}),
	}

	registry.MustRegister(
		m.invocationsTotal, m.invocationDur, m.activeHandles, m.activeAdapters,
		m.pointerRegistrySize, m.rejectedDereferences, m.delayedQueueDepth,
		m.discoveryCacheHits, m.discoveryCacheMisses,
	)
	current = m
	return m
}

// Current returns the process-wide instance, or nil if InitPrometheus was
// never called.
func Current() *Metrics { return current }

// Handler returns the HTTP handler exposing the registry in the text
// exposition format, for mounting under e.g. /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordInvocation(tag, function, status string, durationMs float64) {
	if m == nil {
		return
	}
	m.invocationsTotal.WithLabelValues(tag, function, status).Inc()
	m.invocationDur.WithLabelValues(tag, function).Observe(durationMs)
}

func (m *Metrics) SetActiveHandles(tag string, n int) {
	if m == nil {
		return
	}
	m.activeHandles.WithLabelValues(tag).Set(float64(n))
}

func (m *Metrics) SetActiveAdapters(n int) {
	if m == nil {
		return
	}
	m.activeAdapters.Set(float64(n))
}

func (m *Metrics) SetPointerRegistrySize(n int) {
	if m == nil {
		return
	}
	m.pointerRegistrySize.Set(float64(n))
}

func (m *Metrics) IncRejectedDereference() {
	if m == nil {
		return
	}
	m.rejectedDereferences.Inc()
}

func (m *Metrics) SetDelayedQueueDepth(tag string, n int) {
	if m == nil {
		return
	}
	m.delayedQueueDepth.WithLabelValues(tag).Set(float64(n))
}

func (m *Metrics) RecordDiscoveryCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.discoveryCacheHits.Inc()
		return
	}
	m.discoveryCacheMisses.Inc()
}
