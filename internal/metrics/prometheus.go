package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the capture pipeline
type Metrics struct {
	registry *prometheus.Registry

	// Session lifecycle
	SessionsStarted prometheus.Counter
	SessionsStopped prometheus.Counter
	StartFailures   *prometheus.CounterVec
	StopErrors      prometheus.Counter
	ActiveSessions  prometheus.Gauge

	// Producer path
	CallbacksHandled  prometheus.Counter
	CallbacksOrphaned prometheus.Counter
	FramesIn          prometheus.Counter
	SamplesOut        prometheus.Counter
	RateMismatches    prometheus.Counter
	ProcessDuration   prometheus.Histogram

	// Delivery
	ChunksDelivered prometheus.Counter
	ChunksDropped   prometheus.Counter
	BytesDelivered  prometheus.Counter
}

// New creates all metrics on a private registry. Each Manager gets its own
// so that several can coexist in one process (tests, mostly).
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiotap_sessions_started_total",
			Help: "Total number of capture sessions started",
		}),
		SessionsStopped: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiotap_sessions_stopped_total",
			Help: "Total number of capture sessions stopped",
		}),
		StartFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audiotap_start_failures_total",
			Help: "Total number of rejected or failed session starts by reason",
		}, []string{"reason"}),
		StopErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiotap_stop_errors_total",
			Help: "Audio source teardown errors swallowed during stop",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "audiotap_active_sessions",
			Help: "Current number of active capture sessions (0 or 1)",
		}),

		CallbacksHandled: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiotap_callbacks_total",
			Help: "Producer callbacks that reached a live session",
		}),
		CallbacksOrphaned: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiotap_callbacks_orphaned_total",
			Help: "Producer callbacks whose session token was no longer registered",
		}),
		FramesIn: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiotap_frames_in_total",
			Help: "Input frames handed to the resampler",
		}),
		SamplesOut: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiotap_samples_out_total",
			Help: "16 kHz mono samples produced by the resampler",
		}),
		RateMismatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiotap_rate_mismatch_total",
			Help: "Sessions that saw an input rate that is not a multiple of 16 kHz",
		}),
		ProcessDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "audiotap_process_duration_seconds",
			Help:    "Time spent resampling one producer buffer",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 12), // 10us to ~20ms
		}),

		ChunksDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiotap_chunks_delivered_total",
			Help: "PCM chunks accepted by the consumer sink",
		}),
		ChunksDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiotap_chunks_dropped_total",
			Help: "PCM chunks the consumer sink refused without blocking",
		}),
		BytesDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiotap_bytes_delivered_total",
			Help: "PCM bytes accepted by the consumer sink",
		}),
	}
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Total returns the named counter summed over all its label values. It is 0
// for unknown names or when the registry cannot be gathered.
func (m *Metrics) Total(name string) float64 {
	families, err := m.registry.Gather()
	if err != nil {
		return 0
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}
