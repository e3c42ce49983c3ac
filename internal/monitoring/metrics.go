package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the gaze pipeline counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	SamplesRead        prometheus.Counter
	DecodeFailures     prometheus.Counter
	ProjectionFailures prometheus.Counter
	PausedSamples      prometheus.Counter
	Classifications    *prometheus.CounterVec
	DispatchDropped    prometheus.Counter
	SelectionsDeduped  prometheus.Counter
	SinkErrors         prometheus.Counter
}

// NewMetrics creates the counters on a private registry so that several
// sessions or tests never collide on registration.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		SamplesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gaze", Name: "samples_read_total",
			Help: "Sensor lines read from the gaze device.",
		}),
		DecodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gaze", Name: "decode_failures_total",
			Help: "Sensor lines dropped because they did not decode.",
		}),
		ProjectionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gaze", Name: "projection_failures_total",
			Help: "Samples without a usable gaze point.",
		}),
		PausedSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gaze", Name: "paused_samples_total",
			Help: "Samples discarded while the session was paused.",
		}),
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gaze", Name: "classifications_total",
			Help: "Gaze points by resolved AOI kind.",
		}, []string{"kind"}),
		DispatchDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gaze", Name: "ui_dispatch_dropped_total",
			Help: "Editor lookups dropped because the UI queue was full or closed.",
		}),
		SelectionsDeduped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gaze", Name: "selections_deduplicated_total",
			Help: "Selection events suppressed as repeats.",
		}),
		SinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gaze", Name: "sink_errors_total",
			Help: "Records the event log failed to store.",
		}),
	}
	reg.MustRegister(
		m.SamplesRead,
		m.DecodeFailures,
		m.ProjectionFailures,
		m.PausedSamples,
		m.Classifications,
		m.DispatchDropped,
		m.SelectionsDeduped,
		m.SinkErrors,
	)
	return m
}

func (m *Metrics) SampleRead() {
	if m != nil {
		m.SamplesRead.Inc()
	}
}

func (m *Metrics) DecodeFailed() {
	if m != nil {
		m.DecodeFailures.Inc()
	}
}

func (m *Metrics) ProjectionFailed() {
	if m != nil {
		m.ProjectionFailures.Inc()
	}
}

func (m *Metrics) SamplePaused() {
	if m != nil {
		m.PausedSamples.Inc()
	}
}

func (m *Metrics) DispatchDrop() {
	if m != nil {
		m.DispatchDropped.Inc()
	}
}

func (m *Metrics) SelectionDeduped() {
	if m != nil {
		m.SelectionsDeduped.Inc()
	}
}

func (m *Metrics) SinkFailed() {
	if m != nil {
		m.SinkErrors.Inc()
	}
}

// Classified counts one gaze point resolved to kind.
func (m *Metrics) Classified(kind string) {
	if m != nil {
		m.Classifications.WithLabelValues(kind).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
