// Package metrics provides Prometheus metrics for Slack event handling and
// LLM dispatch.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const subsystem = "sparrow"

// Metrics holds the collectors for event ingress and provider dispatch.
type Metrics struct {
	reg *prometheus.Registry

	EventsReceived  *prometheus.CounterVec
	EventsFailed    *prometheus.CounterVec
	DispatchCalls   *prometheus.CounterVec
	ProviderErrors  *prometheus.CounterVec
	FallbackRetries prometheus.Counter
	DispatchSeconds prometheus.Histogram
	FilesProcessed  *prometheus.CounterVec
}

// New creates a Metrics instance with all collectors registered on a private
// registry.
func New() *Metrics {
	m := &Metrics{reg: prometheus.NewRegistry()}

	m.EventsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "events_received_total",
		Help:      "Slack events received, by event type",
	}, []string{"type"})

	m.EventsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "events_failed_total",
		Help:      "Slack events whose handler returned an error, by event type",
	}, []string{"type"})

	m.DispatchCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "dispatch_calls_total",
		Help:      "LLM dispatch calls, by provider and mode",
	}, []string{"provider", "mode"})

	m.ProviderErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "provider_errors_total",
		Help:      "LLM provider call failures, by provider",
	}, []string{"provider"})

	m.FallbackRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "fallback_retries_total",
		Help:      "Dispatches retried on the fallback provider",
	})

	m.DispatchSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Subsystem: subsystem,
		Name:      "dispatch_duration_seconds",
		Help:      "End-to-end LLM dispatch duration in seconds",
		Buckets:   []float64{0.1, 0.3, 0.5, 1.0, 3.0, 5.0, 10.0, 30.0, 60.0},
	})

	m.FilesProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "files_processed_total",
		Help:      "Attachments processed by the file pipeline, by upload type",
	}, []string{"upload_type"})

	m.reg.MustRegister(
		m.EventsReceived,
		m.EventsFailed,
		m.DispatchCalls,
		m.ProviderErrors,
		m.FallbackRetries,
		m.DispatchSeconds,
		m.FilesProcessed,
	)

	return m
}

// Handler returns the HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}
