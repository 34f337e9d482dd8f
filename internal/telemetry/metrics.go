package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	RequestTotal         *prometheus.CounterVec
	RequestDurationMs    *prometheus.HistogramVec
	RateLimitDeniedTotal *prometheus.CounterVec
	UpstreamErrorTotal   *prometheus.CounterVec
	StreamEventTotal     *prometheus.CounterVec
	ActiveStreams        prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hypvegpt_request_total",
			Help: "Total number of requests processed by the gateway.",
		}, []string{"route", "status", "auth"}),

		RequestDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hypvegpt_request_duration_ms",
			Help:    "Total request duration in milliseconds (including upstream latency).",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"route"}),

		RateLimitDeniedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hypvegpt_ratelimit_denied_total",
			Help: "Requests denied by a local rate-limit policy.",
		}, []string{"policy"}),

		UpstreamErrorTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hypvegpt_upstream_error_total",
			Help: "Upstream call failures by classified kind.",
		}, []string{"kind"}),

		StreamEventTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hypvegpt_stream_event_total",
			Help: "Outward stream events emitted by the relay.",
		}, []string{"type"}),

		ActiveStreams: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "hypvegpt_active_streams",
			Help: "Number of streaming relays currently holding an upstream connection.",
		}),
	}
}

// RecordRequest records a completed non-stream request.
func (m *Metrics) RecordRequest(route, status, auth string, durationMs float64) {
	m.RequestTotal.WithLabelValues(route, status, auth).Inc()
	m.RequestDurationMs.WithLabelValues(route).Observe(durationMs)
}

// RecordRateLimitDenied records a local rate-limit denial.
func (m *Metrics) RecordRateLimitDenied(policy string) {
	m.RateLimitDeniedTotal.WithLabelValues(policy).Inc()
}

// RecordUpstreamError records a classified upstream failure.
func (m *Metrics) RecordUpstreamError(kind string) {
	m.UpstreamErrorTotal.WithLabelValues(kind).Inc()
}

// RecordStreamEvent records one outward relay event.
func (m *Metrics) RecordStreamEvent(eventType string) {
	m.StreamEventTotal.WithLabelValues(eventType).Inc()
}
