package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	if m.RequestTotal == nil {
		t.Error("RequestTotal should not be nil")
	}
	if m.RequestDurationMs == nil {
		t.Error("RequestDurationMs should not be nil")
	}
	if m.RateLimitDeniedTotal == nil {
		t.Error("RateLimitDeniedTotal should not be nil")
	}
	if m.UpstreamErrorTotal == nil {
		t.Error("UpstreamErrorTotal should not be nil")
	}
	if m.StreamEventTotal == nil {
		t.Error("StreamEventTotal should not be nil")
	}
	if m.ActiveStreams == nil {
		t.Error("ActiveStreams should not be nil")
	}
}

func TestRecordRateLimitDenied(t *testing.T) {
	// Use a fresh registry to avoid polluting the default one.
	reg := prometheus.NewRegistry()
	denied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_hypvegpt_ratelimit_denied_total",
		Help: "Test counter",
	}, []string{"policy"})
	reg.MustRegister(denied)

	m := &Metrics{RateLimitDeniedTotal: denied}
	m.RecordRateLimitDenied("anon")
	m.RecordRateLimitDenied("anon")
	m.RecordRateLimitDenied("user")

	var metric dto.Metric
	if err := denied.WithLabelValues("anon").Write(&metric); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 2 {
		t.Errorf("expected anon denials = 2, got %v", got)
	}
}

func TestRecordStreamEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_hypvegpt_stream_event_total",
		Help: "Test counter",
	}, []string{"type"})
	reg.MustRegister(events)

	m := &Metrics{StreamEventTotal: events}
	m.RecordStreamEvent("delta")
	m.RecordStreamEvent("delta")
	m.RecordStreamEvent("done")

	var metric dto.Metric
	if err := events.WithLabelValues("delta").Write(&metric); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 2 {
		t.Errorf("expected delta events = 2, got %v", got)
	}
}
