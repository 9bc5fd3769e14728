package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/fluxorio/kestrel/pkg/mailbox"
	"github.com/fluxorio/kestrel/pkg/types"
)

func TestNewMetricsRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	m1 := NewMetrics(reg)
	m2 := NewMetrics(reg)
	if m1 != m2 {
		t.Fatal("expected NewMetrics to return the same singleton instance")
	}
}

func TestTracerStartMailSpanStampsTraceID(t *testing.T) {
	provider := sdktrace.NewTracerProvider()
	defer provider.Shutdown(context.Background())

	tracer := NewTracer(provider)
	m := mailbox.Mail{From: "a", To: "b", Event: "ping", Body: types.NewDict()}

	_, end := tracer.StartMailSpan(context.Background(), m)
	defer end()

	traceID, ok := m.Body.GetString("trace_id")
	if !ok || traceID == "" {
		t.Fatal("expected trace_id to be stamped into mail body")
	}
}
