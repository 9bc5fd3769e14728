// Package telemetry wires Prometheus metrics and an OpenTelemetry tracer
// around mail flow. Nothing in pkg/kernel, pkg/mailbox, or pkg/mailcenter
// imports this package directly: actor.Tracer is the seam telemetry
// plugs into, so the core engine stays observability-agnostic while still
// being fully instrumentable (spec.md's Non-goals exclude persistence and
// multi-host transport, never observability).
//
// Grounded on pkg/observability/prometheus/metrics.go's promauto +
// sync.Once registerer-singleton pattern, trimmed from its HTTP/DB/event
// bus metric families down to the mail-flow counters and gauges this
// module's domain actually produces.
package telemetry

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/fluxorio/kestrel/pkg/mailbox"
)

// Metrics holds the Prometheus instruments mail flow updates.
type Metrics struct {
	MailSent      *prometheus.CounterVec
	MailDelivered *prometheus.CounterVec
	MailDropped   *prometheus.CounterVec
	MailboxDepth  *prometheus.GaugeVec
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// NewMetrics registers and returns the process-wide Metrics instance
// against reg, constructing it once (mirroring
// pkg/observability/prometheus/metrics.go's sync.Once singleton so
// repeated calls from multiple runners never double-register a
// collector).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	metricsOnce.Do(func() {
		factory := promauto.With(reg)
		metrics = &Metrics{
			MailSent: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "kestrel_mail_sent_total",
				Help: "Mail enqueued for delivery, labeled by sending runner and event.",
			}, []string{"from", "event"}),
			MailDelivered: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "kestrel_mail_delivered_total",
				Help: "Mail successfully delivered, labeled by receiving runner and event.",
			}, []string{"to", "event"}),
			MailDropped: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "kestrel_mail_dropped_total",
				Help: "Mail dropped (unknown recipient or closed mailbox), labeled by event.",
			}, []string{"event"}),
			MailboxDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
				Name: "kestrel_mailbox_depth",
				Help: "Pending item count per registered mailbox.",
			}, []string{"runner"}),
		}
	})
	return metrics
}

// Tracer wraps an OpenTelemetry tracer to satisfy actor.Tracer.
type Tracer struct {
	tracer oteltrace.Tracer
}

// NewTracer builds a Tracer from the given TracerProvider's "kestrel/mail"
// tracer. Pass a provider wired to stdouttrace for local development, or
// nil to fall back to the global no-op provider.
func NewTracer(provider oteltrace.TracerProvider) *Tracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Tracer{tracer: provider.Tracer("kestrel/mail")}
}

// StartMailSpan implements actor.Tracer. The span's trace id is also
// stashed into m.Body under "trace_id", replacing any earlier value. An
// ActorService calls this both in SendMail and when draining inbound mail,
// each time from context.Background, so the body a receiving service sees
// carries the receiving span's trace id, not the sender's.
func (t *Tracer) StartMailSpan(ctx context.Context, m mailbox.Mail) (context.Context, func()) {
	spanCtx, span := t.tracer.Start(ctx, "mail."+m.Event,
		oteltrace.WithAttributes(
			attribute.String("mail.from", m.From),
			attribute.String("mail.to", m.To),
			attribute.String("mail.event", m.Event),
		))
	if m.Body != nil {
		m.Body.SetString("trace_id", span.SpanContext().TraceID().String())
	}
	return spanCtx, func() { span.End() }
}

// NewTracerProvider returns a basic SDK TracerProvider suitable for
// passing to NewTracer; callers own its Shutdown.
func NewTracerProvider(opts ...trace.TracerProviderOption) *trace.TracerProvider {
	return trace.NewTracerProvider(opts...)
}
