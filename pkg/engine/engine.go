// Package engine ties the process-wide collaborators together: a
// MailCenter (built with mailcenter.New, not the Global singleton) and
// optional telemetry. Signal handling is wired by cmd/server itself.
package engine

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/fluxorio/kestrel/pkg/actor"
	"github.com/fluxorio/kestrel/pkg/mailcenter"
	"github.com/fluxorio/kestrel/pkg/telemetry"
)

// Engine is the process-wide home for the MailCenter dispatcher and
// optional telemetry, constructed once per process and shared by every
// Runner/ThreadRunner cmd/server brings up.
//
// Grounded on pkg/core/gocmd.go's GoCMD process-wide runtime singleton
// (one MailCenter/registry shared by every deployed verticle), trimmed
// to the two collaborators this module's core actually needs: mail
// routing and, optionally, telemetry.
type Engine struct {
	Center  *mailcenter.MailCenter
	Metrics *telemetry.Metrics
	Tracer  actor.Tracer

	logger *slog.Logger
	cancel context.CancelFunc
}

// Options controls which optional collaborators New wires in.
type Options struct {
	Logger          *slog.Logger
	Registerer      prometheus.Registerer // nil disables metrics
	TracerProvider  oteltrace.TracerProvider // nil disables tracing
}

// New constructs an Engine. Call Start before handing its Center to any
// ActorService factory, and Shutdown once every runner has stopped.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		Center: mailcenter.New(logger),
		logger: logger,
	}

	if opts.Registerer != nil {
		e.Metrics = telemetry.NewMetrics(opts.Registerer)
	}
	if opts.TracerProvider != nil {
		e.Tracer = telemetry.NewTracer(opts.TracerProvider)
	}
	return e
}

// Start launches the MailCenter dispatcher goroutine under ctx.
func (e *Engine) Start(ctx context.Context) {
	dispatchCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.Center.Start(dispatchCtx)
}

// Shutdown stops the MailCenter dispatcher and blocks until it exits.
func (e *Engine) Shutdown() {
	if e.cancel != nil {
		e.cancel()
	}
	e.Center.Shutdown()
}
