package agent

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the narrow slice of trace.Tracer the agent needs, kept as its
// own interface so tests can supply a no-op without pulling in the otel
// SDK's noop tracer constructor.
type tracer interface {
	Start(ctx context.Context, spanName string) (context.Context, trace.Span)
}

type otelTracer struct{ trace.Tracer }

func (t otelTracer) Start(ctx context.Context, spanName string) (context.Context, trace.Span) {
	return t.Tracer.Start(ctx, spanName)
}

// NewTracer adapts an OpenTelemetry trace.Tracer (e.g. from
// otel.Tracer("mqttagent")) for use with WithTracer.
func NewTracer(t trace.Tracer) tracer {
	return otelTracer{t}
}

// startDispatchSpan opens a span for a single dispatched command. The
// returned end func must be called exactly once; for an ack-pending
// command it is stashed and called later, when the ack lands.
func (a *Agent) startDispatchSpan(kind CommandKind, packetID uint16) func(status Status) {
	if a.tracer == nil {
		return func(Status) {}
	}
	_, span := a.tracer.Start(context.Background(), "mqttagent.dispatch")
	span.SetAttributes(
		attribute.String("command.kind", kind.String()),
		attribute.Int64("command.packet_id", int64(packetID)),
	)
	return func(status Status) {
		span.SetAttributes(attribute.String("command.status", status.Error()))
		span.End()
	}
}
