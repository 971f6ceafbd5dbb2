package telemetry

import (
	"context"

	"chordring/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "chordring/node"

var tracer = otel.Tracer(tracerName)

// StartHop opens a span for one routing or data-plane hop, tagged with
// the message type, the target identifier, and the current hop count.
// Callers must End() the returned span.
func StartHop(ctx context.Context, messageType string, targetID domain.ID, hop int) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, messageType, trace.WithSpanKind(trace.SpanKindServer))
	attrs := IDAttributes("chordring.target.id", targetID)
	attrs = append(attrs, attribute.Int("chordring.hop", hop))
	span.SetAttributes(attrs...)
	return ctx, span
}
