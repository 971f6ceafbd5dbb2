package telemetry

import (
	"chordring/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// IDAttributes renders id in both decimal and hex form under prefix,
// for attaching a ring identifier to a span or resource.
func IDAttributes(prefix string, id domain.ID) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(prefix+".dec", id.ToBigInt().String()),
		attribute.String(prefix+".hex", id.ToHexString(true)),
	}
}
