// Package trace attaches a per-request trace ID to a context.Context,
// threaded through the forwarding chain so a single client request can
// be correlated across every hop's logs and spans.
package trace

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"chordring/internal/domain"

	"github.com/oklog/ulid/v2"
)

type traceKey struct{}

// GenerateTraceID builds a globally unique trace ID in the form
// "<nodeID>-<ULID>".
func GenerateTraceID(nodeID string) string {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	id := ulid.MustNew(ulid.Timestamp(t), entropy)
	return fmt.Sprintf("%s-%s", nodeID, id.String())
}

// AttachTraceID generates a trace ID derived from nodeID and stores it
// in ctx, returning the new context and the generated ID.
func AttachTraceID(ctx context.Context, nodeID domain.ID) (context.Context, string) {
	traceID := GenerateTraceID(nodeID.String())
	return context.WithValue(ctx, traceKey{}, traceID), traceID
}

// GetTraceID retrieves the trace ID from ctx, or "" if none is set.
func GetTraceID(ctx context.Context) string {
	if v := ctx.Value(traceKey{}); v != nil {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	return ""
}
