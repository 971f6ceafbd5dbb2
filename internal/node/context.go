package node

import (
	"context"

	"chordring/internal/ctxutil"
)

// reqIDFromContext reuses the request's trace ID as its envelope
// req_id: both exist to correlate one logical operation across hops,
// and a request/response pair never outlives the trace that covers it.
func reqIDFromContext(ctx context.Context) string {
	return ctxutil.TraceIDFromContext(ctx)
}
