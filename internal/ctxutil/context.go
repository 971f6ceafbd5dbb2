// Package ctxutil threads the cross-cutting request-scoped state every
// handler needs through context.Context: the trace ID and a hop
// counter bounding how many times a request may be forwarded around
// the ring.
package ctxutil

import (
	"context"
	"errors"
	"time"

	"chordring/internal/domain"
	"chordring/internal/trace"
)

// ErrCanceled is returned by CheckContext when the caller canceled the
// request.
var ErrCanceled = errors.New("request was canceled by client")

// ErrDeadlineExceeded is returned by CheckContext when the request's
// deadline has passed.
var ErrDeadlineExceeded = errors.New("request deadline exceeded")

// ErrHopLimitExceeded is returned when a forwarded request's hop
// counter would exceed the configured limit — a safety net against a
// routing bug turning a bounded ring traversal into an infinite
// forwarding loop.
var ErrHopLimitExceeded = errors.New("hop limit exceeded")

type traceKey struct{}
type hopsKey struct{}

// ContextOption configures NewContext. Multiple options compose.
type ContextOption func(*ctxConfig)

type ctxConfig struct {
	withTrace bool
	withHops  bool
	nodeID    domain.ID
	timeout   time.Duration
}

// WithTrace attaches a fresh trace ID derived from nodeID.
func WithTrace(nodeID domain.ID) ContextOption {
	return func(cfg *ctxConfig) {
		cfg.withTrace = true
		cfg.nodeID = nodeID
	}
}

// WithTimeout bounds the created context with a timeout. The caller
// must invoke the returned cancel function.
func WithTimeout(d time.Duration) ContextOption {
	return func(cfg *ctxConfig) { cfg.timeout = d }
}

// WithHops initializes the hop counter at 0.
func WithHops() ContextOption {
	return func(cfg *ctxConfig) { cfg.withHops = true }
}

// NewContext builds a context.Context configured by opts.
func NewContext(opts ...ContextOption) (context.Context, context.CancelFunc) {
	cfg := &ctxConfig{}
	for _, o := range opts {
		o(cfg)
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if cfg.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), cfg.timeout)
	} else {
		ctx = context.Background()
	}
	if cfg.withTrace {
		ctx, _ = trace.AttachTraceID(ctx, cfg.nodeID)
	}
	if cfg.withHops {
		ctx = context.WithValue(ctx, hopsKey{}, 0)
	}
	return ctx, cancel
}

// TraceIDFromContext extracts the trace ID from ctx, or "" if absent.
func TraceIDFromContext(ctx context.Context) string {
	return trace.GetTraceID(ctx)
}

// EnsureTraceID attaches a fresh trace ID derived from nodeID if ctx
// does not already carry one.
func EnsureTraceID(ctx context.Context, nodeID domain.ID) context.Context {
	if id := trace.GetTraceID(ctx); id == "" {
		ctx, _ = trace.AttachTraceID(ctx, nodeID)
	}
	return ctx
}

// SetHops returns a derived context carrying hops as the current hop
// count, overriding any counter already present. Each hop of a
// forwarding chain reconstructs its context from the wire-level Hops
// field on the incoming request — a context.Context cannot itself cross
// the network — and seeds it here before checking or advancing it.
func SetHops(ctx context.Context, hops int) context.Context {
	return context.WithValue(ctx, hopsKey{}, hops)
}

// HopsFromContext returns the current hop count, or -1 if the context
// carries no hop counter (counting was never requested).
func HopsFromContext(ctx context.Context) int {
	if hops, ok := ctx.Value(hopsKey{}).(int); ok {
		return hops
	}
	return -1
}

// IncHops returns a derived context with the hop counter incremented
// by one. A context with no counter, or with the -1 "uncounted"
// sentinel, is returned unchanged.
func IncHops(ctx context.Context) context.Context {
	hops, ok := ctx.Value(hopsKey{}).(int)
	if !ok || hops == -1 {
		return ctx
	}
	return context.WithValue(ctx, hopsKey{}, hops+1)
}

// CheckHopLimit reports ErrHopLimitExceeded if ctx's hop counter has
// reached limit. A non-positive limit disables the check.
func CheckHopLimit(ctx context.Context, limit int) error {
	if limit <= 0 {
		return nil
	}
	if hops := HopsFromContext(ctx); hops >= limit {
		return ErrHopLimitExceeded
	}
	return nil
}

// CheckContext reports whether ctx has already been canceled or its
// deadline has expired, for handlers to check before doing any work.
func CheckContext(ctx context.Context) error {
	switch err := ctx.Err(); {
	case errors.Is(err, context.Canceled):
		return ErrCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrDeadlineExceeded
	default:
		return nil
	}
}
