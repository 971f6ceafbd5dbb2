package ctxutil

import (
	"context"
	"testing"
	"time"

	"chordring/internal/domain"
)

func TestHopsFromContextDefaultsToUncounted(t *testing.T) {
	ctx, cancel := NewContext()
	if cancel != nil {
		defer cancel()
	}
	if HopsFromContext(ctx) != -1 {
		t.Fatalf("expected -1 for a context with no hop counter")
	}
}

func TestIncHopsIncrementsWhenCounting(t *testing.T) {
	ctx, cancel := NewContext(WithHops())
	if cancel != nil {
		defer cancel()
	}
	ctx = IncHops(ctx)
	ctx = IncHops(ctx)
	if HopsFromContext(ctx) != 2 {
		t.Fatalf("expected hop count 2, got %d", HopsFromContext(ctx))
	}
}

func TestSetHopsSeedsAnArbitraryCount(t *testing.T) {
	ctx := SetHops(context.Background(), 4)
	if HopsFromContext(ctx) != 4 {
		t.Fatalf("expected hop count 4, got %d", HopsFromContext(ctx))
	}
	ctx = IncHops(ctx)
	if HopsFromContext(ctx) != 5 {
		t.Fatalf("expected hop count 5 after increment, got %d", HopsFromContext(ctx))
	}
}

func TestCheckHopLimit(t *testing.T) {
	ctx, cancel := NewContext(WithHops())
	if cancel != nil {
		defer cancel()
	}
	for i := 0; i < 3; i++ {
		ctx = IncHops(ctx)
	}
	if err := CheckHopLimit(ctx, 5); err != nil {
		t.Fatalf("expected no error under the limit, got %v", err)
	}
	if err := CheckHopLimit(ctx, 3); err != ErrHopLimitExceeded {
		t.Fatalf("expected ErrHopLimitExceeded at the limit, got %v", err)
	}
}

func TestCheckContextDeadlineExceeded(t *testing.T) {
	ctx, cancel := NewContext(WithTimeout(time.Millisecond))
	defer cancel()
	time.Sleep(5 * time.Millisecond)
	if err := CheckContext(ctx); err != ErrDeadlineExceeded {
		t.Fatalf("expected ErrDeadlineExceeded, got %v", err)
	}
}

func TestEnsureTraceIDAttachesOnlyOnce(t *testing.T) {
	sp, err := domain.NewSpace(160)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	nodeID := sp.NewIDFromString("n1")

	ctx, cancel := NewContext()
	if cancel != nil {
		defer cancel()
	}
	ctx = EnsureTraceID(ctx, nodeID)
	first := TraceIDFromContext(ctx)
	if first == "" {
		t.Fatalf("expected a trace id to be attached")
	}
	ctx = EnsureTraceID(ctx, nodeID)
	if TraceIDFromContext(ctx) != first {
		t.Fatalf("expected trace id to remain stable once set")
	}
}
