// Package bootstrap discovers the peers a new node should join against,
// and optionally registers/deregisters the node in an external
// directory (DNS, via Route53) so future nodes can discover it in turn.
package bootstrap

import (
	"context"

	"chordring/internal/domain"
)

// Bootstrap is implemented by every discovery strategy the node
// supports.
type Bootstrap interface {
	// Discover returns the addresses of already-running peers to
	// attempt a join against. An empty, non-error result means this
	// node is the first member of the ring.
	Discover(ctx context.Context) ([]string, error)
	// Register publishes self's address so future nodes can discover
	// it. A no-op for strategies with no registry (e.g. static).
	Register(ctx context.Context, self domain.NodeRef) error
	// Deregister removes self's published address on graceful
	// shutdown.
	Deregister(ctx context.Context, self domain.NodeRef) error
}
