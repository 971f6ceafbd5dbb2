package node

import (
	"context"
	"fmt"

	"chordring/internal/ctxutil"
	"chordring/internal/domain"
	"chordring/internal/envelope"
	"chordring/internal/logger"
)

// FindSuccessor resolves the ring node responsible for target, per the
// simple linear-hop algorithm of §4.4: no finger table, no de Bruijn
// shortcutting. Each hop checks only its own successor pointer and, if
// target isn't in (self, successor], forwards the same request one hop
// further. The chain is synchronous end-to-end: this call blocks until
// the final hop's reply comes back.
//
// origin names the original requester (preserved unchanged across every
// forward); hops counts how many times the request has already been
// forwarded, enforced against the configured hop limit as a safety net
// against a routing bug turning this into an infinite loop.
func (n *Node) FindSuccessor(ctx context.Context, target domain.ID, origin envelope.Origin, hops int) (domain.NodeRef, error) {
	if err := ctxutil.CheckContext(ctx); err != nil {
		return domain.NodeRef{}, err
	}
	ctx = ctxutil.SetHops(ctx, hops)

	self := n.rt.Self()
	succ := n.rt.Successor()
	if succ.IsZero() {
		return domain.NodeRef{}, fmt.Errorf("find_successor: routing table not initialized")
	}

	if target.Between(self.ID, succ.ID) {
		return succ, nil
	}

	if err := ctxutil.CheckHopLimit(ctx, n.hopLimit); err != nil {
		n.lgr.Warn("find_successor: hop limit exceeded", logger.F("target", target.String()), logger.F("hops", hops))
		return domain.NodeRef{}, err
	}

	fctx := ctxutil.IncHops(ctx)
	data, err := n.call(ctx, succ.Addr(), envelope.FindSuccessor, origin, envelope.FindSuccessorRequest{
		ID:   target.String(),
		Hops: ctxutil.HopsFromContext(fctx),
	})
	if err != nil {
		return domain.NodeRef{}, fmt.Errorf("find_successor: forward to %s: %w", succ.Addr(), err)
	}
	fr, err := envelope.Decode[envelope.FindSuccessorResponse](data)
	if err != nil {
		return domain.NodeRef{}, fmt.Errorf("find_successor: decode reply from %s: %w", succ.Addr(), err)
	}
	return fromWire(n.rt.Space(), fr.Successor)
}

// LookUp is the client-facing entry point for a successor lookup: it
// originates a fresh FIND_SUCCESSOR chain from this node.
func (n *Node) LookUp(ctx context.Context, id domain.ID) (domain.NodeRef, error) {
	return n.FindSuccessor(ctx, id, n.selfOrigin(), 0)
}
