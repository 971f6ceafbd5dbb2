// Package node implements the DHT ring member: routing (FIND_SUCCESSOR),
// the data plane (INSERT/QUERY/DELETE, OVERLAY/QUERY_ALL traversals),
// and the membership protocol (JOIN_REQUEST, TRANSFER_KEYS, BULK_INSERT,
// DEPART, pointer setters) laid out across routing.go, dataplane.go,
// membership.go and dispatch.go.
package node

import (
	"context"
	"fmt"
	"time"

	"chordring/internal/domain"
	"chordring/internal/envelope"
	"chordring/internal/logger"
	"chordring/internal/ring"
	"chordring/internal/storage"
	"chordring/internal/transport"
)

// Node holds everything one ring member needs to serve peer and client
// requests: its ring pointers, an outbound connection pool, its local
// store, and the ambient safeguards from spec.md §9 (a bound on how
// many hops a forwarded request may travel, and a timeout applied to
// every peer RPC).
type Node struct {
	rt    *ring.Table
	pool  *transport.Pool
	store storage.Store
	lgr   logger.Logger

	hopLimit   int
	rpcTimeout time.Duration
}

// Option configures a Node.
type Option func(*Node)

// WithLogger sets the logger used by the node.
func WithLogger(l logger.Logger) Option {
	return func(n *Node) { n.lgr = l }
}

// New builds a Node. hopLimit <= 0 disables the forwarding-depth
// safety net; rpcTimeout <= 0 disables the per-call deadline.
func New(rt *ring.Table, pool *transport.Pool, store storage.Store, hopLimit int, rpcTimeout time.Duration, opts ...Option) *Node {
	n := &Node{
		rt:         rt,
		pool:       pool,
		store:      store,
		lgr:        logger.NopLogger{},
		hopLimit:   hopLimit,
		rpcTimeout: rpcTimeout,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Self returns the local node's ring identity.
func (n *Node) Self() domain.NodeRef { return n.rt.Self() }

// Space returns the identifier space this node routes over.
func (n *Node) Space() domain.Space { return n.rt.Space() }

// Table exposes the underlying ring pointers, for callers (e.g. tests)
// that need to seed or inspect them directly.
func (n *Node) Table() *ring.Table { return n.rt }

// isResponsible reports whether this node owns keyID: keyID lies in
// (predecessor, self], per §4.4.
func (n *Node) isResponsible(keyID domain.ID) bool {
	pred := n.rt.Predecessor()
	self := n.rt.Self()
	return keyID.Between(pred.ID, self.ID)
}

// toWire converts a domain.NodeRef to its wire form.
func toWire(n domain.NodeRef) envelope.NodeWire {
	return envelope.NodeWire{ID: n.ID.String(), IP: n.IP, Port: n.Port}
}

// fromWire parses a wire NodeWire back into a domain.NodeRef.
func fromWire(sp domain.Space, w envelope.NodeWire) (domain.NodeRef, error) {
	id, err := sp.FromHexString(w.ID)
	if err != nil {
		return domain.NodeRef{}, fmt.Errorf("invalid node id %q: %w", w.ID, err)
	}
	return domain.NodeRef{ID: id, IP: w.IP, Port: w.Port}, nil
}

// call performs one request/response round trip to addr, building the
// envelope from payload and returning the reply's decoded data.
// origin is carried unchanged so a multi-hop forward always names the
// original initiator, never the immediately-preceding hop.
func (n *Node) call(ctx context.Context, addr string, msgType envelope.MessageType, origin envelope.Origin, payload any) (map[string]any, error) {
	data, err := envelope.ToData(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", msgType, err)
	}
	req := envelope.Request{Type: msgType, ReqID: reqIDFromContext(ctx), Origin: origin, Data: data}

	resp, err := n.pool.Call(addr, req, n.rpcTimeout)
	if err != nil {
		n.pool.FailureTimeout(addr)
		return nil, fmt.Errorf("%s to %s: %w", msgType, addr, err)
	}
	if resp.Status != envelope.StatusOK {
		if resp.Error != "" {
			return nil, fmt.Errorf("%s to %s: %s", msgType, addr, resp.Error)
		}
		return nil, fmt.Errorf("%s to %s: status %s", msgType, addr, resp.Status)
	}
	return resp.Data, nil
}

// selfOrigin builds the Origin this node uses when it initiates a new
// request chain (as opposed to forwarding one it received).
func (n *Node) selfOrigin() envelope.Origin {
	self := n.rt.Self()
	return envelope.Origin{IP: self.IP, Port: self.Port}
}
