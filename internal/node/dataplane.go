package node

import (
	"context"
	"errors"
	"fmt"

	"chordring/internal/ctxutil"
	"chordring/internal/domain"
	"chordring/internal/envelope"
)

// ErrMissingKeyOrValue is returned by Insert when key or value is empty,
// per §4.5's "missing key or value → ERROR".
var ErrMissingKeyOrValue = errors.New("insert: missing key or value")

// Insert stores key/value, originating a fresh forwarding chain from
// this node. It returns the port of the node that finally stored the
// value (the reply's stored_at).
func (n *Node) Insert(ctx context.Context, key, value string) (int, error) {
	return n.insert(ctx, key, value, n.selfOrigin(), 0)
}

// insert implements §4.5's INSERT dispatch: handle locally if this node
// owns keyID, otherwise forward the same INSERT request to the
// successor — no intermediate FIND_SUCCESSOR round trip.
func (n *Node) insert(ctx context.Context, key, value string, origin envelope.Origin, hops int) (int, error) {
	if err := ctxutil.CheckContext(ctx); err != nil {
		return 0, err
	}
	if key == "" || value == "" {
		return 0, ErrMissingKeyOrValue
	}
	ctx = ctxutil.SetHops(ctx, hops)
	keyID := n.rt.Space().NewIDFromString(key)

	if n.isResponsible(keyID) {
		n.store.Insert(keyID, key, value)
		return n.rt.Self().Port, nil
	}
	if err := ctxutil.CheckHopLimit(ctx, n.hopLimit); err != nil {
		return 0, err
	}

	fctx := ctxutil.IncHops(ctx)
	succ := n.rt.Successor()
	data, err := n.call(ctx, succ.Addr(), envelope.Insert, origin, envelope.InsertRequest{Key: key, Value: value, Hops: ctxutil.HopsFromContext(fctx)})
	if err != nil {
		return 0, fmt.Errorf("insert: forward to %s: %w", succ.Addr(), err)
	}
	ir, err := envelope.Decode[envelope.InsertResponse](data)
	if err != nil {
		return 0, fmt.Errorf("insert: decode reply from %s: %w", succ.Addr(), err)
	}
	return ir.StoredAt, nil
}

// Query retrieves the record stored under key, originating a fresh
// forwarding chain from this node. It returns domain.ErrResourceNotFound
// if no such key exists anywhere it could locate it.
func (n *Node) Query(ctx context.Context, key string) (domain.Record, error) {
	return n.query(ctx, key, n.selfOrigin(), 0)
}

func (n *Node) query(ctx context.Context, key string, origin envelope.Origin, hops int) (domain.Record, error) {
	if err := ctxutil.CheckContext(ctx); err != nil {
		return domain.Record{}, err
	}
	ctx = ctxutil.SetHops(ctx, hops)
	keyID := n.rt.Space().NewIDFromString(key)

	if n.isResponsible(keyID) {
		rec, ok := n.store.Query(keyID)
		if !ok {
			return domain.Record{}, domain.ErrResourceNotFound
		}
		return rec, nil
	}
	if err := ctxutil.CheckHopLimit(ctx, n.hopLimit); err != nil {
		return domain.Record{}, err
	}

	fctx := ctxutil.IncHops(ctx)
	succ := n.rt.Successor()
	data, err := n.call(ctx, succ.Addr(), envelope.Query, origin, envelope.QueryRequest{Key: key, Hops: ctxutil.HopsFromContext(fctx)})
	if err != nil {
		return domain.Record{}, fmt.Errorf("query: forward to %s: %w", succ.Addr(), err)
	}
	qr, err := envelope.Decode[envelope.QueryResponse](data)
	if err != nil {
		return domain.Record{}, fmt.Errorf("query: decode reply from %s: %w", succ.Addr(), err)
	}
	if qr.Result == nil {
		return domain.Record{}, domain.ErrResourceNotFound
	}
	return domain.Record{KeyID: keyID, Key: qr.Result.Key, Value: qr.Result.Value}, nil
}

// Delete removes the record stored under key, originating a fresh
// forwarding chain from this node. It returns the port of the node the
// record was deleted from (the reply's deleted_from).
func (n *Node) Delete(ctx context.Context, key string) (int, error) {
	return n.delete(ctx, key, n.selfOrigin(), 0)
}

func (n *Node) delete(ctx context.Context, key string, origin envelope.Origin, hops int) (int, error) {
	if err := ctxutil.CheckContext(ctx); err != nil {
		return 0, err
	}
	ctx = ctxutil.SetHops(ctx, hops)
	keyID := n.rt.Space().NewIDFromString(key)

	if n.isResponsible(keyID) {
		n.store.Delete(keyID)
		return n.rt.Self().Port, nil
	}
	if err := ctxutil.CheckHopLimit(ctx, n.hopLimit); err != nil {
		return 0, err
	}

	fctx := ctxutil.IncHops(ctx)
	succ := n.rt.Successor()
	data, err := n.call(ctx, succ.Addr(), envelope.Delete, origin, envelope.DeleteRequest{Key: key, Hops: ctxutil.HopsFromContext(fctx)})
	if err != nil {
		return 0, fmt.Errorf("delete: forward to %s: %w", succ.Addr(), err)
	}
	dr, err := envelope.Decode[envelope.DeleteResponse](data)
	if err != nil {
		return 0, fmt.Errorf("delete: decode reply from %s: %w", succ.Addr(), err)
	}
	return dr.DeletedFrom, nil
}

// snapshotOf converts a local store snapshot into its wire form.
func snapshotOf(records map[string]domain.Record) envelope.StoreSnapshot {
	snap := make(envelope.StoreSnapshot, len(records))
	for keyIDHex, rec := range records {
		snap[keyIDHex] = envelope.RecordWire{Key: rec.Key, Value: rec.Value}
	}
	return snap
}

// Overlay walks the entire ring starting from this node, collecting
// every member's identity. Per §4.6 the traversal terminates when a
// hop's own successor equals the start identifier, not on a hop count:
// if membership changes mid-traversal the result can omit or repeat a
// node. This race is intentional and left unresolved, as documented.
func (n *Node) Overlay(ctx context.Context) ([]domain.NodeRef, error) {
	self := n.rt.Self()
	return n.overlay(ctx, self.ID, []domain.NodeRef{self}, n.selfOrigin())
}

func (n *Node) overlay(ctx context.Context, startID domain.ID, acc []domain.NodeRef, origin envelope.Origin) ([]domain.NodeRef, error) {
	if err := ctxutil.CheckContext(ctx); err != nil {
		return nil, err
	}
	succ := n.rt.Successor()
	if succ.ID.Equal(startID) {
		return acc, nil
	}

	wireAcc := make([]envelope.NodeWire, len(acc))
	for i, r := range acc {
		wireAcc[i] = toWire(r)
	}
	data, err := n.call(ctx, succ.Addr(), envelope.Overlay, origin, envelope.OverlayRequest{StartID: startID.String(), Acc: wireAcc})
	if err != nil {
		return nil, fmt.Errorf("overlay: forward to %s: %w", succ.Addr(), err)
	}
	or, err := envelope.Decode[envelope.OverlayResponse](data)
	if err != nil {
		return nil, fmt.Errorf("overlay: decode reply from %s: %w", succ.Addr(), err)
	}
	result := make([]domain.NodeRef, len(or.Ring))
	for i, w := range or.Ring {
		result[i], err = fromWire(n.rt.Space(), w)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// handleOverlay is invoked when this node receives an in-flight OVERLAY
// request: it appends itself to the accumulator and continues the same
// traversal logic Overlay uses to originate one.
func (n *Node) handleOverlay(ctx context.Context, startIDHex string, accWire []envelope.NodeWire, origin envelope.Origin) ([]domain.NodeRef, error) {
	startID, err := n.rt.Space().FromHexString(startIDHex)
	if err != nil {
		return nil, fmt.Errorf("overlay: invalid start_id: %w", err)
	}
	acc := make([]domain.NodeRef, 0, len(accWire)+1)
	for _, w := range accWire {
		ref, err := fromWire(n.rt.Space(), w)
		if err != nil {
			return nil, err
		}
		acc = append(acc, ref)
	}
	acc = append(acc, n.rt.Self())
	return n.overlay(ctx, startID, acc, origin)
}

// QueryAll walks the entire ring starting from this node, collecting
// every member's complete local store. It shares OVERLAY's termination
// race (§4.6): the result reflects whatever membership existed at the
// moment each hop was visited, not a single consistent snapshot.
func (n *Node) QueryAll(ctx context.Context) (map[string]envelope.StoreSnapshot, error) {
	self := n.rt.Self()
	acc := map[string]envelope.StoreSnapshot{self.Addr(): snapshotOf(n.store.All())}
	return n.queryAll(ctx, self.ID, acc, n.selfOrigin())
}

func (n *Node) queryAll(ctx context.Context, startID domain.ID, acc map[string]envelope.StoreSnapshot, origin envelope.Origin) (map[string]envelope.StoreSnapshot, error) {
	if err := ctxutil.CheckContext(ctx); err != nil {
		return nil, err
	}
	succ := n.rt.Successor()
	if succ.ID.Equal(startID) {
		return acc, nil
	}

	data, err := n.call(ctx, succ.Addr(), envelope.QueryAll, origin, envelope.QueryAllRequest{StartID: startID.String(), Acc: acc})
	if err != nil {
		return nil, fmt.Errorf("query_all: forward to %s: %w", succ.Addr(), err)
	}
	qr, err := envelope.Decode[envelope.QueryAllResponse](data)
	if err != nil {
		return nil, fmt.Errorf("query_all: decode reply from %s: %w", succ.Addr(), err)
	}
	return qr.Result, nil
}

// handleQueryAll is invoked when this node receives an in-flight
// QUERY_ALL request: it records its own store snapshot and continues
// the traversal.
func (n *Node) handleQueryAll(ctx context.Context, startIDHex string, acc map[string]envelope.StoreSnapshot, origin envelope.Origin) (map[string]envelope.StoreSnapshot, error) {
	startID, err := n.rt.Space().FromHexString(startIDHex)
	if err != nil {
		return nil, fmt.Errorf("query_all: invalid start_id: %w", err)
	}
	if acc == nil {
		acc = map[string]envelope.StoreSnapshot{}
	}
	self := n.rt.Self()
	acc[self.Addr()] = snapshotOf(n.store.All())
	return n.queryAll(ctx, startID, acc, origin)
}
