package node

import (
	"context"
	"fmt"

	"chordring/internal/domain"
	"chordring/internal/envelope"
	"chordring/internal/logger"
)

// CreateRing initializes this node as the sole member of a brand-new
// ring: both pointers point at itself. Used when no bootstrap peer is
// configured or reachable.
func (n *Node) CreateRing() {
	n.rt.InitSingleNode()
	n.lgr.Info("ring created, this node is the sole member", logger.FNode("self", n.rt.Self()))
}

// Join contacts bootstrapAddr and carries out the handshake of §4.7.1:
// either the two-node bootstrap case (the contacted node was alone) or
// the normal case (locate the true successor, then link both
// neighbors). It finishes by pulling the keys this node now owns from
// its new successor.
func (n *Node) Join(ctx context.Context, bootstrapAddr string) error {
	self := n.rt.Self()

	data, err := n.call(ctx, bootstrapAddr, envelope.JoinRequest, n.selfOrigin(), envelope.JoinRequestData{NewNode: toWire(self)})
	if err != nil {
		return fmt.Errorf("join: request to %s: %w", bootstrapAddr, err)
	}
	jr, err := envelope.Decode[envelope.JoinResponse](data)
	if err != nil {
		return fmt.Errorf("join: decode reply from %s: %w", bootstrapAddr, err)
	}

	succ, err := fromWire(n.rt.Space(), jr.Successor)
	if err != nil {
		return fmt.Errorf("join: invalid successor in reply: %w", err)
	}

	var pred domain.NodeRef
	switch jr.Mode {
	case envelope.ModeTwoNodeBootstrap:
		if jr.Predecessor == nil {
			return fmt.Errorf("join: two_node_bootstrap reply missing predecessor")
		}
		pred, err = fromWire(n.rt.Space(), *jr.Predecessor)
		if err != nil {
			return fmt.Errorf("join: invalid predecessor in reply: %w", err)
		}
		n.rt.SetSuccessor(succ)
		n.rt.SetPredecessor(pred)

	case envelope.ModeNormal:
		predData, err := n.call(ctx, succ.Addr(), envelope.GetPredecessor, n.selfOrigin(), nil)
		if err != nil {
			return fmt.Errorf("join: get_predecessor on %s: %w", succ.Addr(), err)
		}
		pr, err := envelope.Decode[envelope.PredecessorResponse](predData)
		if err != nil {
			return fmt.Errorf("join: decode get_predecessor reply from %s: %w", succ.Addr(), err)
		}
		pred, err = fromWire(n.rt.Space(), pr.Predecessor)
		if err != nil {
			return fmt.Errorf("join: invalid predecessor in get_predecessor reply: %w", err)
		}

		n.rt.SetSuccessor(succ)
		n.rt.SetPredecessor(pred)

		if _, err := n.call(ctx, succ.Addr(), envelope.SetPredecessor, n.selfOrigin(), envelope.SetNodeRequest{Node: toWire(self)}); err != nil {
			return fmt.Errorf("join: set_predecessor on successor %s: %w", succ.Addr(), err)
		}
		if _, err := n.call(ctx, pred.Addr(), envelope.SetSuccessor, n.selfOrigin(), envelope.SetNodeRequest{Node: toWire(self)}); err != nil {
			return fmt.Errorf("join: set_successor on predecessor %s: %w", pred.Addr(), err)
		}

	default:
		return fmt.Errorf("join: unknown join mode %q", jr.Mode)
	}

	tkData, err := n.call(ctx, succ.Addr(), envelope.TransferKeys, n.selfOrigin(), envelope.TransferKeysRequest{
		NewNode: toWire(self),
	})
	if err != nil {
		return fmt.Errorf("join: transfer_keys from %s: %w", succ.Addr(), err)
	}
	tr, err := envelope.Decode[envelope.TransferKeysResponse](tkData)
	if err != nil {
		return fmt.Errorf("join: decode transfer_keys reply from %s: %w", succ.Addr(), err)
	}
	n.lgr.Info("join complete",
		logger.FNode("successor", succ), logger.FNode("predecessor", pred), logger.F("keysReceived", tr.Moved))
	return nil
}

// handleJoinRequest serves an incoming JOIN_REQUEST. If this node is
// currently alone, it adopts newNode as both neighbors directly
// (the two-node bootstrap case of §4.7.1); otherwise it locates
// newNode's true successor via the ordinary FIND_SUCCESSOR algorithm.
func (n *Node) handleJoinRequest(ctx context.Context, req envelope.JoinRequestData) (envelope.JoinResponse, error) {
	newNode, err := fromWire(n.rt.Space(), req.NewNode)
	if err != nil {
		return envelope.JoinResponse{}, fmt.Errorf("join_request: invalid new_node: %w", err)
	}

	if n.rt.Alone() {
		self := n.rt.Self()
		n.rt.SetSuccessor(newNode)
		n.rt.SetPredecessor(newNode)
		selfWire := toWire(self)
		n.lgr.Info("accepted join as two-node bootstrap", logger.FNode("newNode", newNode))
		return envelope.JoinResponse{Successor: selfWire, Predecessor: &selfWire, Mode: envelope.ModeTwoNodeBootstrap}, nil
	}

	succ, err := n.FindSuccessor(ctx, newNode.ID, n.selfOrigin(), 0)
	if err != nil {
		return envelope.JoinResponse{}, fmt.Errorf("join_request: locate successor for %s: %w", newNode.ID.String(), err)
	}
	n.lgr.Info("accepted join", logger.FNode("newNode", newNode), logger.FNode("successor", succ))
	return envelope.JoinResponse{Successor: toWire(succ), Mode: envelope.ModeNormal}, nil
}

// handleTransferKeys serves an incoming TRANSFER_KEYS request (§4.7.2):
// it moves every locally held record in (S.predecessor.id, NewNode.ID]
// into newNode's store via BULK_INSERT, then removes them locally. The
// left bound is read from this node's own predecessor pointer at the
// moment the request is handled, never from anything the joining node
// supplied — per §9 open question #1, that pointer may already have
// been updated to NewNode by a SET_PREDECESSOR that raced ahead of this
// request, in which case both bounds are NewNode.ID, Between treats the
// range as the whole ring, and every local record is transferred.
func (n *Node) handleTransferKeys(ctx context.Context, req envelope.TransferKeysRequest, origin envelope.Origin) (envelope.TransferKeysResponse, error) {
	newNode, err := fromWire(n.rt.Space(), req.NewNode)
	if err != nil {
		return envelope.TransferKeysResponse{}, fmt.Errorf("transfer_keys: invalid new_node: %w", err)
	}
	predID := n.rt.Predecessor().ID

	records := n.store.Between(predID, newNode.ID)
	if len(records) == 0 {
		return envelope.TransferKeysResponse{Moved: 0}, nil
	}

	items := make([]envelope.Item, len(records))
	for i, rec := range records {
		items[i] = envelope.Item{KeyID: rec.KeyID.String(), Key: rec.Key, Value: rec.Value}
	}
	if _, err := n.call(ctx, newNode.Addr(), envelope.BulkInsert, origin, envelope.BulkInsertRequest{Items: items}); err != nil {
		return envelope.TransferKeysResponse{}, fmt.Errorf("transfer_keys: bulk_insert to %s: %w", newNode.Addr(), err)
	}
	for _, rec := range records {
		n.store.Delete(rec.KeyID)
	}
	n.lgr.Info("transferred keys to new node", logger.FNode("newNode", newNode), logger.F("count", len(records)))
	return envelope.TransferKeysResponse{Moved: len(records)}, nil
}

// handleBulkInsert serves an incoming BULK_INSERT request (§4.7.3).
// This is explicitly not idempotent: a retried BULK_INSERT re-applies
// every item through the store's concat-on-duplicate Insert, so a
// duplicated call after a lost response can double values. That
// behavior is carried over unmodified, not papered over with a
// dedup/idempotency key.
func (n *Node) handleBulkInsert(req envelope.BulkInsertRequest) envelope.BulkInsertResponse {
	for _, item := range req.Items {
		keyID, err := n.rt.Space().FromHexString(item.KeyID)
		if err != nil {
			n.lgr.Warn("bulk_insert: skipping item with invalid key_id", logger.F("key_id", item.KeyID), logger.F("err", err))
			continue
		}
		n.store.Insert(keyID, item.Key, item.Value)
	}
	return envelope.BulkInsertResponse{Count: len(req.Items)}
}

// Depart performs a graceful leave (§4.7.4): bulk-transfer this node's
// store to its successor, then relink predecessor and successor around
// it. There is no abrupt-failure path — a node that vanishes without
// calling Depart leaves stale pointers at its neighbors, by design
// (see Non-goals: no stabilization against abrupt failures).
func (n *Node) Depart(ctx context.Context) error {
	self := n.rt.Self()
	succ := n.rt.Successor()
	pred := n.rt.Predecessor()

	if succ.Equal(self) {
		n.lgr.Info("depart: sole member of the ring, nothing to hand off")
		return nil
	}

	all := n.store.All()
	if len(all) > 0 {
		items := make([]envelope.Item, 0, len(all))
		for _, rec := range all {
			items = append(items, envelope.Item{KeyID: rec.KeyID.String(), Key: rec.Key, Value: rec.Value})
		}
		if _, err := n.call(ctx, succ.Addr(), envelope.BulkInsert, n.selfOrigin(), envelope.BulkInsertRequest{Items: items}); err != nil {
			return fmt.Errorf("depart: bulk_insert to successor %s: %w", succ.Addr(), err)
		}
	}

	if !pred.Equal(self) {
		if _, err := n.call(ctx, pred.Addr(), envelope.SetSuccessor, n.selfOrigin(), envelope.SetNodeRequest{Node: toWire(succ)}); err != nil {
			return fmt.Errorf("depart: set_successor on predecessor %s: %w", pred.Addr(), err)
		}
	}
	if _, err := n.call(ctx, succ.Addr(), envelope.SetPredecessor, n.selfOrigin(), envelope.SetNodeRequest{Node: toWire(pred)}); err != nil {
		return fmt.Errorf("depart: set_predecessor on successor %s: %w", succ.Addr(), err)
	}

	n.lgr.Info("departed ring", logger.FNode("successor", succ), logger.FNode("predecessor", pred), logger.F("keysTransferred", len(all)))
	return nil
}

// handleSetSuccessor and handleSetPredecessor serve SET_SUCCESSOR and
// SET_PREDECESSOR (§4.7.5): unconditional, last-writer-wins overwrites
// with no version check. A stale or out-of-order setter can overwrite a
// newer pointer; per §5 this is accepted as self-correcting.

func (n *Node) handleSetSuccessor(node domain.NodeRef) {
	n.rt.SetSuccessor(node)
}

func (n *Node) handleSetPredecessor(node domain.NodeRef) {
	n.rt.SetPredecessor(node)
}

func (n *Node) handleGetSuccessor() envelope.SuccessorResponse {
	return envelope.SuccessorResponse{Successor: toWire(n.rt.Successor())}
}

func (n *Node) handleGetPredecessor() envelope.PredecessorResponse {
	return envelope.PredecessorResponse{Predecessor: toWire(n.rt.Predecessor())}
}

func (n *Node) handlePing() envelope.PingResponse {
	self := n.rt.Self()
	succ := toWire(n.rt.Successor())
	pred := toWire(n.rt.Predecessor())
	return envelope.PingResponse{
		NodeID:      self.ID.String(),
		IP:          self.IP,
		Port:        self.Port,
		Successor:   &succ,
		Predecessor: &pred,
	}
}
