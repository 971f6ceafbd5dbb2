package node

import (
	"context"
	"errors"

	"chordring/internal/ctxutil"
	"chordring/internal/domain"
	"chordring/internal/envelope"
	"chordring/internal/telemetry"
)

// Dispatch builds the transport.Handler this node serves on its
// listener, implementing the closed message catalog of §4.8. An
// unrecognized type replies with StatusUnknown rather than closing the
// connection, per envelope.MessageType's contract; a request with no
// type at all replies with StatusError.
func (n *Node) Dispatch(req envelope.Request) envelope.Response {
	ctx := ctxutil.EnsureTraceID(context.Background(), n.rt.Self().ID)
	if n.rpcTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.rpcTimeout)
		defer cancel()
	}

	ctx, span := telemetry.StartHop(ctx, string(req.Type), n.targetIDOf(req), hopsOf(req))
	defer span.End()

	switch req.Type {
	case envelope.Ping:
		return okOrErr(req.ReqID, n.handlePing(), nil)

	case envelope.FindSuccessor:
		fr, err := envelope.Decode[envelope.FindSuccessorRequest](req.Data)
		if err != nil {
			return envelope.Err(req.ReqID, err)
		}
		targetID, err := n.rt.Space().FromHexString(fr.ID)
		if err != nil {
			return envelope.Err(req.ReqID, err)
		}
		succ, err := n.FindSuccessor(ctx, targetID, req.Origin, fr.Hops)
		return okOrErr(req.ReqID, envelope.FindSuccessorResponse{Successor: toWire(succ)}, err)

	case envelope.GetSuccessor:
		return okOrErr(req.ReqID, n.handleGetSuccessor(), nil)

	case envelope.GetPredecessor:
		return okOrErr(req.ReqID, n.handleGetPredecessor(), nil)

	case envelope.SetSuccessor:
		sr, err := envelope.Decode[envelope.SetNodeRequest](req.Data)
		if err != nil {
			return envelope.Err(req.ReqID, err)
		}
		node, err := fromWire(n.rt.Space(), sr.Node)
		if err != nil {
			return envelope.Err(req.ReqID, err)
		}
		n.handleSetSuccessor(node)
		return okOrErr(req.ReqID, envelope.SuccessorResponse{Successor: sr.Node}, nil)

	case envelope.SetPredecessor:
		sr, err := envelope.Decode[envelope.SetNodeRequest](req.Data)
		if err != nil {
			return envelope.Err(req.ReqID, err)
		}
		node, err := fromWire(n.rt.Space(), sr.Node)
		if err != nil {
			return envelope.Err(req.ReqID, err)
		}
		n.handleSetPredecessor(node)
		return okOrErr(req.ReqID, envelope.PredecessorResponse{Predecessor: sr.Node}, nil)

	case envelope.JoinRequest:
		jr, err := envelope.Decode[envelope.JoinRequestData](req.Data)
		if err != nil {
			return envelope.Err(req.ReqID, err)
		}
		resp, err := n.handleJoinRequest(ctx, jr)
		return okOrErr(req.ReqID, resp, err)

	case envelope.TransferKeys:
		tr, err := envelope.Decode[envelope.TransferKeysRequest](req.Data)
		if err != nil {
			return envelope.Err(req.ReqID, err)
		}
		resp, err := n.handleTransferKeys(ctx, tr, req.Origin)
		return okOrErr(req.ReqID, resp, err)

	case envelope.BulkInsert:
		br, err := envelope.Decode[envelope.BulkInsertRequest](req.Data)
		if err != nil {
			return envelope.Err(req.ReqID, err)
		}
		return okOrErr(req.ReqID, n.handleBulkInsert(br), nil)

	case envelope.Insert:
		ir, err := envelope.Decode[envelope.InsertRequest](req.Data)
		if err != nil {
			return envelope.Err(req.ReqID, err)
		}
		storedAt, err := n.insert(ctx, ir.Key, ir.Value, req.Origin, ir.Hops)
		return okOrErr(req.ReqID, envelope.InsertResponse{StoredAt: storedAt}, err)

	case envelope.Query:
		qr, err := envelope.Decode[envelope.QueryRequest](req.Data)
		if err != nil {
			return envelope.Err(req.ReqID, err)
		}
		if qr.Key == "*" {
			all, err := n.QueryAll(ctx)
			return okOrErr(req.ReqID, envelope.QueryResponse{All: all}, err)
		}
		rec, err := n.query(ctx, qr.Key, req.Origin, qr.Hops)
		if errors.Is(err, domain.ErrResourceNotFound) {
			return okOrErr(req.ReqID, envelope.QueryResponse{}, nil)
		}
		if err != nil {
			return envelope.Err(req.ReqID, err)
		}
		rw := envelope.RecordWire{Key: rec.Key, Value: rec.Value}
		return okOrErr(req.ReqID, envelope.QueryResponse{Result: &rw}, nil)

	case envelope.Delete:
		dr, err := envelope.Decode[envelope.DeleteRequest](req.Data)
		if err != nil {
			return envelope.Err(req.ReqID, err)
		}
		deletedFrom, err := n.delete(ctx, dr.Key, req.Origin, dr.Hops)
		return okOrErr(req.ReqID, envelope.DeleteResponse{DeletedFrom: deletedFrom}, err)

	case envelope.QueryAll:
		qar, err := envelope.Decode[envelope.QueryAllRequest](req.Data)
		if err != nil {
			return envelope.Err(req.ReqID, err)
		}
		var result map[string]envelope.StoreSnapshot
		if qar.StartID == "" {
			result, err = n.QueryAll(ctx)
		} else {
			result, err = n.handleQueryAll(ctx, qar.StartID, qar.Acc, req.Origin)
		}
		return okOrErr(req.ReqID, envelope.QueryAllResponse{Result: result}, err)

	case envelope.Overlay:
		or, err := envelope.Decode[envelope.OverlayRequest](req.Data)
		if err != nil {
			return envelope.Err(req.ReqID, err)
		}
		var ring []domain.NodeRef
		if or.StartID == "" {
			ring, err = n.Overlay(ctx)
		} else {
			ring, err = n.handleOverlay(ctx, or.StartID, or.Acc, req.Origin)
		}
		if err != nil {
			return envelope.Err(req.ReqID, err)
		}
		wireRing := make([]envelope.NodeWire, len(ring))
		for i, r := range ring {
			wireRing[i] = toWire(r)
		}
		return okOrErr(req.ReqID, envelope.OverlayResponse{Ring: wireRing}, nil)

	case envelope.Depart:
		if err := n.Depart(ctx); err != nil {
			return envelope.Err(req.ReqID, err)
		}
		return okOrErr(req.ReqID, envelope.DepartResponse{Msg: "node departed the ring"}, nil)

	case "":
		return envelope.Err(req.ReqID, errors.New("missing message type"))

	default:
		return envelope.Unknown(req.ReqID, string(req.Type))
	}
}

// okOrErr folds the common "bail out on err, else marshal payload"
// pattern every dispatch case follows.
func okOrErr(reqID string, payload any, err error) envelope.Response {
	if err != nil {
		return envelope.Err(reqID, err)
	}
	resp, encErr := envelope.OK(reqID, payload)
	if encErr != nil {
		return envelope.Err(reqID, encErr)
	}
	return resp
}

// hopsOf extracts the wire hop counter from request types that carry
// one, defaulting to 0 for a first hop or a message type with no
// forwarding chain.
func hopsOf(req envelope.Request) int {
	switch req.Type {
	case envelope.FindSuccessor:
		if fr, err := envelope.Decode[envelope.FindSuccessorRequest](req.Data); err == nil {
			return fr.Hops
		}
	case envelope.Insert:
		if ir, err := envelope.Decode[envelope.InsertRequest](req.Data); err == nil {
			return ir.Hops
		}
	case envelope.Query:
		if qr, err := envelope.Decode[envelope.QueryRequest](req.Data); err == nil {
			return qr.Hops
		}
	case envelope.Delete:
		if dr, err := envelope.Decode[envelope.DeleteRequest](req.Data); err == nil {
			return dr.Hops
		}
	}
	return 0
}

// targetIDOf extracts the identifier this request concerns, for span
// tagging. Messages with no natural target (PING, pointer setters,
// membership RPCs) are tagged with this node's own ID.
func (n *Node) targetIDOf(req envelope.Request) domain.ID {
	switch req.Type {
	case envelope.FindSuccessor:
		if fr, err := envelope.Decode[envelope.FindSuccessorRequest](req.Data); err == nil {
			if id, err := n.rt.Space().FromHexString(fr.ID); err == nil {
				return id
			}
		}
	case envelope.Insert:
		if ir, err := envelope.Decode[envelope.InsertRequest](req.Data); err == nil {
			return n.rt.Space().NewIDFromString(ir.Key)
		}
	case envelope.Query:
		if qr, err := envelope.Decode[envelope.QueryRequest](req.Data); err == nil {
			return n.rt.Space().NewIDFromString(qr.Key)
		}
	case envelope.Delete:
		if dr, err := envelope.Decode[envelope.DeleteRequest](req.Data); err == nil {
			return n.rt.Space().NewIDFromString(dr.Key)
		}
	}
	return n.rt.Self().ID
}
