package envelope

// NodeWire is the wire form of a domain.NodeRef: a ring identifier and
// the address to dial. Every message that carries a NodeRef — PING's
// successor/predecessor, FIND_SUCCESSOR's result, JOIN_REQUEST's
// new_node, SET_SUCCESSOR/SET_PREDECESSOR's node — uses this shape.
type NodeWire struct {
	ID   string `json:"id"`
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// PingResponse is the data of an OK reply to PING.
type PingResponse struct {
	NodeID      string    `json:"node_id"`
	IP          string    `json:"ip"`
	Port        int       `json:"port"`
	Successor   *NodeWire `json:"successor"`
	Predecessor *NodeWire `json:"predecessor"`
}

// FindSuccessorRequest is the data of a FIND_SUCCESSOR request. Hops
// carries the forwarding depth so the receiving node can enforce the
// hop-limit safety net across process boundaries; it is absent (zero)
// on the first hop and incremented by each forwarder.
type FindSuccessorRequest struct {
	ID   string `json:"id"`
	Hops int    `json:"hops,omitempty"`
}

// FindSuccessorResponse is the data of an OK reply to FIND_SUCCESSOR.
type FindSuccessorResponse struct {
	Successor NodeWire `json:"successor"`
}

// SuccessorResponse is the data of an OK reply to GET_SUCCESSOR and
// SET_SUCCESSOR.
type SuccessorResponse struct {
	Successor NodeWire `json:"successor"`
}

// PredecessorResponse is the data of an OK reply to GET_PREDECESSOR and
// SET_PREDECESSOR.
type PredecessorResponse struct {
	Predecessor NodeWire `json:"predecessor"`
}

// SetNodeRequest is the data of SET_SUCCESSOR and SET_PREDECESSOR
// requests.
type SetNodeRequest struct {
	Node NodeWire `json:"node"`
}

// JoinRequestData is the data of a JOIN_REQUEST request.
type JoinRequestData struct {
	NewNode NodeWire `json:"new_node"`
}

// JoinMode names the two cases §4.7.1 distinguishes at the bootstrap
// node.
type JoinMode string

const (
	ModeTwoNodeBootstrap JoinMode = "two_node_bootstrap"
	ModeNormal           JoinMode = "normal"
)

// JoinResponse is the data of an OK reply to JOIN_REQUEST. Predecessor
// is only populated in ModeTwoNodeBootstrap, where the bootstrap node
// returns its own coordinates as both successor and predecessor.
type JoinResponse struct {
	Successor   NodeWire `json:"successor"`
	Predecessor *NodeWire `json:"predecessor,omitempty"`
	Mode        JoinMode `json:"mode"`
}

// TransferKeysRequest is the data of a TRANSFER_KEYS request. The
// receiver moves every record it holds in (S.predecessor.id, NewNode.ID]
// — NewNode's new ownership arc — into NewNode's store. The left bound
// is read from the receiver's own predecessor pointer at handling time,
// not carried on the wire: see spec.md §9 open question #1, which
// depends on that pointer possibly already being NewNode by the time
// TRANSFER_KEYS arrives.
type TransferKeysRequest struct {
	NewNode NodeWire `json:"new_node"`
}

// TransferKeysResponse is the data of an OK reply to TRANSFER_KEYS.
type TransferKeysResponse struct {
	Moved int `json:"moved"`
}

// Item is a single transferred or inserted record on the wire.
type Item struct {
	KeyID string `json:"key_id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// BulkInsertRequest is the data of a BULK_INSERT request.
type BulkInsertRequest struct {
	Items []Item `json:"items"`
}

// BulkInsertResponse is the data of an OK reply to BULK_INSERT.
type BulkInsertResponse struct {
	Count int `json:"count"`
}

// InsertRequest is the data of an INSERT request. Hops carries the
// forwarding depth across the chain of successor hops this request may
// travel before reaching the node responsible for Key.
type InsertRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Hops  int    `json:"hops,omitempty"`
}

// InsertResponse is the data of an OK reply to INSERT.
type InsertResponse struct {
	StoredAt int `json:"stored_at"`
}

// QueryRequest is the data of a QUERY request for a single key. Key ==
// "*" is the special case of §4.5: it triggers a ring-wide QUERY_ALL
// traversal instead of a single-key lookup, and the receiving node
// never forwards it by hashed key.
type QueryRequest struct {
	Key  string `json:"key"`
	Hops int    `json:"hops,omitempty"`
}

// RecordWire is the wire form of a stored record.
type RecordWire struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// QueryResponse is the data of an OK reply to QUERY. Result is nil when
// the key is absent. All carries the ring-wide traversal results instead,
// and Result is left nil, when the request's Key was "*".
type QueryResponse struct {
	Result *RecordWire              `json:"result,omitempty"`
	All    map[string]StoreSnapshot `json:"all,omitempty"`
}

// DeleteRequest is the data of a DELETE request.
type DeleteRequest struct {
	Key  string `json:"key"`
	Hops int    `json:"hops,omitempty"`
}

// DeleteResponse is the data of an OK reply to DELETE.
type DeleteResponse struct {
	DeletedFrom int `json:"deleted_from"`
}

// QueryAllRequest is the data carried along a QUERY_ALL traversal. Both
// fields are absent on the first hop (the initiator fills them in).
type QueryAllRequest struct {
	StartID string                `json:"start_id,omitempty"`
	Acc     map[string]StoreSnapshot `json:"acc,omitempty"`
}

// StoreSnapshot is one node's contribution to a QUERY_ALL accumulator:
// its complete local store at the moment it was visited.
type StoreSnapshot map[string]RecordWire

// QueryAllResponse is the data of the final OK reply to a QUERY_ALL
// traversal, returned only by the node that closes the ring.
type QueryAllResponse struct {
	Result map[string]StoreSnapshot `json:"result"`
}

// OverlayRequest is the data carried along an OVERLAY traversal. Both
// fields are absent on the first hop.
type OverlayRequest struct {
	StartID string     `json:"start_id,omitempty"`
	Acc     []NodeWire `json:"acc,omitempty"`
}

// OverlayResponse is the data of the final OK reply to an OVERLAY
// traversal.
type OverlayResponse struct {
	Ring []NodeWire `json:"ring"`
}

// DepartResponse is the data of an OK reply to DEPART.
type DepartResponse struct {
	Msg string `json:"msg"`
}
