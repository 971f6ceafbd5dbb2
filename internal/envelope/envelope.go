// Package envelope defines the peer-to-peer wire protocol: the request
// and response shapes every node speaks, and the closed catalog of
// message types dispatched over them. One envelope is exchanged per
// connection: one request, one response, then the connection closes.
package envelope

import "encoding/json"

// MessageType is the dispatch key of a Request. The catalog is closed;
// an unrecognized value is a routing concern, not a protocol one — the
// receiving node replies with StatusUnknown rather than rejecting the
// connection.
type MessageType string

const (
	Ping           MessageType = "PING"
	FindSuccessor  MessageType = "FIND_SUCCESSOR"
	GetSuccessor   MessageType = "GET_SUCCESSOR"
	GetPredecessor MessageType = "GET_PREDECESSOR"
	SetSuccessor   MessageType = "SET_SUCCESSOR"
	SetPredecessor MessageType = "SET_PREDECESSOR"
	JoinRequest    MessageType = "JOIN_REQUEST"
	TransferKeys   MessageType = "TRANSFER_KEYS"
	BulkInsert     MessageType = "BULK_INSERT"
	Insert         MessageType = "INSERT"
	Query          MessageType = "QUERY"
	Delete         MessageType = "DELETE"
	QueryAll       MessageType = "QUERY_ALL"
	Overlay        MessageType = "OVERLAY"
	Depart         MessageType = "DEPART"
)

// Status is the outcome of a Request as seen by the initiator.
type Status string

const (
	StatusOK      Status = "OK"
	StatusError   Status = "ERROR"
	StatusUnknown Status = "UNKNOWN"
)

// Origin records the network address of the request's original sender.
// It is informational only; nodes must not use it to make routing
// decisions, since a forwarded request's Origin names the initiator,
// not the immediately-preceding hop.
type Origin struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// Request is the envelope carried by every peer-to-peer call.
type Request struct {
	Type   MessageType    `json:"type"`
	ReqID  string         `json:"req_id"`
	Origin Origin         `json:"origin"`
	Data   map[string]any `json:"data,omitempty"`
}

// Response is the envelope returned for every Request.
type Response struct {
	Status Status         `json:"status"`
	ReqID  string         `json:"req_id"`
	Data   map[string]any `json:"data,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// OK builds a successful Response echoing reqID, with data marshaled
// from payload via its json tags.
func OK(reqID string, payload any) (Response, error) {
	data, err := ToData(payload)
	if err != nil {
		return Response{}, err
	}
	return Response{Status: StatusOK, ReqID: reqID, Data: data}, nil
}

// Err builds an ERROR Response echoing reqID.
func Err(reqID string, err error) Response {
	return Response{Status: StatusError, ReqID: reqID, Error: err.Error()}
}

// Unknown builds an UNKNOWN Response for a request whose type was not
// recognized, per §4.3: data.received_type is set to the offending type.
func Unknown(reqID string, receivedType string) Response {
	return Response{
		Status: StatusUnknown,
		ReqID:  reqID,
		Data:   map[string]any{"received_type": receivedType},
	}
}

// ToData marshals payload to its map[string]any wire form via its json
// tags, so typed payload structs and the envelope's map[string]any
// field round-trip through the same encoding rules.
func ToData(payload any) (map[string]any, error) {
	if payload == nil {
		return nil, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// Decode converts a Request or Response's map[string]any data into a
// typed payload struct via a JSON round-trip, so callers see ordinary
// Go structs at the dispatch boundary instead of manual map indexing.
func Decode[T any](data map[string]any) (T, error) {
	var out T
	raw, err := json.Marshal(data)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}
