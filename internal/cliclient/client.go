// Package cliclient implements a one-shot-per-call client over the ring's
// peer protocol, for use by the interactive command-line tool: dial,
// send one envelope, read its reply, close. There is no connection
// pooling here: a node answers one request per connection, and a human
// typing commands one at a time has no need for it.
package cliclient

import (
	"context"
	"errors"
	"net"
	"time"

	"chordring/internal/envelope"
	"chordring/internal/transport"
)

// ErrNotFound is returned by Query when the key is absent from the ring.
var ErrNotFound = errors.New("key not found")

// Client issues requests against a single node address.
type Client struct {
	addr        string
	dialTimeout time.Duration
}

// Connect builds a Client targeting addr. No connection is established
// yet — each call dials fresh, per spec.md §6's one-envelope-per-connection
// contract.
func Connect(addr string) *Client {
	return &Client{addr: addr, dialTimeout: 5 * time.Second}
}

// Addr returns the node address this client targets.
func (c *Client) Addr() string { return c.addr }

func (c *Client) call(ctx context.Context, msgType envelope.MessageType, payload any) (envelope.Response, time.Duration, error) {
	start := time.Now()
	conn, err := net.DialTimeout("tcp", c.addr, c.dialTimeout)
	if err != nil {
		return envelope.Response{}, time.Since(start), err
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
	}

	data, err := envelope.ToData(payload)
	if err != nil {
		return envelope.Response{}, time.Since(start), err
	}
	req := envelope.Request{Type: msgType, ReqID: "cli", Data: data}
	if err := transport.WriteRequest(conn, req); err != nil {
		return envelope.Response{}, time.Since(start), err
	}
	resp, err := transport.ReadResponse(conn)
	return resp, time.Since(start), err
}

// Insert stores key/value on the ring, starting from this client's
// target node.
func (c *Client) Insert(ctx context.Context, key, value string) (time.Duration, error) {
	resp, delay, err := c.call(ctx, envelope.Insert, envelope.InsertRequest{Key: key, Value: value})
	if err != nil {
		return delay, err
	}
	return delay, responseErr(resp)
}

// Query retrieves the value stored under key.
func (c *Client) Query(ctx context.Context, key string) (string, time.Duration, error) {
	resp, delay, err := c.call(ctx, envelope.Query, envelope.QueryRequest{Key: key})
	if err != nil {
		return "", delay, err
	}
	if err := responseErr(resp); err != nil {
		return "", delay, err
	}
	qr, err := envelope.Decode[envelope.QueryResponse](resp.Data)
	if err != nil {
		return "", delay, err
	}
	if qr.Result == nil {
		return "", delay, ErrNotFound
	}
	return qr.Result.Value, delay, nil
}

// Delete removes the record stored under key.
func (c *Client) Delete(ctx context.Context, key string) (time.Duration, error) {
	resp, delay, err := c.call(ctx, envelope.Delete, envelope.DeleteRequest{Key: key})
	if err != nil {
		return delay, err
	}
	return delay, responseErr(resp)
}

// Overlay walks the ring starting from this client's target node and
// returns every member's wire identity.
func (c *Client) Overlay(ctx context.Context) ([]envelope.NodeWire, time.Duration, error) {
	resp, delay, err := c.call(ctx, envelope.Overlay, nil)
	if err != nil {
		return nil, delay, err
	}
	if err := responseErr(resp); err != nil {
		return nil, delay, err
	}
	or, err := envelope.Decode[envelope.OverlayResponse](resp.Data)
	return or.Ring, delay, err
}

// QueryAll walks the ring starting from this client's target node and
// returns every member's complete local store, keyed by the member's
// "ip:port" address. It
// issues a plain QUERY with the special key "*" (§4.5), not the
// internal peer-to-peer QUERY_ALL message — the client-facing surface
// is limited to INSERT/QUERY/DELETE/OVERLAY/DEPART (§6).
func (c *Client) QueryAll(ctx context.Context) (map[string]envelope.StoreSnapshot, time.Duration, error) {
	resp, delay, err := c.call(ctx, envelope.Query, envelope.QueryRequest{Key: "*"})
	if err != nil {
		return nil, delay, err
	}
	if err := responseErr(resp); err != nil {
		return nil, delay, err
	}
	qr, err := envelope.Decode[envelope.QueryResponse](resp.Data)
	return qr.All, delay, err
}

// Depart asks the target node to gracefully leave the ring.
func (c *Client) Depart(ctx context.Context) (time.Duration, error) {
	resp, delay, err := c.call(ctx, envelope.Depart, nil)
	if err != nil {
		return delay, err
	}
	return delay, responseErr(resp)
}

// Ping reports the target node's identity and current neighbor pointers.
func (c *Client) Ping(ctx context.Context) (envelope.PingResponse, time.Duration, error) {
	resp, delay, err := c.call(ctx, envelope.Ping, nil)
	if err != nil {
		return envelope.PingResponse{}, delay, err
	}
	if err := responseErr(resp); err != nil {
		return envelope.PingResponse{}, delay, err
	}
	pr, err := envelope.Decode[envelope.PingResponse](resp.Data)
	return pr, delay, err
}

func responseErr(resp envelope.Response) error {
	switch resp.Status {
	case envelope.StatusOK:
		return nil
	case envelope.StatusUnknown:
		return errors.New("node rejected request: unrecognized message type")
	default:
		return errors.New(resp.Error)
	}
}
