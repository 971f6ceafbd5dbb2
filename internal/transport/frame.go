// Package transport implements the peer-to-peer wire transport: a
// length-prefixed JSON framing over net.Conn, a connection-accepting
// Server, and a reusable outbound connection Pool. It replaces a
// generated RPC stub with a hand-framed protocol, since the envelope
// shape (§4.3) is deliberately transport-agnostic JSON.
package transport

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"

	"chordring/internal/envelope"
)

// MaxFrameSize bounds a single frame body, guarding against a
// malformed or hostile length prefix forcing an unbounded allocation.
const MaxFrameSize = 16 << 20 // 16 MiB

// WriteFrame writes a uint32 big-endian length prefix followed by the
// JSON encoding of v.
func WriteFrame(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if len(body) > MaxFrameSize {
		return fmt.Errorf("frame too large: %d bytes", len(body))
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// ReadFrame reads a uint32 big-endian length prefix and its JSON body,
// decoding into v. A short read or EOF before the full body arrives is
// reported as a connection error, per §6.
func ReadFrame(r io.Reader, v any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return fmt.Errorf("read frame length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return fmt.Errorf("frame too large: %d bytes", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return fmt.Errorf("read frame body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("unmarshal frame body: %w", err)
	}
	return nil
}

// WriteRequest frames req onto conn.
func WriteRequest(conn net.Conn, req envelope.Request) error {
	return WriteFrame(conn, req)
}

// ReadResponse reads one framed Response from conn.
func ReadResponse(conn net.Conn) (envelope.Response, error) {
	var resp envelope.Response
	err := ReadFrame(conn, &resp)
	return resp, err
}

// ReadRequest reads one framed Request from r.
func ReadRequest(r io.Reader) (envelope.Request, error) {
	var req envelope.Request
	err := ReadFrame(r, &req)
	return req, err
}

// WriteResponse frames resp onto conn.
func WriteResponse(conn net.Conn, resp envelope.Response) error {
	return WriteFrame(conn, resp)
}
