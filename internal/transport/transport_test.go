package transport

import (
	"net"
	"testing"
	"time"

	"chordring/internal/envelope"
)

func TestFrameRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		req, err := ReadRequest(conn)
		if err != nil {
			t.Errorf("ReadRequest: %v", err)
			return
		}
		if req.Type != envelope.Ping {
			t.Errorf("unexpected type: %s", req.Type)
		}
		resp := envelope.Response{Status: envelope.StatusOK, ReqID: req.ReqID}
		if err := WriteResponse(conn, resp); err != nil {
			t.Errorf("WriteResponse: %v", err)
		}
	}()

	conn, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req := envelope.Request{Type: envelope.Ping, ReqID: "r1"}
	if err := WriteRequest(conn, req); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}
	resp, err := ReadResponse(conn)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if resp.Status != envelope.StatusOK || resp.ReqID != "r1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	<-done
}

func TestServerDispatchesAndRecoversPanics(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	calls := make(chan envelope.MessageType, 2)
	srv := New(ln, func(req envelope.Request) envelope.Response {
		calls <- req.Type
		if req.Type == envelope.Depart {
			panic("boom")
		}
		return envelope.Response{Status: envelope.StatusOK, ReqID: req.ReqID}
	})
	go srv.Serve()
	defer srv.Stop()

	pool := NewPool()
	defer pool.Close()

	resp, err := pool.Call(ln.Addr().String(), envelope.Request{Type: envelope.Ping, ReqID: "a"}, time.Second)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if resp.Status != envelope.StatusOK {
		t.Fatalf("unexpected status: %s", resp.Status)
	}

	resp, err = pool.Call(ln.Addr().String(), envelope.Request{Type: envelope.Depart, ReqID: "b"}, time.Second)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if resp.Status != envelope.StatusError {
		t.Fatalf("expected panic to surface as ERROR, got %+v", resp)
	}

	<-calls
	<-calls
}

func TestPoolReleaseEvictsOnFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	pool := NewPool()
	defer pool.Close()

	addr := ln.Addr().String()
	conn, err := pool.AddRef(addr)
	if err != nil {
		t.Fatalf("AddRef: %v", err)
	}
	conn.Close()
	pool.Release(addr, false)

	pool.mu.Lock()
	_, found := pool.conns[addr]
	pool.mu.Unlock()
	if found {
		t.Fatalf("expected connection to be evicted after failed release")
	}
}
