package transport

import (
	"errors"
	"net"
	"sync"

	"chordring/internal/envelope"
	"chordring/internal/logger"
)

// Handler dispatches a decoded Request to whatever owns the ring state
// and returns the Response to frame back to the caller.
type Handler func(req envelope.Request) envelope.Response

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used by the server.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.lgr = l }
}

// Server accepts connections and runs one request/response exchange per
// connection: §5 scheduling model is one listener plus one independent
// goroutine per accepted connection, with no assumption of handler
// serialization.
type Server struct {
	lis     net.Listener
	handler Handler
	lgr     logger.Logger

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
}

// New builds a Server that serves lis, dispatching every decoded
// Request to handler.
func New(lis net.Listener, handler Handler, opts ...Option) *Server {
	s := &Server{
		lis:     lis,
		handler: handler,
		lgr:     logger.NopLogger{},
		conns:   make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve accepts connections until the listener is closed, handling
// each on its own goroutine. It returns nil on a clean Close/Stop.
func (s *Server) Serve() error {
	for {
		conn, err := s.lis.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return err
		}
		s.track(conn)
		go s.handleConn(conn)
	}
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	defer s.untrack(conn)

	req, err := ReadRequest(conn)
	if err != nil {
		if !errors.Is(err, net.ErrClosed) {
			s.lgr.Warn("failed to read request", logger.F("error", err.Error()))
		}
		return
	}

	resp := s.dispatchSafe(req)

	if err := WriteResponse(conn, resp); err != nil {
		s.lgr.Warn("failed to write response", logger.F("error", err.Error()), logger.F("req_id", req.ReqID))
	}
}

// dispatchSafe insulates Serve's accept loop from a handler panic: one
// bad request must not take the listener down.
func (s *Server) dispatchSafe(req envelope.Request) (resp envelope.Response) {
	defer func() {
		if r := recover(); r != nil {
			s.lgr.Error("handler panic", logger.F("recover", r), logger.F("req_id", req.ReqID), logger.F("type", string(req.Type)))
			resp = envelope.Response{Status: envelope.StatusError, ReqID: req.ReqID, Error: "internal error"}
		}
	}()
	return s.handler(req)
}

// Stop closes the listener and every connection currently being
// served. It does not wait for in-flight handlers to finish: the spec
// carries no graceful-RPC-drain requirement, only a graceful DEPART
// handshake at the ring-membership layer.
func (s *Server) Stop() error {
	s.mu.Lock()
	s.closed = true
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	err := s.lis.Close()
	for _, c := range conns {
		_ = c.Close()
	}
	return err
}
