package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"chordring/internal/envelope"
	"chordring/internal/logger"
)

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolLogger sets the logger used by the pool.
func WithPoolLogger(l logger.Logger) PoolOption {
	return func(p *Pool) { p.lgr = l }
}

// WithDialTimeout overrides the default dial timeout for new
// connections.
func WithDialTimeout(d time.Duration) PoolOption {
	return func(p *Pool) { p.dialTimeout = d }
}

// WithIdleTTL enables a background eviction loop that closes pooled,
// unreferenced connections idle for at least ttl.
func WithIdleTTL(ttl time.Duration) PoolOption {
	return func(p *Pool) { p.idleTTL = ttl }
}

type entry struct {
	conn     net.Conn
	refs     int
	lastUsed time.Time
}

// Pool manages reusable outbound connections to peer nodes, keyed by
// address. It merges ref-counting (so a connection mid-request is
// never evicted out from under its caller) with idle-TTL eviction (so
// connections to nodes no longer contacted eventually close). Call does
// not use the pooled set: it dials one connection per exchange.
type Pool struct {
	lgr         logger.Logger
	dialTimeout time.Duration
	idleTTL     time.Duration

	mu     sync.Mutex
	conns  map[string]*entry
	stopCh chan struct{}
	once   sync.Once
}

// NewPool builds a Pool with sane defaults (3s dial timeout, no
// eviction loop unless WithIdleTTL is given).
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		lgr:         logger.NopLogger{},
		dialTimeout: 3 * time.Second,
		conns:       make(map[string]*entry),
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.idleTTL > 0 {
		go p.evictLoop()
	}
	return p
}

// AddRef returns a live connection to addr, dialing one if none is
// pooled, and increments its reference count. Callers MUST pair every
// AddRef with a Release.
func (p *Pool) AddRef(addr string) (net.Conn, error) {
	p.mu.Lock()
	if e, ok := p.conns[addr]; ok {
		e.refs++
		e.lastUsed = time.Now()
		conn := e.conn
		p.mu.Unlock()
		return conn, nil
	}
	p.mu.Unlock()

	conn, err := net.DialTimeout("tcp", addr, p.dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	p.mu.Lock()
	if e, ok := p.conns[addr]; ok {
		// Lost the race to another dialer; keep theirs, drop ours.
		e.refs++
		e.lastUsed = time.Now()
		existing := e.conn
		p.mu.Unlock()
		conn.Close()
		return existing, nil
	}
	p.conns[addr] = &entry{conn: conn, refs: 1, lastUsed: time.Now()}
	p.mu.Unlock()
	p.lgr.Debug("dialed new peer connection", logger.F("addr", addr))
	return conn, nil
}

// Release decrements addr's reference count. If the connection failed
// (ok=false), it is closed and evicted immediately regardless of
// remaining references, since a broken net.Conn is never worth
// reusing.
func (p *Pool) Release(addr string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, found := p.conns[addr]
	if !found {
		return
	}
	if !ok {
		delete(p.conns, addr)
		p.mu.Unlock()
		e.conn.Close()
		p.mu.Lock()
		return
	}
	e.refs--
	e.lastUsed = time.Now()
}

// DialEphemeral opens a connection to addr that the pool does not
// track, for one-off calls (e.g. a client tool issuing a single
// request) that have no reason to hold a pooled connection open.
func (p *Pool) DialEphemeral(addr string) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, p.dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}

// Call performs one request/response round trip against addr over a
// freshly dialed connection and closes it afterward. A peer's Server
// answers exactly one request per connection, so Call never reuses the
// pooled connections AddRef hands out.
func (p *Pool) Call(addr string, req envelope.Request, timeout time.Duration) (envelope.Response, error) {
	conn, err := p.DialEphemeral(addr)
	if err != nil {
		return envelope.Response{}, err
	}
	defer conn.Close()

	if timeout > 0 {
		conn.SetDeadline(time.Now().Add(timeout))
	}
	if err := WriteRequest(conn, req); err != nil {
		return envelope.Response{}, fmt.Errorf("write request to %s: %w", addr, err)
	}
	resp, err := ReadResponse(conn)
	if err != nil {
		return envelope.Response{}, fmt.Errorf("read response from %s: %w", addr, err)
	}
	return resp, nil
}

// FailureTimeout evicts and closes the pooled connection to addr, if
// any, regardless of its current reference count. Callers use this
// after observing a transport-level failure that a plain Release(ok =
// false) did not already handle (e.g. a timeout detected by the
// caller's own context rather than by Call).
func (p *Pool) FailureTimeout(addr string) {
	p.mu.Lock()
	e, found := p.conns[addr]
	if found {
		delete(p.conns, addr)
	}
	p.mu.Unlock()
	if found {
		e.conn.Close()
	}
}

func (p *Pool) evictLoop() {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-t.C:
			p.evictIdle()
		}
	}
}

func (p *Pool) evictIdle() {
	now := time.Now()
	var toClose []net.Conn

	p.mu.Lock()
	for addr, e := range p.conns {
		if e.refs == 0 && now.Sub(e.lastUsed) >= p.idleTTL {
			toClose = append(toClose, e.conn)
			delete(p.conns, addr)
		}
	}
	p.mu.Unlock()

	for _, c := range toClose {
		c.Close()
	}
}

// Close stops the eviction loop and closes every pooled connection.
func (p *Pool) Close() {
	p.once.Do(func() { close(p.stopCh) })
	p.mu.Lock()
	defer p.mu.Unlock()
	for addr, e := range p.conns {
		e.conn.Close()
		delete(p.conns, addr)
	}
}
