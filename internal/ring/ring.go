// Package ring holds a node's view of its position on the identifier
// ring: the immediate successor and predecessor pointers. There is no
// finger table, successor list, or de Bruijn window — routing is
// purely linear-hop, one successor pointer at a time.
package ring

import (
	"sync"

	"chordring/internal/domain"
	"chordring/internal/logger"
)

// pointer holds a single NodeRef behind its own lock, so a read of
// Successor can never observe a torn write.
type pointer struct {
	mu   sync.RWMutex
	node domain.NodeRef
}

func (p *pointer) get() domain.NodeRef {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.node
}

func (p *pointer) set(n domain.NodeRef) {
	p.mu.Lock()
	p.node = n
	p.mu.Unlock()
}

// Table holds one node's successor and predecessor pointers.
//
// Reads of either pointer may race with a concurrent update; per §5
// this is acceptable for routing — a stale pointer costs at most one
// extra hop or a transient misroute, self-correcting on the next
// request.
type Table struct {
	logger      logger.Logger
	space       domain.Space
	self        domain.NodeRef
	successor   *pointer
	predecessor *pointer
}

// Option configures a Table.
type Option func(*Table)

// WithLogger sets the logger used by the table.
func WithLogger(l logger.Logger) Option {
	return func(t *Table) { t.logger = l }
}

// New builds a Table for self with both pointers unset.
func New(self domain.NodeRef, space domain.Space, opts ...Option) *Table {
	t := &Table{
		logger:      logger.NopLogger{},
		space:       space,
		self:        self,
		successor:   &pointer{},
		predecessor: &pointer{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger.Debug("ring table initialized", logger.FNode("self", self))
	return t
}

// InitSingleNode makes self its own successor and predecessor — the
// state of a freshly bootstrapped, solitary ring.
func (t *Table) InitSingleNode() {
	t.successor.set(t.self)
	t.predecessor.set(t.self)
	t.logger.Debug("ring table set to single-node")
}

// Space returns the identifier space this table routes over.
func (t *Table) Space() domain.Space { return t.space }

// Self returns the local node owning this table.
func (t *Table) Self() domain.NodeRef { return t.self }

// Successor returns the current successor pointer.
func (t *Table) Successor() domain.NodeRef {
	n := t.successor.get()
	t.logger.Debug("successor read", logger.FNode("successor", n))
	return n
}

// SetSuccessor unconditionally overwrites the successor pointer, per
// §4.7.5: there is no version check, and concurrent conflicting
// updates follow last-writer-wins.
func (t *Table) SetSuccessor(n domain.NodeRef) {
	t.successor.set(n)
	t.logger.Debug("successor set", logger.FNode("successor", n))
}

// Predecessor returns the current predecessor pointer.
func (t *Table) Predecessor() domain.NodeRef {
	n := t.predecessor.get()
	t.logger.Debug("predecessor read", logger.FNode("predecessor", n))
	return n
}

// SetPredecessor unconditionally overwrites the predecessor pointer.
func (t *Table) SetPredecessor(n domain.NodeRef) {
	t.predecessor.set(n)
	t.logger.Debug("predecessor set", logger.FNode("predecessor", n))
}

// Alone reports whether self is its own successor and predecessor —
// the only member of the ring.
func (t *Table) Alone() bool {
	succ := t.Successor()
	pred := t.Predecessor()
	return succ.Equal(t.self) && pred.Equal(t.self)
}

// DebugLog emits a single structured snapshot of the table's state.
func (t *Table) DebugLog() {
	t.logger.Debug("ring table snapshot",
		logger.FNode("self", t.self),
		logger.FNode("successor", t.successor.get()),
		logger.FNode("predecessor", t.predecessor.get()),
	)
}
