package node

import (
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"chordring/internal/domain"
	"chordring/internal/envelope"
	"chordring/internal/ring"
	"chordring/internal/storage"
	"chordring/internal/transport"
)

// testNode wires a Node end-to-end: a live listener, its own
// connection pool, an in-memory store, and a background Serve loop —
// enough to exercise forwarding across real TCP connections.
type testNode struct {
	n    *Node
	addr string
	ln   net.Listener
}

func newTestNode(t *testing.T, space domain.Space) *testNode {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	self := domain.NodeRef{ID: space.NewIDFromString(ln.Addr().String()), IP: host, Port: port}
	rt := ring.New(self, space)
	pool := transport.NewPool()
	n := New(rt, pool, storage.NewMemory(nil), 16, 2*time.Second)

	srv := transport.New(ln, n.Dispatch)
	go srv.Serve()

	return &testNode{n: n, addr: self.Addr(), ln: ln}
}

func (tn *testNode) close() {
	tn.n.pool.Close()
	tn.ln.Close()
}

func mustSpace(t *testing.T) domain.Space {
	t.Helper()
	sp, err := domain.NewSpace(160)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	return sp
}

func TestSingleNodeOwnsWholeRing(t *testing.T) {
	sp := mustSpace(t)
	tn := newTestNode(t, sp)
	defer tn.close()
	tn.n.CreateRing()

	if !tn.n.isResponsible(sp.NewIDFromString("anything")) {
		t.Fatalf("a solitary node must own every key")
	}
}

func TestInsertQueryDeleteLocal(t *testing.T) {
	sp := mustSpace(t)
	tn := newTestNode(t, sp)
	defer tn.close()
	tn.n.CreateRing()

	ctx := context.Background()
	if _, err := tn.n.Insert(ctx, "foo", "bar"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	rec, err := tn.n.Query(ctx, "foo")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if rec.Value != "bar" {
		t.Fatalf("got value %q, want %q", rec.Value, "bar")
	}

	if _, err := tn.n.Insert(ctx, "foo", "baz"); err != nil {
		t.Fatalf("second Insert: %v", err)
	}
	rec, err = tn.n.Query(ctx, "foo")
	if err != nil {
		t.Fatalf("Query after second insert: %v", err)
	}
	if rec.Value != "bar,baz" {
		t.Fatalf("expected concat-on-duplicate merge, got %q", rec.Value)
	}

	if _, err := tn.n.Delete(ctx, "foo"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := tn.n.Query(ctx, "foo"); err != domain.ErrResourceNotFound {
		t.Fatalf("expected ErrResourceNotFound after delete, got %v", err)
	}
}

func TestQueryMissingKeyReturnsNotFound(t *testing.T) {
	sp := mustSpace(t)
	tn := newTestNode(t, sp)
	defer tn.close()
	tn.n.CreateRing()

	if _, err := tn.n.Query(context.Background(), "absent"); err != domain.ErrResourceNotFound {
		t.Fatalf("expected ErrResourceNotFound, got %v", err)
	}
}

func TestInsertRejectsMissingKeyOrValue(t *testing.T) {
	sp := mustSpace(t)
	tn := newTestNode(t, sp)
	defer tn.close()
	tn.n.CreateRing()

	ctx := context.Background()
	if _, err := tn.n.Insert(ctx, "", "v"); err != ErrMissingKeyOrValue {
		t.Fatalf("expected ErrMissingKeyOrValue for an empty key, got %v", err)
	}
	if _, err := tn.n.Insert(ctx, "k", ""); err != ErrMissingKeyOrValue {
		t.Fatalf("expected ErrMissingKeyOrValue for an empty value, got %v", err)
	}
}

func TestQueryStarTriggersRingTraversal(t *testing.T) {
	sp := mustSpace(t)
	a, b := twoNodeRing(t, sp)
	defer a.close()
	defer b.close()

	ctx := context.Background()
	if _, err := a.n.Insert(ctx, "k1", "v1"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := a.n.Insert(ctx, "k2", "v2"); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	resp := a.n.Dispatch(envelope.Request{Type: envelope.Query, ReqID: "t", Data: map[string]any{"key": "*"}})
	if resp.Status != envelope.StatusOK {
		t.Fatalf("expected OK, got %+v", resp)
	}
	qr, err := envelope.Decode[envelope.QueryResponse](resp.Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if qr.Result != nil {
		t.Fatalf("expected Result nil for a \"*\" query, got %+v", qr.Result)
	}
	if len(qr.All) != 2 {
		t.Fatalf("expected a store snapshot from both ring members, got %d", len(qr.All))
	}
}

// TestTransferKeysReadsLivePredecessorPointer pins down §9 open question
// #1: handleTransferKeys must compute its transfer range from this
// node's own predecessor pointer at call time, not from anything the
// joining node supplies. Forcing that pointer to already equal the
// joining node (simulating a SET_PREDECESSOR that raced ahead of
// TRANSFER_KEYS) collapses Between's interval to the whole ring, which
// only happens if the live pointer is actually consulted.
func TestTransferKeysReadsLivePredecessorPointer(t *testing.T) {
	sp := mustSpace(t)
	s := newTestNode(t, sp)
	defer s.close()
	s.n.CreateRing()

	newNode := newTestNode(t, sp)
	defer newNode.close()

	ctx := context.Background()
	if _, err := s.n.Insert(ctx, "alpha", "v1"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := s.n.Insert(ctx, "beta", "v2"); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	newRef := newNode.n.Table().Self()
	s.n.Table().SetPredecessor(newRef)

	resp, err := s.n.handleTransferKeys(ctx, envelope.TransferKeysRequest{NewNode: toWire(newRef)}, s.n.selfOrigin())
	if err != nil {
		t.Fatalf("handleTransferKeys: %v", err)
	}
	if resp.Moved != 2 {
		t.Fatalf("expected the raced predecessor pointer to collapse the range to the whole ring, got %d moved", resp.Moved)
	}
	if _, ok := newNode.n.store.Query(sp.NewIDFromString("alpha")); !ok {
		t.Fatalf("expected alpha to have been transferred to the new node")
	}
}

// twoNodeRing joins b to a via the bootstrap handshake and returns both,
// ordered so a.ID < b.ID is not assumed — callers query by node, not by
// position.
func twoNodeRing(t *testing.T, sp domain.Space) (a, b *testNode) {
	t.Helper()
	a = newTestNode(t, sp)
	a.n.CreateRing()
	b = newTestNode(t, sp)

	if err := b.n.Join(context.Background(), a.addr); err != nil {
		t.Fatalf("Join: %v", err)
	}
	return a, b
}

func TestJoinLinksBothNodes(t *testing.T) {
	sp := mustSpace(t)
	a, b := twoNodeRing(t, sp)
	defer a.close()
	defer b.close()

	if succ := a.n.Table().Successor(); !succ.Equal(b.n.Self()) {
		t.Fatalf("a.successor = %s, want b", succ.ID)
	}
	if pred := a.n.Table().Predecessor(); !pred.Equal(b.n.Self()) {
		t.Fatalf("a.predecessor = %s, want b", pred.ID)
	}
	if succ := b.n.Table().Successor(); !succ.Equal(a.n.Self()) {
		t.Fatalf("b.successor = %s, want a", succ.ID)
	}
	if pred := b.n.Table().Predecessor(); !pred.Equal(a.n.Self()) {
		t.Fatalf("b.predecessor = %s, want a", pred.ID)
	}
}

func TestInsertForwardsToOwner(t *testing.T) {
	sp := mustSpace(t)
	a, b := twoNodeRing(t, sp)
	defer a.close()
	defer b.close()

	ctx := context.Background()
	// Insert a bunch of keys from a; whichever owns each one, the other
	// must never end up with a duplicate copy.
	keys := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot"}
	for _, k := range keys {
		if _, err := a.n.Insert(ctx, k, k+"-value"); err != nil {
			t.Fatalf("Insert(%s): %v", k, err)
		}
	}

	total := 0
	for _, k := range keys {
		keyID := sp.NewIDFromString(k)
		recA, okA := a.n.store.Query(keyID)
		recB, okB := b.n.store.Query(keyID)
		switch {
		case okA && okB:
			t.Fatalf("key %s found on both nodes", k)
		case okA:
			if recA.Value != k+"-value" {
				t.Fatalf("key %s: got %q", k, recA.Value)
			}
			total++
		case okB:
			if recB.Value != k+"-value" {
				t.Fatalf("key %s: got %q", k, recB.Value)
			}
			total++
		default:
			t.Fatalf("key %s found on neither node", k)
		}
	}
	if total != len(keys) {
		t.Fatalf("expected all %d keys accounted for, got %d", len(keys), total)
	}
}

func TestDepartHandsOffKeysAndRelinks(t *testing.T) {
	sp := mustSpace(t)
	a, b := twoNodeRing(t, sp)
	defer a.close()

	ctx := context.Background()
	for _, k := range []string{"one", "two", "three", "four"} {
		if _, err := b.n.Insert(ctx, k, k); err != nil {
			t.Fatalf("Insert(%s): %v", k, err)
		}
	}

	if err := b.n.Depart(ctx); err != nil {
		t.Fatalf("Depart: %v", err)
	}
	b.close()

	if succ := a.n.Table().Successor(); !succ.Equal(a.n.Self()) {
		t.Fatalf("a.successor after b departs = %s, want self", succ.ID)
	}
	if pred := a.n.Table().Predecessor(); !pred.Equal(a.n.Self()) {
		t.Fatalf("a.predecessor after b departs = %s, want self", pred.ID)
	}

	for _, k := range []string{"one", "two", "three", "four"} {
		if _, err := a.n.Query(ctx, k); err != nil {
			t.Fatalf("key %s missing after depart: %v", k, err)
		}
	}
}

func TestOverlayVisitsEveryNode(t *testing.T) {
	sp := mustSpace(t)
	a, b := twoNodeRing(t, sp)
	defer a.close()
	defer b.close()

	ring, err := a.n.Overlay(context.Background())
	if err != nil {
		t.Fatalf("Overlay: %v", err)
	}
	if len(ring) != 2 {
		t.Fatalf("expected 2 ring members, got %d", len(ring))
	}
}

func TestQueryAllCollectsEveryStore(t *testing.T) {
	sp := mustSpace(t)
	a, b := twoNodeRing(t, sp)
	defer a.close()
	defer b.close()

	ctx := context.Background()
	if _, err := a.n.Insert(ctx, "k1", "v1"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := b.n.Insert(ctx, "k2", "v2"); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	result, err := a.n.QueryAll(ctx)
	if err != nil {
		t.Fatalf("QueryAll: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 node snapshots, got %d", len(result))
	}
	var found1, found2 bool
	for _, snap := range result {
		for _, rec := range snap {
			if rec.Value == "v1" {
				found1 = true
			}
			if rec.Value == "v2" {
				found2 = true
			}
		}
	}
	if !found1 || !found2 {
		t.Fatalf("expected both inserted values in the aggregate, got %+v", result)
	}
}

func TestHopLimitExceeded(t *testing.T) {
	sp := mustSpace(t)
	tn := newTestNode(t, sp)
	defer tn.close()
	tn.n.CreateRing()
	tn.n.hopLimit = 1

	// Force a forward by making the node not responsible for "x": set
	// predecessor to the ID of "x" itself while successor still points
	// at self. The owned arc (predecessor, self] is open on the left, so
	// isResponsible is false for "x".
	other := domain.NodeRef{ID: sp.NewIDFromString("x"), IP: "127.0.0.1", Port: 1}
	tn.n.Table().SetPredecessor(other)

	_, err := tn.n.insert(context.Background(), "x", "y", tn.n.selfOrigin(), 1)
	if err == nil || !strings.Contains(err.Error(), "hop limit") {
		t.Fatalf("expected hop limit error, got %v", err)
	}
}
