package ring

import (
	"testing"

	"chordring/internal/domain"
)

func mustSpace(t *testing.T) domain.Space {
	t.Helper()
	sp, err := domain.NewSpace(160)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	return sp
}

func TestInitSingleNodePointsAtSelf(t *testing.T) {
	sp := mustSpace(t)
	self := domain.NodeRef{ID: sp.NewIDFromString("self"), IP: "10.0.0.1", Port: 7000}
	tbl := New(self, sp)
	tbl.InitSingleNode()

	if !tbl.Alone() {
		t.Fatalf("expected table to report Alone() after InitSingleNode")
	}
	if !tbl.Successor().Equal(self) || !tbl.Predecessor().Equal(self) {
		t.Fatalf("expected both pointers to reference self")
	}
}

func TestSetSuccessorPredecessorOverwriteUnconditionally(t *testing.T) {
	sp := mustSpace(t)
	self := domain.NodeRef{ID: sp.NewIDFromString("self"), IP: "10.0.0.1", Port: 7000}
	other := domain.NodeRef{ID: sp.NewIDFromString("other"), IP: "10.0.0.2", Port: 7001}

	tbl := New(self, sp)
	tbl.InitSingleNode()
	tbl.SetSuccessor(other)
	tbl.SetPredecessor(other)

	if !tbl.Successor().Equal(other) {
		t.Fatalf("expected successor to be overwritten")
	}
	if !tbl.Predecessor().Equal(other) {
		t.Fatalf("expected predecessor to be overwritten")
	}
	if tbl.Alone() {
		t.Fatalf("expected Alone() to be false once pointers diverge from self")
	}
}
