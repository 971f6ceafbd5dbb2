package storage

import (
	"testing"

	"chordring/internal/domain"
)

func id(n byte) domain.ID {
	return domain.ID{n}
}

func TestInsertConcatenatesOnDuplicate(t *testing.T) {
	s := NewMemory(nil)
	s.Insert(id(1), "k", "v1")
	s.Insert(id(1), "k", "v2")

	rec, ok := s.Query(id(1))
	if !ok {
		t.Fatalf("expected record to exist")
	}
	if rec.Value != "v1,v2" {
		t.Fatalf("expected concatenated value, got %q", rec.Value)
	}
}

func TestQueryMissing(t *testing.T) {
	s := NewMemory(nil)
	_, ok := s.Query(id(9))
	if ok {
		t.Fatalf("expected missing key to report ok=false")
	}
}

func TestDeleteIsNoOpWhenAbsent(t *testing.T) {
	s := NewMemory(nil)
	s.Delete(id(5)) // must not panic
	s.Insert(id(5), "k", "v")
	s.Delete(id(5))
	if _, ok := s.Query(id(5)); ok {
		t.Fatalf("expected key to be gone after delete")
	}
}

func TestAllReturnsShallowCopy(t *testing.T) {
	s := NewMemory(nil)
	s.Insert(id(1), "a", "1")
	snap := s.All()
	snap["mutated"] = domain.Record{Key: "bogus"}

	if _, ok := s.Query(id(1)); !ok {
		t.Fatalf("original record should still be present")
	}
	if _, ok := s.All()["mutated"]; ok {
		t.Fatalf("mutating the snapshot must not affect internal storage")
	}
}

func TestBetweenFiltersByInterval(t *testing.T) {
	s := NewMemory(nil)
	s.Insert(id(10), "k10", "v")
	s.Insert(id(20), "k20", "v")
	s.Insert(id(30), "k30", "v")

	result := s.Between(id(10), id(20))
	if len(result) != 1 || result[0].KeyID.Cmp(id(20)) != 0 {
		t.Fatalf("expected only the record at id(20), got %+v", result)
	}
}
