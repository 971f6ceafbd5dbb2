package storage

import (
	"sort"
	"sync"

	"chordring/internal/domain"
	"chordring/internal/logger"
)

// Memory is an in-memory Store. It is concurrency-safe: every method
// takes the single mutex for the duration of its critical section.
type Memory struct {
	lgr  logger.Logger
	mu   sync.Mutex
	data map[string]domain.Record // keyed by key_id, hex-encoded
}

// NewMemory creates an empty in-memory store.
func NewMemory(lgr logger.Logger) *Memory {
	if lgr == nil {
		lgr = logger.NopLogger{}
	}
	return &Memory{
		lgr:  lgr,
		data: make(map[string]domain.Record),
	}
}

// Insert creates a new record at keyID, key, value, or — if keyID is
// already present — appends ",value" to the existing record's value.
// Repeated inserts on the same key accumulate rather than overwrite.
func (s *Memory) Insert(keyID domain.ID, key, value string) {
	hex := keyID.String()
	s.mu.Lock()
	existing, ok := s.data[hex]
	if ok {
		existing.Value = existing.Value + "," + value
		s.data[hex] = existing
	} else {
		s.data[hex] = domain.Record{KeyID: keyID, Key: key, Value: value}
	}
	s.mu.Unlock()

	if ok {
		s.lgr.Debug("insert: value appended", logger.F("key", key), logger.F("key_id", hex))
	} else {
		s.lgr.Debug("insert: record created", logger.F("key", key), logger.F("key_id", hex))
	}
}

// Query returns the record at keyID and whether it exists.
func (s *Memory) Query(keyID domain.ID) (domain.Record, bool) {
	hex := keyID.String()
	s.mu.Lock()
	rec, ok := s.data[hex]
	s.mu.Unlock()
	s.lgr.Debug("query", logger.F("key_id", hex), logger.F("found", ok))
	return rec, ok
}

// Delete removes the record at keyID, if present. It is a no-op
// otherwise.
func (s *Memory) Delete(keyID domain.ID) {
	hex := keyID.String()
	s.mu.Lock()
	_, ok := s.data[hex]
	delete(s.data, hex)
	s.mu.Unlock()
	s.lgr.Debug("delete", logger.F("key_id", hex), logger.F("existed", ok))
}

// Between returns every record with an ID in (from, to].
func (s *Memory) Between(from, to domain.ID) []domain.Record {
	s.mu.Lock()
	var result []domain.Record
	for _, rec := range s.data {
		if rec.KeyID.Between(from, to) {
			result = append(result, rec)
		}
	}
	s.mu.Unlock()
	return result
}

// All returns a shallow-copy snapshot of every stored record, keyed by
// hexadecimal key_id. It must not alias internal storage: callers may
// iterate the result without holding the store's lock.
func (s *Memory) All() map[string]domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[string]domain.Record, len(s.data))
	for k, v := range s.data {
		snapshot[k] = v
	}
	return snapshot
}

// DebugLog emits a structured DEBUG-level log with the full contents
// of the store, sorted by key_id for deterministic output.
func (s *Memory) DebugLog() {
	snapshot := s.All()
	hexes := make([]string, 0, len(snapshot))
	for k := range snapshot {
		hexes = append(hexes, k)
	}
	sort.Strings(hexes)

	entries := make([]map[string]any, 0, len(hexes))
	for _, h := range hexes {
		rec := snapshot[h]
		entries = append(entries, map[string]any{
			"key_id": h,
			"key":    rec.Key,
			"value":  rec.Value,
		})
	}
	s.lgr.Debug("store snapshot", logger.F("count", len(entries)), logger.F("entries", entries))
}
