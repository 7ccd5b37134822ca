package session

import (
	"context"
	"sort"
	"sync"

	"github.com/hupe1980/analystmesh/core"
)

// InMemorySink is a volatile SessionSink storing records in a process local
// map. It is safe for concurrent access; records are cloned on the way in
// and out so callers cannot mutate stored state.
type InMemorySink struct {
	mu      sync.RWMutex
	records map[string]core.SessionRecord
	saves   int
}

// NewInMemorySink constructs an empty in-memory sink.
func NewInMemorySink() *InMemorySink {
	return &InMemorySink{records: make(map[string]core.SessionRecord)}
}

// Save stores a clone of rec, replacing any record with the same id.
func (s *InMemorySink) Save(_ context.Context, rec core.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.SessionID] = rec.Clone()
	s.saves++
	return nil
}

// Get returns the record for sessionID.
func (s *InMemorySink) Get(_ context.Context, sessionID string) (core.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[sessionID]
	if !ok {
		return core.SessionRecord{}, ErrNotFound
	}
	return rec.Clone(), nil
}

// List returns all records ordered by start time.
func (s *InMemorySink) List() []core.SessionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.SessionRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Saves returns how many Save calls succeeded, counting upserts.
func (s *InMemorySink) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
