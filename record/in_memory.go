package record

import (
	"context"
	"sort"
	"sync"

	"github.com/hupe1980/leadflow/schema"
)

// InMemoryStore is a volatile Store keeping records in a process-local map.
// It is safe for concurrent access and suited to tests and ephemeral demos.
// Returned records are clones to prevent external mutation of internal state.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[schema.Flow]map[string]Persisted
}

// NewInMemoryStore constructs an empty in-memory record store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[schema.Flow]map[string]Persisted)}
}

// ReadAll implements Store. Records are ordered by creation time for a
// stable read-only view.
func (s *InMemoryStore) ReadAll(_ context.Context, flow schema.Flow) ([]Persisted, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]Persisted, 0, len(s.records[flow]))
	for _, rec := range s.records[flow] {
		rows = append(rows, rec.Clone())
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		return rows[i].Key < rows[j].Key
	})
	return rows, nil
}

// Upsert implements Store.
func (s *InMemoryStore) Upsert(_ context.Context, flow schema.Flow, rec Persisted) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records[flow] == nil {
		s.records[flow] = make(map[string]Persisted)
	}
	s.records[flow][rec.Key] = rec.Clone()
	return nil
}
