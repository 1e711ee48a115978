package session

import (
	"sync"
	"time"

	"github.com/hupe1980/leadflow/schema"
)

// PartialRecord accumulates extracted field values for one flow within one
// session. It is owned exclusively by that session and mutated only by the
// slot extractor; the tracker hands out clones so callers cannot alias
// internal state.
type PartialRecord struct {
	Flow      schema.Flow       `json:"flow"`
	Values    map[string]string `json:"values"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewPartialRecord creates an empty partial record for the flow.
func NewPartialRecord(flow schema.Flow) *PartialRecord {
	return &PartialRecord{Flow: flow, Values: map[string]string{}}
}

// Empty reports whether no field has been filled yet.
func (p *PartialRecord) Empty() bool { return len(p.Values) == 0 }

// Clone returns a deep copy safe for independent mutation.
func (p *PartialRecord) Clone() *PartialRecord {
	values := make(map[string]string, len(p.Values))
	for k, v := range p.Values {
		values[k] = v
	}
	return &PartialRecord{Flow: p.Flow, Values: values, UpdatedAt: p.UpdatedAt}
}

// Turn is one (message, resolved flow) pair in the session history.
type Turn struct {
	Message   string      `json:"message"`
	Flow      schema.Flow `json:"flow"`
	Timestamp time.Time   `json:"timestamp"`
}

// Session is the per-conversation container: the map of flow to partial
// record plus the ordered turn history. It is safe for concurrent access.
//
// Contract:
//   - GetOrCreate lazily allocates an empty partial record
//   - Clear is the only operation that removes a partial record
//   - History and InProgress return defensive copies.
type Session struct {
	ID      string
	Created time.Time
	Updated time.Time

	mu       sync.RWMutex
	partials map[schema.Flow]*PartialRecord
	turns    []Turn
}

// New creates a new session with the given ID.
func New(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:       id,
		Created:  now,
		Updated:  now,
		partials: map[schema.Flow]*PartialRecord{},
	}
}

// GetOrCreate returns a clone of the flow's partial record, allocating an
// empty one if none exists.
func (s *Session) GetOrCreate(flow schema.Flow) *PartialRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.partials[flow]
	if !ok {
		p = NewPartialRecord(flow)
		s.partials[flow] = p
	}
	return p.Clone()
}

// Update replaces the stored partial record for the flow with a clone of rec
// and stamps its update time.
func (s *Session) Update(flow schema.Flow, rec *PartialRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := rec.Clone()
	cp.Flow = flow
	cp.UpdatedAt = time.Now().UTC()
	s.partials[flow] = cp
	s.Updated = cp.UpdatedAt
}

// Clear removes the flow's partial record. Called exactly once per
// successful reconciliation; a new record of the same flow may begin
// accumulating on later turns.
func (s *Session) Clear(flow schema.Flow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.partials, flow)
	s.Updated = time.Now().UTC()
}

// AppendTurn records a processed (message, flow) pair in the history.
func (s *Session) AppendTurn(message string, flow schema.Flow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.turns = append(s.turns, Turn{Message: message, Flow: flow, Timestamp: now})
	s.Updated = now
}

// History returns a copy of the ordered turn history.
func (s *Session) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := make([]Turn, len(s.turns))
	copy(turns, s.turns)
	return turns
}

// InProgress returns the flows that currently hold a non-empty partial
// record, mapped to the time each was last updated. The map is a copy.
func (s *Session) InProgress() map[schema.Flow]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make(map[schema.Flow]time.Time)
	for flow, p := range s.partials {
		if !p.Empty() {
			res[flow] = p.UpdatedAt
		}
	}
	return res
}
