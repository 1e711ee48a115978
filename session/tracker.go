package session

import (
	"sync"
	"time"

	"github.com/hupe1980/leadflow/schema"
)

// Tracker persists sessions and their evolving partial records and turn
// history. Implementations must isolate sessions from one another.
type Tracker interface {
	// GetOrCreate returns a clone of the session's partial record for the
	// flow, allocating an empty one (and the session itself) lazily.
	GetOrCreate(sessionID string, flow schema.Flow) *PartialRecord
	// Update replaces the stored partial record for the flow.
	Update(sessionID string, flow schema.Flow, rec *PartialRecord)
	// Clear removes the flow's partial record. It is the only removal path
	// and is called exactly once per successful reconciliation.
	Clear(sessionID string, flow schema.Flow)
	// AppendTurn records a processed (message, flow) pair.
	AppendTurn(sessionID, message string, flow schema.Flow)
	// History returns the ordered turn history for the session.
	History(sessionID string) []Turn
	// InProgress returns flows with a non-empty partial record and their
	// last update times.
	InProgress(sessionID string) map[schema.Flow]time.Time
	// Reset discards the session entirely (partials and history).
	Reset(sessionID string)
}

// InMemoryTracker is a process-local Tracker storing sessions in a map. It
// is safe for concurrent access and suited to the single long-lived process
// the engine is designed for.
type InMemoryTracker struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewInMemoryTracker constructs an empty in-memory tracker.
func NewInMemoryTracker() *InMemoryTracker {
	return &InMemoryTracker{sessions: make(map[string]*Session)}
}

// session returns the live session, creating it on first use.
func (t *InMemoryTracker) session(sessionID string) *Session {
	t.mu.RLock()
	s, ok := t.sessions[sessionID]
	t.mu.RUnlock()
	if ok {
		return s
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.sessions[sessionID]; ok {
		return s
	}
	s = New(sessionID)
	t.sessions[sessionID] = s
	return s
}

// GetOrCreate implements Tracker.
func (t *InMemoryTracker) GetOrCreate(sessionID string, flow schema.Flow) *PartialRecord {
	return t.session(sessionID).GetOrCreate(flow)
}

// Update implements Tracker.
func (t *InMemoryTracker) Update(sessionID string, flow schema.Flow, rec *PartialRecord) {
	t.session(sessionID).Update(flow, rec)
}

// Clear implements Tracker.
func (t *InMemoryTracker) Clear(sessionID string, flow schema.Flow) {
	t.session(sessionID).Clear(flow)
}

// AppendTurn implements Tracker.
func (t *InMemoryTracker) AppendTurn(sessionID, message string, flow schema.Flow) {
	t.session(sessionID).AppendTurn(message, flow)
}

// History implements Tracker.
func (t *InMemoryTracker) History(sessionID string) []Turn {
	return t.session(sessionID).History()
}

// InProgress implements Tracker.
func (t *InMemoryTracker) InProgress(sessionID string) map[schema.Flow]time.Time {
	return t.session(sessionID).InProgress()
}

// Reset implements Tracker.
func (t *InMemoryTracker) Reset(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionID)
}
