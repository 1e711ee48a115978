package record

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/leadflow/schema"
)

// Persisted is a completed, flow-tagged set of field values plus its derived
// identity key. Stores hold at most one record per (flow, key) pair; later
// completions merge into the existing row instead of duplicating it.
type Persisted struct {
	Flow      schema.Flow       `json:"flow"`
	Key       string            `json:"key"`
	Fields    map[string]string `json:"fields"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Clone returns a deep copy safe for independent mutation.
func (p Persisted) Clone() Persisted {
	fields := make(map[string]string, len(p.Fields))
	for k, v := range p.Fields {
		fields[k] = v
	}
	cp := p
	cp.Fields = fields
	return cp
}

// KeySpec describes how a flow's identity key is derived from field values.
// Keys are computed from normalized values only, never from arrival order.
type KeySpec struct {
	// Fields lists the field names joined into the key, in order.
	Fields []string
	// Hash replaces the joined value with its sha256 hex digest. Used where
	// the key source is long free text (feedback messages).
	Hash bool
}

// Compute derives the identity key for the given field values.
func (ks KeySpec) Compute(fields map[string]string) string {
	parts := make([]string, 0, len(ks.Fields))
	for _, name := range ks.Fields {
		parts = append(parts, normalize(fields[name]))
	}
	joined := strings.Join(parts, "|")
	if ks.Hash {
		sum := sha256.Sum256([]byte(joined))
		return hex.EncodeToString(sum[:])
	}
	return joined
}

func normalize(v string) string {
	return strings.ToLower(strings.Join(strings.Fields(v), " "))
}

// DefaultKeySpecs returns the built-in identity key derivations: normalized
// email plus name for leads, message hash for feedback. Overridable via
// configuration since the precise dedup keys are a deployment choice.
func DefaultKeySpecs() map[schema.Flow]KeySpec {
	return map[schema.Flow]KeySpec{
		schema.StudentLead:   {Fields: []string{"email", "name"}},
		schema.WorkshopLead:  {Fields: []string{"email", "contact_person"}},
		schema.FeedbackEntry: {Fields: []string{"message"}, Hash: true},
	}
}

// Store is the persistence collaborator. Implementations must be
// crash-consistent at the granularity of one Upsert call and safe for
// concurrent use across sessions.
type Store interface {
	// ReadAll returns every persisted record of the flow.
	ReadAll(ctx context.Context, flow schema.Flow) ([]Persisted, error)
	// Upsert writes the record, replacing any existing row with the same
	// identity key.
	Upsert(ctx context.Context, flow schema.Flow, rec Persisted) error
}

// WriteError wraps a store failure after the bounded retry was exhausted.
// It is surfaced as a non-fatal warning; the partial record stays pending.
type WriteError struct {
	Flow schema.Flow
	Key  string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("store write failed for %s record %q: %v", e.Flow, e.Key, e.Err)
}

// Unwrap returns the underlying store error.
func (e *WriteError) Unwrap() error { return e.Err }
