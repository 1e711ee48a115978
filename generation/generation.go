package generation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/leadflow/schema"
	"github.com/hupe1980/leadflow/session"
)

// Request carries the raw message and the engine's structured decisions for
// the turn, so the generator can phrase a grounded reply without making any
// structural decisions itself.
type Request struct {
	SessionID string
	Message   string
	Flow      schema.Flow
	// Known holds the extracted-so-far field values for the flow.
	Known map[string]string
	// Missing lists the required fields still unfilled.
	Missing []string
	// History is the prior conversation, oldest first.
	History []session.Turn
	// Saved is true when this turn's reconciliation persisted the record.
	Saved bool
	// Deferred is true when a completed record could not be saved yet and
	// will be retried on a later turn.
	Deferred bool
}

// Generator produces the user-facing reply text for one turn.
type Generator interface {
	Reply(ctx context.Context, req Request) (string, error)
}

// Fallback builds the canned acknowledgment used when no generator is
// configured or the generation collaborator fails. It is deterministic and
// communicates save state and missing fields explicitly.
func Fallback(req Request) string {
	var b strings.Builder

	switch {
	case req.Deferred:
		b.WriteString("Thanks! Your details are complete, but saving is taking longer than usual - we'll retry on your next message, nothing is lost.")
	case req.Saved:
		switch req.Flow {
		case schema.StudentLead:
			b.WriteString("Thanks! Your registration has been recorded and you'll be matched with a teacher soon.")
		case schema.WorkshopLead:
			b.WriteString("Thanks! Your program has been recorded and our team will contact you about advertising it.")
		case schema.FeedbackEntry:
			b.WriteString("Thank you for the feedback - it has been recorded and our team will review it.")
		default:
			b.WriteString("Thanks, your information has been recorded.")
		}
	case req.Flow == schema.GeneralQuery:
		b.WriteString("Happy to help! We match students with teachers and advertise educational programs - just tell me what you're looking for.")
	default:
		b.WriteString("Got it.")
	}

	if !req.Saved && !req.Deferred && len(req.Missing) > 0 {
		fields := make([]string, len(req.Missing))
		for i, f := range req.Missing {
			fields[i] = strings.ReplaceAll(f, "_", " ")
		}
		fmt.Fprintf(&b, " Could you also share your %s?", strings.Join(fields, ", "))
	}

	return b.String()
}

// Mock is a deterministic in-memory Generator for tests. It records every
// request it receives.
type Mock struct {
	Response string
	Err      error

	mu       sync.Mutex
	requests []Request
}

// Reply implements Generator.
func (m *Mock) Reply(_ context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if m.Response != "" {
		return m.Response, nil
	}
	return fmt.Sprintf("Mock reply to: %s", req.Message), nil
}

// Requests returns a copy of the requests seen so far.
func (m *Mock) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	reqs := make([]Request, len(m.requests))
	copy(reqs, m.requests)
	return reqs
}
