// Package leadflow provides a high-level façade over the conversation
// routing and structured extraction engine. Most applications interact with
// this package by:
//  1. Creating a LeadFlow via New() (optionally overriding the default
//     in-memory tracker, store and canned-reply generation)
//  2. Feeding user messages through HandleMessage per session
//  3. Reading reconciled records back through ListRecords
//
// The façade delegates orchestration to engine.Engine while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply a durable record
// store, an LLM-backed generator and a structured logger.
package leadflow

import (
	"context"

	"github.com/google/uuid"

	"github.com/hupe1980/leadflow/classify"
	"github.com/hupe1980/leadflow/engine"
	"github.com/hupe1980/leadflow/extract"
	"github.com/hupe1980/leadflow/generation"
	"github.com/hupe1980/leadflow/logging"
	"github.com/hupe1980/leadflow/metric"
	"github.com/hupe1980/leadflow/record"
	"github.com/hupe1980/leadflow/schema"
	"github.com/hupe1980/leadflow/session"
)

// Options configures the LeadFlow instance.
type Options struct {
	// Registry defines the per-flow field schemas. Defaults to the built-in
	// student/workshop/feedback field sets.
	Registry *schema.Registry

	// Tracker holds per-session partial records and turn history
	// (defaults to an in-memory implementation if not provided).
	Tracker session.Tracker

	// Store persists reconciled records (defaults to in-memory).
	Store record.Store

	// Generator phrases the user-facing replies. Nil means the canned
	// deterministic replies are used for every turn.
	Generator generation.Generator

	// Triggers override the classifier's per-flow trigger phrase sets.
	Triggers classify.Triggers

	// CorrectionPhrases override the phrases that permit overwriting an
	// already captured field value.
	CorrectionPhrases []string

	// KeySpecs override the per-flow identity key derivations used for
	// deduplication.
	KeySpecs map[schema.Flow]record.KeySpec

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger

	// Metrics receives turn and reconciliation counters. Nil disables
	// metrics collection.
	Metrics *metric.Set
}

// LeadFlow is the high-level façade aggregating the underlying engine and
// services.
type LeadFlow struct {
	opts   Options
	engine *engine.Engine
}

// New creates a new LeadFlow instance with optional overrides. Any unset
// service is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *LeadFlow {
	opts := Options{
		Registry:          schema.NewRegistry(),
		Tracker:           session.NewInMemoryTracker(),
		Store:             record.NewInMemoryStore(),
		Triggers:          classify.DefaultTriggers(),
		CorrectionPhrases: extract.DefaultCorrectionPhrases,
		KeySpecs:          record.DefaultKeySpecs(),
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	e := engine.New(func(o *engine.Options) {
		o.Registry = opts.Registry
		o.Tracker = opts.Tracker
		o.Store = opts.Store
		o.Generator = opts.Generator
		o.Triggers = opts.Triggers
		o.CorrectionPhrases = opts.CorrectionPhrases
		o.KeySpecs = opts.KeySpecs
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	return &LeadFlow{opts: opts, engine: e}
}

// NewSessionID returns a fresh unique session identifier.
func NewSessionID() string { return uuid.NewString() }

// HandleMessage routes one user message within the session, updates the
// session's partial records and returns the reply text.
func (lf *LeadFlow) HandleMessage(ctx context.Context, sessionID, text string) (string, error) {
	return lf.engine.HandleMessage(ctx, sessionID, text)
}

// ListRecords returns the reconciled records persisted for the flow.
func (lf *LeadFlow) ListRecords(ctx context.Context, flow schema.Flow) ([]record.Persisted, error) {
	return lf.engine.ListRecords(ctx, flow)
}

// Reset discards the session's partial records and history.
func (lf *LeadFlow) Reset(sessionID string) { lf.engine.Reset(sessionID) }
