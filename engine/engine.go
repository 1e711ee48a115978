package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/leadflow/classify"
	"github.com/hupe1980/leadflow/extract"
	"github.com/hupe1980/leadflow/generation"
	"github.com/hupe1980/leadflow/logging"
	"github.com/hupe1980/leadflow/metric"
	"github.com/hupe1980/leadflow/record"
	"github.com/hupe1980/leadflow/schema"
	"github.com/hupe1980/leadflow/session"
)

// Options hold dependency and configuration overrides passed to New().
type Options struct {
	// Registry overrides the built-in field schema registry.
	Registry *schema.Registry
	// Tracker stores per-session partial records and turn history.
	Tracker session.Tracker
	// Store persists completed records.
	Store record.Store
	// Generator produces reply prose. Nil means canned replies only.
	Generator generation.Generator
	// Triggers override the classifier's trigger phrase sets.
	Triggers classify.Triggers
	// CorrectionPhrases override the extractor's correction triggers.
	CorrectionPhrases []string
	// KeySpecs override the identity key derivations.
	KeySpecs map[schema.Flow]record.KeySpec
	// Logger receives structured engine logs.
	Logger logging.Logger
	// Metrics receives turn counters. Nil disables metrics.
	Metrics *metric.Set
}

// Engine is the conversation routing and structured extraction engine. Its
// public methods are safe for concurrent use; turns within one session are
// serialized.
type Engine struct {
	registry   *schema.Registry
	classifier *classify.Classifier
	extractor  *extract.Extractor
	tracker    session.Tracker
	reconciler *record.Reconciler
	store      record.Store
	generator  generation.Generator
	logger     *logging.FlowLogger
	metrics    *metric.Set

	mu       sync.Mutex
	sessions map[string]*sync.Mutex
}

// New constructs an engine with in-memory defaults for any unset service.
func New(optFns ...func(o *Options)) *Engine {
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

	return &Engine{
		registry: opts.Registry,
		classifier: classify.New(opts.Registry, func(o *classify.Options) {
			o.Triggers = opts.Triggers
		}),
		extractor: extract.New(opts.Registry, func(o *extract.Options) {
			o.CorrectionPhrases = opts.CorrectionPhrases
			o.Logger = opts.Logger
		}),
		tracker: opts.Tracker,
		reconciler: record.NewReconciler(opts.Store, func(o *record.ReconcilerOptions) {
			o.KeySpecs = opts.KeySpecs
			o.Logger = opts.Logger
		}),
		store:     opts.Store,
		generator: opts.Generator,
		logger:    logging.NewFlowLogger(opts.Logger).WithComponent("engine"),
		metrics:   opts.Metrics,
		sessions:  make(map[string]*sync.Mutex),
	}
}

// HandleMessage processes one user message for the session and returns the
// reply text. Store and generation failures never abort the turn; they
// surface as soft replies while the user's data stays pending.
func (e *Engine) HandleMessage(ctx context.Context, sessionID, text string) (string, error) {
	unlock := e.lockSession(sessionID)
	defer unlock()

	history := e.tracker.History(sessionID)
	flow := e.classifier.Classify(text, classify.Context{
		History:    history,
		InProgress: e.tracker.InProgress(sessionID),
	})
	e.metrics.Turn(flow.String())
	flog := e.logger.WithSession(sessionID).WithFlow(flow.String())
	flog.Debug("message classified")

	partial := e.tracker.GetOrCreate(sessionID, flow)
	if changed := e.extractor.Extract(flow, text, partial); len(changed) > 0 {
		e.tracker.Update(sessionID, flow, partial)
		flog.Debug("fields extracted", "fields", changed)
	}
	e.tracker.AppendTurn(sessionID, text, flow)

	saved, deferred := e.reconcileIfComplete(ctx, sessionID, flow, partial.Values)

	// Completed records of other flows left pending by an earlier store
	// failure get their retry here, on the next turn.
	e.retryPending(ctx, sessionID, flow)

	req := generation.Request{
		SessionID: sessionID,
		Message:   text,
		Flow:      flow,
		Known:     partial.Values,
		Missing:   e.registry.MissingFields(flow, partial.Values),
		History:   history,
		Saved:     saved,
		Deferred:  deferred,
	}
	if saved {
		req.Missing = nil
	}
	return e.reply(ctx, req), nil
}

// ListRecords returns the persisted records of the flow for read-only display.
func (e *Engine) ListRecords(ctx context.Context, flow schema.Flow) ([]record.Persisted, error) {
	if _, err := e.registry.FieldsFor(flow); err != nil {
		return nil, err
	}
	return e.store.ReadAll(ctx, flow)
}

// Reset discards the session's partial records and history.
func (e *Engine) Reset(sessionID string) {
	unlock := e.lockSession(sessionID)
	defer unlock()
	e.tracker.Reset(sessionID)
}

// reconcileIfComplete upserts the flow's record when it satisfies the
// registry's completeness rule. On success the partial record is cleared,
// exactly once; on failure it stays pending for the next turn.
func (e *Engine) reconcileIfComplete(ctx context.Context, sessionID string, flow schema.Flow, values map[string]string) (saved, deferred bool) {
	if !e.registry.Persistable(flow) || !e.registry.IsComplete(flow, values) {
		return false, false
	}

	flog := e.logger.WithSession(sessionID).WithFlow(flow.String())
	start := time.Now()
	rec, err := e.reconciler.Reconcile(ctx, flow, values)
	if err != nil {
		var werr *record.WriteError
		if !errors.As(err, &werr) {
			flog.Error("unexpected reconciliation error", "error", err)
		}
		e.metrics.Reconciliation(flow.String(), metric.ResultDeferred)
		flog.LogReconciliation(e.reconciler.Key(flow, values), false, time.Since(start), err)
		return false, true
	}

	e.tracker.Clear(sessionID, flow)
	merged := rec.UpdatedAt.After(rec.CreatedAt)
	result := metric.ResultInserted
	if merged {
		result = metric.ResultMerged
	}
	e.metrics.Reconciliation(flow.String(), result)
	flog.LogReconciliation(rec.Key, merged, time.Since(start), nil)
	return true, false
}

// retryPending re-attempts reconciliation for completed partials of other
// flows that a store failure left in place.
func (e *Engine) retryPending(ctx context.Context, sessionID string, current schema.Flow) {
	for flow := range e.tracker.InProgress(sessionID) {
		if flow == current {
			continue
		}
		pending := e.tracker.GetOrCreate(sessionID, flow)
		e.reconcileIfComplete(ctx, sessionID, flow, pending.Values)
	}
}

// reply asks the generation collaborator for prose and falls back to the
// canned acknowledgment on any failure.
func (e *Engine) reply(ctx context.Context, req generation.Request) string {
	if e.generator == nil {
		return generation.Fallback(req)
	}
	flog := e.logger.WithSession(req.SessionID).WithFlow(req.Flow.String())
	start := time.Now()
	text, err := e.generator.Reply(ctx, req)
	if err != nil || text == "" {
		if err == nil {
			err = fmt.Errorf("empty reply")
		}
		flog.LogGeneration(time.Since(start), err)
		e.metrics.GenerationFallback()
		return generation.Fallback(req)
	}
	flog.LogGeneration(time.Since(start), nil)
	return text
}

// lockSession serializes turn processing per session.
func (e *Engine) lockSession(sessionID string) func() {
	e.mu.Lock()
	m, ok := e.sessions[sessionID]
	if !ok {
		m = &sync.Mutex{}
		e.sessions[sessionID] = m
	}
	e.mu.Unlock()
	m.Lock()
	return m.Unlock
}
