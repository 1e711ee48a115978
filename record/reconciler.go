package record

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/leadflow/logging"
	"github.com/hupe1980/leadflow/schema"
)

// ReconcilerOptions configure reconciler construction.
type ReconcilerOptions struct {
	KeySpecs map[schema.Flow]KeySpec
	Logger   logging.Logger
}

// Reconciler turns a completed record into a deduplicated store row: it
// computes the identity key, merges field-by-field into any existing row
// with that key, and upserts with one bounded retry. Concurrent
// reconciliations against the same identity key are serialized so the
// read-merge-write sequence never loses an update.
type Reconciler struct {
	store    Store
	keySpecs map[schema.Flow]KeySpec
	logger   logging.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewReconciler constructs a reconciler over the given store.
func NewReconciler(store Store, optFns ...func(o *ReconcilerOptions)) *Reconciler {
	opts := ReconcilerOptions{
		KeySpecs: DefaultKeySpecs(),
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Reconciler{
		store:    store,
		keySpecs: opts.KeySpecs,
		logger:   opts.Logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Key computes the identity key a completed record of the flow would get.
func (r *Reconciler) Key(flow schema.Flow, fields map[string]string) string {
	return r.keySpecs[flow].Compute(fields)
}

// Reconcile merges the completed field values into the flow's store. On
// failure the returned error wraps the store error as *WriteError; the
// caller must keep the partial record so no data is lost and reconciliation
// retries on a later turn.
func (r *Reconciler) Reconcile(ctx context.Context, flow schema.Flow, fields map[string]string) (Persisted, error) {
	key := r.Key(flow, fields)

	unlock := r.lock(flow.String() + "|" + key)
	defer unlock()

	existing, found, err := r.find(ctx, flow, key)
	if err != nil {
		return Persisted{}, &WriteError{Flow: flow, Key: key, Err: err}
	}

	now := time.Now().UTC()
	rec := Persisted{Flow: flow, Key: key, CreatedAt: now, UpdatedAt: now}
	if found {
		rec = existing
		rec.UpdatedAt = now
	} else {
		rec.Fields = make(map[string]string, len(fields))
	}
	// Re-registration is an update: new non-empty values overwrite old ones.
	for name, value := range fields {
		if value == "" {
			continue
		}
		rec.Fields[name] = value
	}

	if err := r.upsertWithRetry(ctx, flow, rec); err != nil {
		r.logger.Warn("record write deferred after retry", "flow", flow.String(), "key", key, "error", err)
		return Persisted{}, &WriteError{Flow: flow, Key: key, Err: err}
	}

	r.logger.Info("record reconciled", "flow", flow.String(), "key", key, "merged", found)
	return rec, nil
}

func (r *Reconciler) find(ctx context.Context, flow schema.Flow, key string) (Persisted, bool, error) {
	rows, err := r.store.ReadAll(ctx, flow)
	if err != nil {
		return Persisted{}, false, err
	}
	for _, row := range rows {
		if row.Key == key {
			return row.Clone(), true, nil
		}
	}
	return Persisted{}, false, nil
}

// upsertWithRetry attempts the write, retrying once on failure.
func (r *Reconciler) upsertWithRetry(ctx context.Context, flow schema.Flow, rec Persisted) error {
	err := r.store.Upsert(ctx, flow, rec)
	if err == nil {
		return nil
	}
	r.logger.Debug("store upsert failed, retrying once", "flow", flow.String(), "key", rec.Key, "error", err)
	return r.store.Upsert(ctx, flow, rec)
}

// lock serializes reconciliation per (flow, identity key).
func (r *Reconciler) lock(key string) func() {
	r.mu.Lock()
	m, ok := r.locks[key]
	if !ok {
		m = &sync.Mutex{}
		r.locks[key] = m
	}
	r.mu.Unlock()
	m.Lock()
	return m.Unlock
}
