package record

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/leadflow/schema"
)

// Interface compliance (compile-time assertion)
var _ Store = (*InMemoryStore)(nil)

func TestKeySpec_Deterministic(t *testing.T) {
	ks := DefaultKeySpecs()[schema.StudentLead]

	a := ks.Compute(map[string]string{"email": " Ahmed@Example.com ", "name": "Ahmed"})
	b := ks.Compute(map[string]string{"name": "ahmed", "email": "ahmed@example.com"})
	assert.Equal(t, a, b, "key must be value-derived, independent of casing and order")
	assert.Equal(t, "ahmed@example.com|ahmed", a)
}

func TestKeySpec_HashedFeedbackKey(t *testing.T) {
	ks := DefaultKeySpecs()[schema.FeedbackEntry]
	a := ks.Compute(map[string]string{"message": "The site  is slow"})
	b := ks.Compute(map[string]string{"message": "the site is SLOW"})
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestReconciler_InsertThenMerge(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	r := NewReconciler(store)

	first := map[string]string{
		"name": "Ahmed", "email": "ahmed@example.com", "grade": "10", "location": "Cairo",
	}
	rec, err := r.Reconcile(ctx, schema.StudentLead, first)
	require.NoError(t, err)
	assert.Equal(t, "Ahmed", rec.Fields["name"])

	// Re-submitting the same identity with an extra field updates in place.
	second := map[string]string{
		"name": "Ahmed", "email": "ahmed@example.com", "grade": "10", "location": "Cairo",
		"subjects": "math",
	}
	merged, err := r.Reconcile(ctx, schema.StudentLead, second)
	require.NoError(t, err)
	assert.Equal(t, "math", merged.Fields["subjects"])
	assert.Equal(t, rec.Key, merged.Key)
	assert.Equal(t, rec.CreatedAt, merged.CreatedAt, "merge must keep the original creation time")

	rows, err := store.ReadAll(ctx, schema.StudentLead)
	require.NoError(t, err)
	require.Len(t, rows, 1, "store must never contain two rows with the same identity key")
	assert.Equal(t, "math", rows[0].Fields["subjects"])
}

func TestReconciler_MergeDoesNotEraseWithEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	r := NewReconciler(store)

	_, err := r.Reconcile(ctx, schema.StudentLead, map[string]string{
		"name": "Ahmed", "email": "ahmed@example.com", "grade": "10", "location": "Cairo", "subjects": "math",
	})
	require.NoError(t, err)

	_, err = r.Reconcile(ctx, schema.StudentLead, map[string]string{
		"name": "Ahmed", "email": "ahmed@example.com", "grade": "10", "location": "Cairo", "subjects": "",
	})
	require.NoError(t, err)

	rows, _ := store.ReadAll(ctx, schema.StudentLead)
	require.Len(t, rows, 1)
	assert.Equal(t, "math", rows[0].Fields["subjects"], "empty values must not clobber stored ones")
}

// flakyStore fails the first n Upsert calls, then delegates to an inner store.
type flakyStore struct {
	inner    *InMemoryStore
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyStore) ReadAll(ctx context.Context, flow schema.Flow) ([]Persisted, error) {
	return f.inner.ReadAll(ctx, flow)
}

func (f *flakyStore) Upsert(ctx context.Context, flow schema.Flow, rec Persisted) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return fmt.Errorf("store unreachable")
	}
	return f.inner.Upsert(ctx, flow, rec)
}

func TestReconciler_RetryThenDefer(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{inner: NewInMemoryStore(), failures: 2}
	r := NewReconciler(store)

	fields := map[string]string{
		"name": "Ahmed", "email": "ahmed@example.com", "grade": "10", "location": "Cairo",
	}

	// First attempt: both the write and its single retry fail.
	_, err := r.Reconcile(ctx, schema.StudentLead, fields)
	var werr *WriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, schema.StudentLead, werr.Flow)

	rows, _ := store.ReadAll(ctx, schema.StudentLead)
	assert.Empty(t, rows, "nothing must be persisted while the store is down")

	// Later turn: the store recovered, reconciliation succeeds unchanged.
	rec, err := r.Reconcile(ctx, schema.StudentLead, fields)
	require.NoError(t, err)
	assert.Equal(t, "Ahmed", rec.Fields["name"])

	rows, _ = store.ReadAll(ctx, schema.StudentLead)
	require.Len(t, rows, 1)
}

func TestReconciler_ConcurrentSameKeyCompletions(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	r := NewReconciler(store)

	base := map[string]string{
		"organization_name": "CodeCamp", "contact_person": "Sara Haddad",
		"email": "sara@codecamp.io", "program_name": "Go Bootcamp",
	}
	sessionA := map[string]string{}
	sessionB := map[string]string{}
	for k, v := range base {
		sessionA[k] = v
		sessionB[k] = v
	}
	sessionA["duration"] = "3 days"
	sessionB["location"] = "Beirut"

	var wg sync.WaitGroup
	for _, fields := range []map[string]string{sessionA, sessionB} {
		wg.Add(1)
		go func(f map[string]string) {
			defer wg.Done()
			_, err := r.Reconcile(ctx, schema.WorkshopLead, f)
			assert.NoError(t, err)
		}(fields)
	}
	wg.Wait()

	rows, err := store.ReadAll(ctx, schema.WorkshopLead)
	require.NoError(t, err)
	require.Len(t, rows, 1, "concurrent completions with one identity must merge, not duplicate")
	assert.Equal(t, "3 days", rows[0].Fields["duration"])
	assert.Equal(t, "Beirut", rows[0].Fields["location"])
}

func TestInMemoryStore_ReadAllIsACopy(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	require.NoError(t, store.Upsert(ctx, schema.FeedbackEntry, Persisted{
		Flow: schema.FeedbackEntry, Key: "k", Fields: map[string]string{"message": "hi"},
	}))

	rows, _ := store.ReadAll(ctx, schema.FeedbackEntry)
	rows[0].Fields["message"] = "mutated"

	again, _ := store.ReadAll(ctx, schema.FeedbackEntry)
	assert.Equal(t, "hi", again[0].Fields["message"])
}

func TestWriteError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &WriteError{Flow: schema.StudentLead, Key: "k", Err: inner}
	assert.ErrorIs(t, err, inner)
}
