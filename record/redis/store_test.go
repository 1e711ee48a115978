package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/leadflow/record"
	"github.com/hupe1980/leadflow/record/redis"
	"github.com/hupe1980/leadflow/schema"
)

func newTestStore(t *testing.T) *redis.Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	return redis.NewFromClient(client)
}

func TestRedisStore_UpsertAndReadAll(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rec := record.Persisted{
		Flow:      schema.StudentLead,
		Key:       "ahmed@example.com|ahmed",
		Fields:    map[string]string{"name": "Ahmed", "email": "ahmed@example.com"},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Upsert(ctx, schema.StudentLead, rec))

	rows, err := store.ReadAll(ctx, schema.StudentLead)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, rec.Key, rows[0].Key)
	assert.Equal(t, "Ahmed", rows[0].Fields["name"])

	// Same key replaces the row rather than duplicating it.
	rec.Fields["grade"] = "10"
	require.NoError(t, store.Upsert(ctx, schema.StudentLead, rec))

	rows, err = store.ReadAll(ctx, schema.StudentLead)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "10", rows[0].Fields["grade"])
}

func TestRedisStore_FlowsAreSeparateHashes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Upsert(ctx, schema.StudentLead, record.Persisted{Key: "a", Fields: map[string]string{}}))
	require.NoError(t, store.Upsert(ctx, schema.FeedbackEntry, record.Persisted{Key: "b", Fields: map[string]string{}}))

	students, err := store.ReadAll(ctx, schema.StudentLead)
	require.NoError(t, err)
	assert.Len(t, students, 1)

	feedback, err := store.ReadAll(ctx, schema.FeedbackEntry)
	require.NoError(t, err)
	assert.Len(t, feedback, 1)
}

func TestRedisStore_WorksWithReconciler(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	r := record.NewReconciler(store)

	fields := map[string]string{
		"name": "Ahmed", "email": "ahmed@example.com", "grade": "10", "location": "Cairo",
	}
	_, err := r.Reconcile(ctx, schema.StudentLead, fields)
	require.NoError(t, err)

	fields["subjects"] = "math"
	_, err = r.Reconcile(ctx, schema.StudentLead, fields)
	require.NoError(t, err)

	rows, err := store.ReadAll(ctx, schema.StudentLead)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "math", rows[0].Fields["subjects"])
}
