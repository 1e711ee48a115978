package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/leadflow/generation"
	"github.com/hupe1980/leadflow/record"
	"github.com/hupe1980/leadflow/schema"
	"github.com/hupe1980/leadflow/session"
)

func TestHandleMessage_StudentRegistrationScenario(t *testing.T) {
	ctx := context.Background()
	store := record.NewInMemoryStore()
	tracker := session.NewInMemoryTracker()
	e := New(func(o *Options) {
		o.Store = store
		o.Tracker = tracker
	})

	_, err := e.HandleMessage(ctx, "s1", "I'm Ahmed, Grade 10, Cairo")
	require.NoError(t, err)

	// Nothing persisted yet: email is still missing.
	rows, err := e.ListRecords(ctx, schema.StudentLead)
	require.NoError(t, err)
	assert.Empty(t, rows)

	reply, err := e.HandleMessage(ctx, "s1", "my email is ahmed@example.com")
	require.NoError(t, err)
	assert.Contains(t, reply, "recorded")

	rows, err = e.ListRecords(ctx, schema.StudentLead)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]string{
		"name": "Ahmed", "grade": "10", "location": "Cairo", "email": "ahmed@example.com",
	}, rows[0].Fields)

	// Exactly one reconciliation: the partial record is cleared.
	assert.Empty(t, tracker.InProgress("s1"))
}

func TestHandleMessage_MalformedEmailNeverPersisted(t *testing.T) {
	ctx := context.Background()
	e := New()

	_, err := e.HandleMessage(ctx, "s1", "I'm Ahmed, Grade 10, Cairo")
	require.NoError(t, err)
	_, err = e.HandleMessage(ctx, "s1", "my email is not-an-email")
	require.NoError(t, err)

	rows, err := e.ListRecords(ctx, schema.StudentLead)
	require.NoError(t, err)
	assert.Empty(t, rows, "a record with a malformed required field must not persist")
}

// failingStore fails every Upsert until recovered.
type failingStore struct {
	inner *record.InMemoryStore
	mu    sync.Mutex
	down  bool
	calls int
}

func (f *failingStore) ReadAll(ctx context.Context, flow schema.Flow) ([]record.Persisted, error) {
	return f.inner.ReadAll(ctx, flow)
}

func (f *failingStore) Upsert(ctx context.Context, flow schema.Flow, rec record.Persisted) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.down {
		return fmt.Errorf("store unreachable")
	}
	return f.inner.Upsert(ctx, flow, rec)
}

func (f *failingStore) recover() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = false
}

func TestHandleMessage_StoreFailureDefersAndRetries(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{inner: record.NewInMemoryStore(), down: true}
	tracker := session.NewInMemoryTracker()
	e := New(func(o *Options) {
		o.Store = store
		o.Tracker = tracker
	})

	_, err := e.HandleMessage(ctx, "s1", "I'm Ahmed, Grade 10, Cairo")
	require.NoError(t, err)

	// Completion while the store is down: both the write and its retry fail.
	reply, err := e.HandleMessage(ctx, "s1", "my email is ahmed@example.com")
	require.NoError(t, err, "store failure must not abort the conversation")
	assert.Contains(t, reply, "retry")
	assert.Equal(t, 2, store.calls)

	// The partial record stays pending, nothing was lost.
	require.Contains(t, tracker.InProgress("s1"), schema.StudentLead)

	// Next turn after the store recovered: reconciliation succeeds unchanged.
	store.recover()
	_, err = e.HandleMessage(ctx, "s1", "did that go through?")
	require.NoError(t, err)

	rows, err := e.ListRecords(ctx, schema.StudentLead)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ahmed@example.com", rows[0].Fields["email"])
	assert.Empty(t, tracker.InProgress("s1"))
}

func TestHandleMessage_ResubmissionMergesInsteadOfDuplicating(t *testing.T) {
	ctx := context.Background()
	e := New()

	_, err := e.HandleMessage(ctx, "s1", "I'm Ahmed, Grade 10, Cairo, my email is ahmed@example.com")
	require.NoError(t, err)

	// A second registration for the same identity, now with subjects.
	_, err = e.HandleMessage(ctx, "s2", "I'm a student. I'm Ahmed, Grade 10, Cairo, I need help with physics, my email is ahmed@example.com")
	require.NoError(t, err)

	rows, err := e.ListRecords(ctx, schema.StudentLead)
	require.NoError(t, err)
	require.Len(t, rows, 1, "same identity key must merge, never duplicate")
	assert.Equal(t, "physics", rows[0].Fields["subjects"])
}

func TestHandleMessage_GenerationFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	gen := &generation.Mock{Err: errors.New("timeout")}
	e := New(func(o *Options) {
		o.Generator = gen
	})

	reply, err := e.HandleMessage(ctx, "s1", "I'm Ahmed, Grade 10, Cairo")
	require.NoError(t, err)
	assert.NotEmpty(t, reply, "fallback reply must still be produced")
	assert.Contains(t, reply, "email", "canned reply should name the missing field")
	assert.Len(t, gen.Requests(), 1)
}

func TestHandleMessage_GeneratorReceivesStructuredContext(t *testing.T) {
	ctx := context.Background()
	gen := &generation.Mock{Response: "Sure thing!"}
	e := New(func(o *Options) {
		o.Generator = gen
	})

	reply, err := e.HandleMessage(ctx, "s1", "I'm Ahmed, Grade 10, Cairo")
	require.NoError(t, err)
	assert.Equal(t, "Sure thing!", reply)

	reqs := gen.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, schema.StudentLead, reqs[0].Flow)
	assert.Equal(t, "Ahmed", reqs[0].Known["name"])
	assert.Equal(t, []string{"email"}, reqs[0].Missing)
}

func TestHandleMessage_ConcurrentSessionsSameIdentity(t *testing.T) {
	ctx := context.Background()
	store := record.NewInMemoryStore()
	e := New(func(o *Options) {
		o.Store = store
	})

	intro := "We run a workshop. The organization name is CodeCamp and the program name is Go Bootcamp"
	finishA := "I'm Sara Haddad, my email is sara@codecamp.io, the duration is 3 days"
	finishB := "I'm Sara Haddad, my email is sara@codecamp.io, the location is Beirut"

	var wg sync.WaitGroup
	for i, finish := range []string{finishA, finishB} {
		wg.Add(1)
		go func(sid, finish string) {
			defer wg.Done()
			_, err := e.HandleMessage(ctx, sid, intro)
			assert.NoError(t, err)
			_, err = e.HandleMessage(ctx, sid, finish)
			assert.NoError(t, err)
		}(fmt.Sprintf("s%d", i), finish)
	}
	wg.Wait()

	rows, err := e.ListRecords(ctx, schema.WorkshopLead)
	require.NoError(t, err)
	require.Len(t, rows, 1, "concurrent sessions completing one identity must merge")
	assert.Equal(t, "3 days", rows[0].Fields["duration"])
	assert.Equal(t, "Beirut", rows[0].Fields["location"])
}

func TestHandleMessage_GeneralQueryNeverPersists(t *testing.T) {
	ctx := context.Background()
	tracker := session.NewInMemoryTracker()
	e := New(func(o *Options) {
		o.Tracker = tracker
	})

	reply, err := e.HandleMessage(ctx, "s1", "Hi! What services do you offer?")
	require.NoError(t, err)
	assert.NotEmpty(t, reply)

	for _, flow := range []schema.Flow{schema.StudentLead, schema.WorkshopLead, schema.FeedbackEntry} {
		rows, err := e.ListRecords(ctx, flow)
		require.NoError(t, err)
		assert.Empty(t, rows)
	}
	assert.Empty(t, tracker.InProgress("s1"))
}

func TestListRecords_UnknownFlow(t *testing.T) {
	e := New()
	_, err := e.ListRecords(context.Background(), schema.Flow(42))
	assert.ErrorIs(t, err, schema.ErrUnknownFlow)
}

func TestHandleMessage_FeedbackPersistsImmediately(t *testing.T) {
	ctx := context.Background()
	e := New()

	_, err := e.HandleMessage(ctx, "s1", "I have feedback: the signup page is broken, it's high priority")
	require.NoError(t, err)

	rows, err := e.ListRecords(ctx, schema.FeedbackEntry)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "high", rows[0].Fields["urgency"])
}
