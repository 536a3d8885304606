package eventstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRunID = "run-123"

func newMemoryStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndForRun(t *testing.T) {
	store := newMemoryStore(t)
	ctx := t.Context()

	e := Event{
		RunID:    testRunID,
		Type:     "Test",
		Payload:  []byte(`{"test":"data"}`),
		Metadata: map[string]string{"key": "value"},
	}
	require.NoError(t, store.Append(ctx, e))
	require.NoError(t, store.Append(ctx, Event{RunID: "other", Type: "Test"}))

	events, err := store.ForRun(ctx, testRunID)
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	assert.Equal(t, testRunID, got.RunID)
	assert.Equal(t, EventType("Test"), got.Type)
	assert.JSONEq(t, `{"test":"data"}`, string(got.Payload))
	assert.Equal(t, "value", got.Metadata["key"])
	assert.NotZero(t, got.ID)
	assert.WithinDuration(t, time.Now(), got.At, time.Minute)
}

func TestBetween(t *testing.T) {
	store := newMemoryStore(t)
	ctx := t.Context()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := range 3 {
		e, err := NewEvent(testRunID, base.Add(time.Duration(i)*time.Hour), StepCompletedPayload{Step: "s", Index: i})
		require.NoError(t, err)
		require.NoError(t, store.Append(ctx, e))
	}

	events, err := store.Between(ctx, base.Add(30*time.Minute), base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestPersistentStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	e, err := NewEvent(testRunID, time.Now(), RunStartedPayload{Site: "Example"})
	require.NoError(t, err)
	require.NoError(t, store.Append(t.Context(), e))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	events, err := reopened.ForRun(t.Context(), testRunID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestClosedStoreErrorsAreClassified(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.ForRun(t.Context(), testRunID)
	require.ErrorIs(t, err, ErrQuery)
}

func TestPruneKeepsRecentRuns(t *testing.T) {
	store := newMemoryStore(t)
	ctx := t.Context()
	for _, id := range []string{"r1", "r2", "r3"} {
		for _, p := range []Payload{RunStartedPayload{Site: "Example"}, RunCompletedPayload{}} {
			e, err := NewEvent(id, time.Now(), p)
			require.NoError(t, err)
			require.NoError(t, store.Append(ctx, e))
		}
	}

	removed, err := store.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	events, err := store.ForRun(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, events)
	events, err = store.ForRun(ctx, "r3")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestEventDecode(t *testing.T) {
	e, err := NewEvent(testRunID, time.Now(), StepCompletedPayload{Step: "Generate HTML", Index: 3})
	require.NoError(t, err)
	assert.Equal(t, TypeStepCompleted, e.Type)

	var p StepCompletedPayload
	require.NoError(t, e.Decode(&p))
	assert.Equal(t, "Generate HTML", p.Step)
	assert.Equal(t, 3, p.Index)
}
