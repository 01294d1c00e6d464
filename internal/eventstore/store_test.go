package eventstore

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_AppendAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	require.NoError(t, store.Append(ctx, "run-1", "run_started", []byte(`{"project":"/p"}`), map[string]string{"project": "/p"}))
	require.NoError(t, store.Append(ctx, "run-1", "deploy_staged", nil, nil))
	require.NoError(t, store.Append(ctx, "run-2", "run_started", []byte(`{}`), nil))

	events, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "run_started", events[0].Type)
	require.Equal(t, "run-1", events[0].RunID)
	require.Equal(t, "/p", events[0].Metadata["project"])
	require.JSONEq(t, `{"project":"/p"}`, string(events[0].Payload))
	require.Equal(t, "deploy_staged", events[1].Type)
	require.Nil(t, events[1].Metadata)
	require.Less(t, events[0].ID, events[1].ID)
	require.WithinDuration(t, time.Now(), events[0].RecordedAt, time.Minute)
}

func TestSQLiteStore_GetUnknownRun(t *testing.T) {
	store := newTestStore(t)
	events, err := store.GetByRunID(t.Context(), "missing")
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	require.NoError(t, store.Append(ctx, "old", "run_started", nil, nil))
	require.NoError(t, store.Append(ctx, "old", "run_completed", nil, map[string]string{"outcome": "succeeded"}))
	require.NoError(t, store.Append(ctx, "new", "run_started", nil, nil))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "new", runs[0].RunID)
	require.Equal(t, 1, runs[0].Events)
	require.Nil(t, runs[0].Outcome)
	require.Equal(t, "old", runs[1].RunID)
	require.Equal(t, 2, runs[1].Events)
	require.Equal(t, "succeeded", runs[1].Outcome["outcome"])

	limited, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestSQLiteStore_PruneBefore(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	require.NoError(t, store.Append(ctx, "run-1", "run_started", nil, nil))

	removed, err := store.PruneBefore(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Zero(t, removed)

	removed, err = store.PruneBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, runs)
}

func TestSQLiteStore_Persistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(t.Context(), "run-1", "run_started", nil, nil))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	events, err := reopened.GetByRunID(t.Context(), "run-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestSQLiteStore_PruneUsesRecordTime(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	store.now = func() time.Time { return base }
	require.NoError(t, store.Append(ctx, "old", "run_started", nil, nil))
	store.now = func() time.Time { return base.Add(48 * time.Hour) }
	require.NoError(t, store.Append(ctx, "new", "run_started", nil, nil))

	removed, err := store.PruneBefore(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "new", runs[0].RunID)
	require.True(t, runs[0].Started.Equal(base.Add(48*time.Hour)))
}

func TestSQLiteStore_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`PRAGMA user_version = 99`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = NewSQLiteStore(path)
	require.ErrorContains(t, err, "newer than supported")
}
