package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrich-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateRun(ctx, model.Run{
		InputPath:  "sellers.csv",
		OutputPath: "sellers.csv",
		Backends:   []string{"serp", "google"},
		BatchSize:  5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, model.RunStatusRunning, created.Status)
	assert.False(t, created.StartedAt.IsZero())

	got, err := st.GetRun(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "sellers.csv", got.InputPath)
	assert.Equal(t, []string{"serp", "google"}, got.Backends)
	assert.Equal(t, 5, got.BatchSize)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Nil(t, got.Stats)
	assert.Nil(t, got.FinishedAt)
}

func TestSQLite_CompleteRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateRun(ctx, model.Run{
		InputPath:  "sellers.csv",
		OutputPath: "sellers.csv",
		Backends:   []string{"serp"},
		BatchSize:  5,
	})
	require.NoError(t, err)

	stats := model.StatsSnapshot{Found: 7, NotFound: 2, Skipped: 3}
	err = st.CompleteRun(ctx, created.ID, model.RunStatusCompleted, stats, "")
	require.NoError(t, err)

	got, err := st.GetRun(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	require.NotNil(t, got.Stats)
	assert.Equal(t, int64(7), got.Stats.Found)
	assert.Equal(t, int64(2), got.Stats.NotFound)
	assert.Equal(t, int64(3), got.Stats.Skipped)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, got.Duration() >= 0)
}

func TestSQLite_CompleteRun_Failed(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateRun(ctx, model.Run{InputPath: "a.csv", OutputPath: "a.csv", BatchSize: 5})
	require.NoError(t, err)

	err = st.CompleteRun(ctx, created.ID, model.RunStatusFailed, model.StatsSnapshot{}, "context canceled")
	require.NoError(t, err)

	got, err := st.GetRun(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "context canceled", got.Error)
}

func TestSQLite_CompleteRun_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.CompleteRun(context.Background(), "no-such-id", model.RunStatusCompleted, model.StatsSnapshot{}, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_GetRun_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListRuns_NewestFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	older, err := st.CreateRun(ctx, model.Run{
		InputPath: "old.csv", OutputPath: "old.csv", BatchSize: 5,
		StartedAt: time.Now().UTC().Add(-time.Hour),
	})
	require.NoError(t, err)
	newer, err := st.CreateRun(ctx, model.Run{
		InputPath: "new.csv", OutputPath: "new.csv", BatchSize: 5,
	})
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, older.ID, runs[1].ID)
}

func TestSQLite_ListRuns_Limit(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := st.CreateRun(ctx, model.Run{InputPath: "in.csv", OutputPath: "in.csv", BatchSize: 5})
		require.NoError(t, err)
	}

	runs, err := st.ListRuns(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestSQLite_ListRuns_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	runs, err := st.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
