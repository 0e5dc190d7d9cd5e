package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielzillmann-hue/transformation-agent/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func testRun(id string, started time.Time) *model.Run {
	return &model.Run{
		ID:           id,
		SourceSystem: "sybase",
		OutputDir:    "/tmp/out/" + id,
		Status:       model.RunStatusRunning,
		StartedAt:    started,
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))

	var version int
	require.NoError(t, store.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version))
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("  ")
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestRunLifecycle(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	started := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	run := testRun("run-1", started)
	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Nil(t, got.FinishedAt)
	assert.True(t, started.Equal(got.StartedAt))

	finished := started.Add(90 * time.Second)
	run.Status = model.RunStatusCompleted
	run.TablesGenerated = 12
	run.TablesSkipped = 2
	run.FinishedAt = &finished
	require.NoError(t, store.FinishRun(ctx, run))

	got, err = store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	assert.Equal(t, 12, got.TablesGenerated)
	assert.Equal(t, 2, got.TablesSkipped)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, finished.Equal(*got.FinishedAt))
}

func TestGetRun_NotFound(t *testing.T) {
	store := createTestStorage(t)

	_, err := store.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.FinishRun(context.Background(), testRun("missing", time.Now()))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRun_Validation(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	tests := []struct {
		run  *model.Run
		name string
	}{
		{name: "nil", run: nil},
		{name: "missing id", run: testRun("", time.Now())},
		{name: "missing start", run: testRun("x", time.Time{})},
		{name: "bad status", run: &model.Run{ID: "x", StartedAt: time.Now(), Status: "paused"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, store.SaveRun(ctx, tt.run))
		})
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.SaveRun(ctx, testRun(id, base.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)

	all, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDecisionsRoundTrip(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	require.NoError(t, store.SaveRun(ctx, testRun("run-1", time.Now())))

	decisions := []model.ClassificationDecision{
		{TableName: "D_PATRON", Kind: model.KindHistory, Confidence: model.ConfidenceHigh, Source: model.SourceExplicitList, Reasoning: "listed"},
		{TableName: "D_AGE_RANGE", Kind: model.KindStandard, Confidence: model.ConfidenceHigh, Source: model.SourceExplicitList},
	}
	require.NoError(t, store.SaveDecisions(ctx, "run-1", decisions))

	// Re-saving a table replaces the earlier row.
	require.NoError(t, store.SaveDecisions(ctx, "run-1", []model.ClassificationDecision{
		{TableName: "D_PATRON", Kind: model.KindStandard, Confidence: model.ConfidenceLow, Source: model.SourceDefault},
	}))

	got, err := store.GetDecisions(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "D_AGE_RANGE", got[0].TableName)
	assert.Equal(t, model.ClassificationDecision{
		TableName: "D_PATRON", Kind: model.KindStandard, Confidence: model.ConfidenceLow, Source: model.SourceDefault,
	}, got[1])
}

func TestSaveDecisions_RejectsUnnamed(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	require.NoError(t, store.SaveRun(ctx, testRun("run-1", time.Now())))

	err := store.SaveDecisions(ctx, "run-1", []model.ClassificationDecision{{TableName: " "}})
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestFallbackTypesAndArtifacts(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	require.NoError(t, store.SaveRun(ctx, testRun("run-1", time.Now())))

	require.NoError(t, store.SaveFallbackTypes(ctx, "run-1", []model.FallbackType{
		{BaseType: "SYSNAME", TargetType: "STRING", Occurrences: 3},
		{BaseType: "HIERARCHYID", TargetType: "STRING", Occurrences: 500},
	}))
	fallbacks, err := store.GetFallbackTypes(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, fallbacks, 2)
	assert.Equal(t, "HIERARCHYID", fallbacks[0].BaseType)
	assert.Equal(t, 500, fallbacks[0].Occurrences)

	require.NoError(t, store.SaveArtifacts(ctx, "run-1", []model.Artifact{
		{TableName: "D_PATRON", DomainSlug: "customer", TableSlug: "d_patron", Dataset: "dim", Kind: model.KindHistory, Path: "definitions/customer/d_patron.sqlx", Content: "ignored"},
	}))
	artifacts, err := store.GetArtifacts(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, model.KindHistory, artifacts[0].Kind)
	assert.Equal(t, "definitions/customer/d_patron.sqlx", artifacts[0].Path)
	assert.Empty(t, artifacts[0].Content)
}

func TestSaveDecisions_UnknownRun(t *testing.T) {
	store := createTestStorage(t)

	err := store.SaveDecisions(context.Background(), "ghost", []model.ClassificationDecision{
		{TableName: "T", Kind: model.KindStandard, Confidence: model.ConfidenceHigh, Source: model.SourceDefault},
	})
	assert.Error(t, err)
}
