package main

import (
	"context"
	"testing"
	"time"

	"github.com/danielzillmann-hue/transformation-agent/internal/config"
	"github.com/danielzillmann-hue/transformation-agent/internal/model"
	"github.com/danielzillmann-hue/transformation-agent/internal/storage"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountTables(t *testing.T) {
	records := []model.AnalysisRecord{
		{FileName: "a.sql", FileKind: model.FileKindDDL},
		{FileName: "b.sql", FileKind: model.FileKindProcedure},
		{FileName: "c.xml", FileKind: model.FileKindETLMapping},
		{FileName: "d.txt"},
	}
	assert.Equal(t, 2, countTables(records))
	assert.Zero(t, countTables(nil))
}

func TestRenderProfile(t *testing.T) {
	p, err := config.LoadProfile("", "sybase")
	require.NoError(t, err)

	out := renderProfile(p)
	assert.Contains(t, out, "sybase")
	assert.Contains(t, out, "VARCHAR")
	assert.Contains(t, out, "INT64")
	assert.Contains(t, out, p.Domain())
}

type fakeReader struct {
	run       *model.Run
	decisions []model.ClassificationDecision
	fallbacks []model.FallbackType
	artifacts []model.Artifact
}

func (f *fakeReader) ListRuns(_ context.Context, _ int) ([]model.Run, error) {
	if f.run == nil {
		return nil, nil
	}
	return []model.Run{*f.run}, nil
}

func (f *fakeReader) GetRun(_ context.Context, id string) (*model.Run, error) {
	if f.run == nil || f.run.ID != id {
		return nil, storage.ErrNotFound
	}
	return f.run, nil
}

func (f *fakeReader) GetDecisions(_ context.Context, _ string) ([]model.ClassificationDecision, error) {
	return f.decisions, nil
}

func (f *fakeReader) GetFallbackTypes(_ context.Context, _ string) ([]model.FallbackType, error) {
	return f.fallbacks, nil
}

func (f *fakeReader) GetArtifacts(_ context.Context, _ string) ([]model.Artifact, error) {
	return f.artifacts, nil
}

func TestRenderRun(t *testing.T) {
	reader := &fakeReader{
		run: &model.Run{
			ID:           "run-1",
			StartedAt:    time.Now(),
			SourceSystem: "sybase",
			OutputDir:    "runs/run-1",
			Status:       model.RunStatusCompleted,
		},
		decisions: []model.ClassificationDecision{
			{TableName: "D_PATRON", Kind: model.KindHistory, Source: model.SourceExplicitList, Confidence: model.ConfidenceHigh},
		},
		fallbacks: []model.FallbackType{{BaseType: "HIERARCHYID", TargetType: "STRING", Occurrences: 3}},
		artifacts: []model.Artifact{{TableName: "d_patron", Path: "definitions/reference_time_data/d_patron.sqlx"}},
	}

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	out, err := renderRun(cmd, reader, "run-1")
	require.NoError(t, err)
	assert.Contains(t, out, "D_PATRON")
	assert.Contains(t, out, "d_patron.sqlx")
	assert.Contains(t, out, "HIERARCHYID")
	assert.Contains(t, out, "completed")

	_, err = renderRun(cmd, reader, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
