package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/danielzillmann-hue/transformation-agent/internal/common"
	"github.com/danielzillmann-hue/transformation-agent/internal/config"
	"github.com/danielzillmann-hue/transformation-agent/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRunner(t *testing.T, opts Options) (*Runner, config.Config) {
	t.Helper()
	profile, err := config.LoadProfile("", "sybase")
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.OutputRoot = t.TempDir()
	cfg.Warehouse.Project = "proj"

	runner, err := NewRunner(cfg, profile, opts)
	require.NoError(t, err)
	return runner, cfg
}

func ddlRecord(file, analysis string) model.AnalysisRecord {
	return model.AnalysisRecord{FileName: file, FileKind: model.FileKindDDL, AnalysisText: analysis}
}

func sampleRecords() []model.AnalysisRecord {
	return []model.AnalysisRecord{
		ddlRecord("d_patron.sql", "```json\n"+`{"table_name": "D_PATRON", "columns": [
			{"name": "patron_id", "type": "INT", "nullable": false},
			{"name": "tier", "type": "VARCHAR(10)"},
			{"name": "joined_dttm", "type": "DATETIME"}
		], "primary_keys": ["patron_id"]}`+"\n```"),
		ddlRecord("d_age_range.sql", `{"table_name": "D_AGE_RANGE", "columns": [{"name": "age_range_id", "type": "INT"}, {"name": "label", "type": "VARCHAR(20)"}], "primary_keys": ["age_range_id"]}`),
		ddlRecord("f_rating.sql", `{"table_name": "F_RATING", "columns": [{"name": "rating_id", "type": "INT"}, {"name": "updated_at", "type": "DATETIME"}], "primary_keys": ["rating_id"]}`),
		ddlRecord("t_org1.sql", `{"table_name": "T_ORG1", "columns": [{"name": "node", "type": "HIERARCHYID"}]}`),
		ddlRecord("t_org2.sql", `{"table_name": "T_ORG2", "columns": [{"name": "node", "type": "hierarchyid"}],}`),
		ddlRecord("empty.sql", `{"table_name": "EMPTY_T", "columns": []}`),
		ddlRecord("notes.sql", "The model could not analyze this file."),
		ddlRecord("nameless.sql", `{"columns": [{"name": "x"}]}`),
		{FileName: "sp_load.sql", FileKind: model.FileKindProcedure},
		{FileName: "wf_patron.xml", FileKind: model.FileKindETLMapping, AnalysisText: `{"mapping_name": "m_Load_Patron",
			"sources": ["D_PATRON", "SRC_LOYALTY"], "targets": ["D_PATRON"],
			"transformations": [{"name": "exp_tier", "type": "Expression"}], "logic_summary": "Derives the tier."}`},
		{FileName: "shared.xml", FileKind: model.FileKindETLMapping, AnalysisText: `{"mapping_name": "Shared Folder objects", "logic_summary": "Reusable lookups."}`},
	}
}

func sampleCategorization() model.Categorization {
	return model.Categorization{
		Categorizations: map[string]model.FieldVotes{
			"D_PATRON": {
				{Field: "patron_id", Domain: "Customer & Loyalty Management"},
				{Field: "tier", Domain: "Customer & Loyalty Management"},
				{Field: "joined_dttm", Domain: "Reference & Time Data"},
			},
		},
	}
}

func TestRun_GeneratesProject(t *testing.T) {
	runner, cfg := testRunner(t, Options{RunID: "run-1"})

	result, err := runner.Run(context.Background(), sampleRecords(), sampleCategorization())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cfg.OutputRoot, "run-1"), result.OutputDir)
	assert.Equal(t, 1, result.NonTable)

	paths := make([]string, len(result.Artifacts))
	for i, a := range result.Artifacts {
		paths[i] = a.Path
	}
	assert.Equal(t, []string{
		"definitions/customer_loyalty_management/d_patron.sqlx",
		"definitions/reference_time_data/d_age_range.sqlx",
		"definitions/reference_time_data/f_rating.sqlx",
		"definitions/reference_time_data/t_org1.sqlx",
		"definitions/reference_time_data/t_org2.sqlx",
	}, paths)

	kinds := make(map[string]model.TableKind)
	for _, a := range result.Artifacts {
		kinds[a.TableName] = a.Kind
	}
	assert.Equal(t, model.KindHistory, kinds["D_PATRON"])
	assert.Equal(t, model.KindStandard, kinds["D_AGE_RANGE"])
	assert.Equal(t, model.KindIncremental, kinds["F_RATING"])

	for _, p := range paths {
		data, err := os.ReadFile(filepath.Join(result.ProjectPath, filepath.FromSlash(p)))
		require.NoError(t, err)
		assert.Contains(t, string(data), "config {")
	}

	require.Len(t, result.Skipped, 2)
	assert.Equal(t, "notes.sql", result.Skipped[0].FileName)
	assert.Equal(t, "nameless.sql", result.Skipped[1].FileName)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, "EMPTY_T", result.Failed[0].TableName)

	require.Len(t, result.Fallbacks, 1)
	assert.Equal(t, "HIERARCHYID", result.Fallbacks[0].BaseType)

	assert.Equal(t, 2, result.Stats[model.SourceExplicitList])
	assert.Equal(t, 1, result.Stats[model.SourcePattern])
	assert.Equal(t, 3, result.Stats[model.SourceDefault])
}

func TestRun_WritesSupportFiles(t *testing.T) {
	runner, _ := testRunner(t, Options{RunID: "run-2"})

	result, err := runner.Run(context.Background(), sampleRecords(), sampleCategorization())
	require.NoError(t, err)

	settings, err := os.ReadFile(filepath.Join(result.ProjectPath, "dataform.json"))
	require.NoError(t, err)
	var parsed map[string]string
	require.NoError(t, json.Unmarshal(settings, &parsed))
	assert.Equal(t, "proj", parsed["defaultProject"])
	assert.Equal(t, "crown_default", parsed["defaultDataset"])

	helper, err := os.ReadFile(filepath.Join(result.ProjectPath, IncludesDir, HelperModule))
	require.NoError(t, err)
	assert.Contains(t, string(helper), "function mapSybaseType(sourceType)")

	report, err := os.ReadFile(filepath.Join(result.OutputDir, "type_mapping_report.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "HIERARCHYID -> STRING")

	data, err := os.ReadFile(filepath.Join(result.OutputDir, SummaryFileName))
	require.NoError(t, err)
	var summary Summary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, "run-2", summary.RunID)
	assert.Equal(t, "sybase", summary.SourceSystem)
	assert.Equal(t, 5, summary.Artifacts)
	assert.Equal(t, 7, summary.Assertions)
	assert.Len(t, summary.Mappings, 1)
	assert.Len(t, summary.Shared, 1)
	assert.Len(t, summary.Decisions, 6)
	assert.Equal(t, 1, summary.Kinds[model.KindHistory])
	assert.Equal(t, []string{"reference_list", "history_list", "incremental_pattern", "default"}, summary.Rules)
}

func TestRun_GeneratesAssertions(t *testing.T) {
	runner, _ := testRunner(t, Options{RunID: "checks"})

	result, err := runner.Run(context.Background(), sampleRecords(), sampleCategorization())
	require.NoError(t, err)

	names := make([]string, len(result.Assertions))
	for i, a := range result.Assertions {
		names[i] = a.Name
	}
	assert.ElementsMatch(t, []string{
		"d_patron_key_not_null",
		"d_patron_single_current_version",
		"d_patron_valid_window",
		"d_age_range_key_not_null",
		"d_age_range_unique_key",
		"f_rating_key_not_null",
		"f_rating_unique_key",
	}, names)

	data, err := os.ReadFile(filepath.Join(result.ProjectPath, "definitions/assertions/customer_loyalty_management/d_patron_single_current_version.sqlx"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `type: "assertion"`)
	assert.Contains(t, string(data), `FROM ${ref("crown_customer_loyalty", "d_patron")}`)

	index, err := os.ReadFile(filepath.Join(result.OutputDir, ValidationFileName))
	require.NoError(t, err)
	var listed []model.Assertion
	require.NoError(t, json.Unmarshal(index, &listed))
	assert.Len(t, listed, 7)
}

func TestRun_AssertionsDisabled(t *testing.T) {
	profile, err := config.LoadProfile("", "sybase")
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.OutputRoot = t.TempDir()
	cfg.Validation.Assertions = false

	runner, err := NewRunner(cfg, profile, Options{RunID: "nochecks"})
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), sampleRecords(), sampleCategorization())
	require.NoError(t, err)
	assert.Empty(t, result.Assertions)

	_, err = os.Stat(filepath.Join(result.OutputDir, ValidationFileName))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(result.ProjectPath, "definitions", "assertions"))
	assert.True(t, os.IsNotExist(err))
}

type fakeMappingWriter struct {
	err  error
	sql  string
	reqs []model.MappingRequest
	mu   sync.Mutex
}

func (f *fakeMappingWriter) WriteMapping(_ context.Context, req model.MappingRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.sql, f.err
}

func TestRun_ConvertsMappings(t *testing.T) {
	tests := []struct {
		writer      *fakeMappingWriter
		name        string
		wantBody    string
		wantWritten bool
	}{
		{
			name:     "scaffold without a model",
			wantBody: "src_d_patron AS (\n  SELECT * FROM ${ref(\"stg_d_patron\")}\n)",
		},
		{
			name:        "model-written SQL",
			writer:      &fakeMappingWriter{sql: "SELECT patron_id FROM ${ref(\"stg_d_patron\")}"},
			wantBody:    "SELECT patron_id FROM ${ref(\"stg_d_patron\")}\n",
			wantWritten: true,
		},
		{
			name:     "model failure falls back to scaffold",
			writer:   &fakeMappingWriter{err: common.ErrMappingFailed},
			wantBody: "-- Join src_src_loyalty as the mapping logic describes.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{RunID: "maps"}
			if tt.writer != nil {
				opts.MappingWriter = tt.writer
			}
			runner, _ := testRunner(t, opts)

			result, err := runner.Run(context.Background(), sampleRecords(), sampleCategorization())
			require.NoError(t, err)

			require.Len(t, result.Mappings, 1)
			m := result.Mappings[0]
			assert.Equal(t, "m_Load_Patron", m.MappingName)
			assert.Equal(t, "definitions/intermediate/m_load_patron.sqlx", m.Path)
			assert.Equal(t, "crown_customer_loyalty", m.Dataset)
			assert.Equal(t, tt.wantWritten, m.ModelWritten)

			data, err := os.ReadFile(filepath.Join(result.ProjectPath, filepath.FromSlash(m.Path)))
			require.NoError(t, err)
			assert.Contains(t, string(data), `type: "view"`)
			assert.Contains(t, string(data), tt.wantBody)

			if tt.writer != nil {
				require.Len(t, tt.writer.reqs, 1)
				assert.Equal(t, []string{`${ref("stg_d_patron")}`, `${ref("stg_src_loyalty")}`}, tt.writer.reqs[0].SourceRefs)
			}

			require.Len(t, result.SharedObjects, 1)
			doc, err := os.ReadFile(filepath.Join(result.OutputDir, SharedObjectsFileName))
			require.NoError(t, err)
			assert.Contains(t, string(doc), "## Shared Folder objects")
			assert.Contains(t, string(doc), "- File: `shared.xml`")
		})
	}
}

func TestRun_LegacyLabelsCountAsNonTable(t *testing.T) {
	records, err := model.DecodeAnalysisRecords([]byte(`{
		"d_site.sql": {"type": "sybase_ddl", "analysis": "{\"table_name\": \"D_SITE\", \"columns\": [{\"name\": \"site_id\", \"type\": \"INT\"}]}"},
		"sp_rollup.sql": {"type": "sql_transformation", "analysis": "Aggregates daily ratings."},
		"sp_purge.sql": {"type": "sql_transformation", "analysis": ""}
	}`))
	require.NoError(t, err)

	runner, _ := testRunner(t, Options{})
	result, err := runner.Run(context.Background(), records, model.Categorization{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.NonTable)
	assert.Empty(t, result.Skipped)
	require.Len(t, result.Artifacts, 1)
	assert.Equal(t, "D_SITE", result.Artifacts[0].TableName)
}

func TestRun_DomainLabelStaysInsideProject(t *testing.T) {
	runner, cfg := testRunner(t, Options{RunID: "trav"})

	records := []model.AnalysisRecord{
		ddlRecord("t_x.sql", `{"table_name": "T_X", "columns": [{"name": "id", "type": "INT"}]}`),
		ddlRecord("t_y.sql", `{"table_name": "../../T_Y", "columns": [{"name": "id", "type": "INT"}]}`),
	}
	cat := model.Categorization{Categorizations: map[string]model.FieldVotes{
		"T_X": {{Field: "id", Domain: "../../../escaped"}},
	}}

	result, err := runner.Run(context.Background(), records, cat)
	require.NoError(t, err)
	require.Len(t, result.Artifacts, 2)

	for _, a := range result.Artifacts {
		assert.NotContains(t, a.Path, "..")
		_, err := os.Stat(filepath.Join(result.ProjectPath, filepath.FromSlash(a.Path)))
		require.NoError(t, err)
	}
	assert.Equal(t, "definitions/_________escaped/t_x.sqlx", result.Artifacts[0].Path)
	assert.Equal(t, "definitions/reference_time_data/______t_y.sqlx", result.Artifacts[1].Path)

	_, err = os.Stat(filepath.Join(cfg.OutputRoot, "escaped"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteInTree(t *testing.T) {
	tests := []struct {
		name    string
		rel     string
		wantErr bool
	}{
		{name: "nested", rel: "definitions/a/b.sqlx"},
		{name: "dot segments that stay inside", rel: "definitions/../definitions/c.sqlx"},
		{name: "parent escape", rel: "../x.sqlx", wantErr: true},
		{name: "deep escape", rel: "definitions/../../../x.sqlx", wantErr: true},
		{name: "absolute", rel: "/tmp/x.sqlx", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := filepath.Join(t.TempDir(), "project")
			err := writeInTree(root, tt.rel, []byte("x"))
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrPathOutsideOutput)
				return
			}
			require.NoError(t, err)
			_, err = os.Stat(filepath.Join(root, filepath.FromSlash(tt.rel)))
			assert.NoError(t, err)
		})
	}
}

func TestRun_NoFallbackReportWhenAllTypesMapped(t *testing.T) {
	runner, _ := testRunner(t, Options{RunID: "clean"})

	result, err := runner.Run(context.Background(), sampleRecords()[:3], model.Categorization{})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(result.OutputDir, "type_mapping_report.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_OverridesApply(t *testing.T) {
	runner, _ := testRunner(t, Options{
		RunID:     "ovr",
		Overrides: map[string]string{"hierarchyid": "BYTES"},
	})

	result, err := runner.Run(context.Background(), sampleRecords(), model.Categorization{})
	require.NoError(t, err)
	assert.Empty(t, result.Fallbacks)

	data, err := os.ReadFile(filepath.Join(result.ProjectPath, "definitions/reference_time_data/t_org1.sqlx"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "CAST(node AS BYTES) AS node")
}

func TestRun_OutputDirNotWritable(t *testing.T) {
	profile, err := config.LoadProfile("", "sybase")
	require.NoError(t, err)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	cfg := config.DefaultConfig()
	cfg.OutputRoot = blocker

	runner, err := NewRunner(cfg, profile, Options{})
	require.NoError(t, err)

	_, err = runner.Run(context.Background(), sampleRecords(), model.Categorization{})
	assert.ErrorIs(t, err, common.ErrOutputNotWritable)
}

func TestNewRunner_InvalidPattern(t *testing.T) {
	profile, err := config.LoadProfile("", "sybase")
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Classification.IncrementalPatterns = []string{"([bad"}

	_, err = NewRunner(cfg, profile, Options{})
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestNewRunner_NilProfile(t *testing.T) {
	_, err := NewRunner(config.DefaultConfig(), nil, Options{})
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

type countingProgress struct {
	mu sync.Mutex
	n  int
}

func (p *countingProgress) Add(n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n += n
	return nil
}

func TestRun_ReportsProgressPerTable(t *testing.T) {
	progress := &countingProgress{}
	runner, _ := testRunner(t, Options{Progress: progress})

	_, err := runner.Run(context.Background(), sampleRecords(), model.Categorization{})
	require.NoError(t, err)
	assert.Equal(t, 6, progress.n)
}

func TestRun_DuplicateTableKeepsLaterRecord(t *testing.T) {
	runner, _ := testRunner(t, Options{})

	records := []model.AnalysisRecord{
		ddlRecord("a.sql", `{"table_name": "D_SITE", "columns": [{"name": "old_col", "type": "INT"}]}`),
		ddlRecord("b.sql", `{"table_name": "d_site", "columns": [{"name": "new_col", "type": "INT"}]}`),
	}
	result, err := runner.Run(context.Background(), records, model.Categorization{})
	require.NoError(t, err)
	require.Len(t, result.Artifacts, 1)
	assert.Contains(t, result.Artifacts[0].Content, "new_col")
	assert.NotContains(t, result.Artifacts[0].Content, "old_col")
}

type fakeRecorder struct {
	runs      map[string]model.Run
	decisions map[string][]model.ClassificationDecision
	fallbacks map[string][]model.FallbackType
	artifacts map[string][]model.Artifact
	mu        sync.Mutex
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		runs:      make(map[string]model.Run),
		decisions: make(map[string][]model.ClassificationDecision),
		fallbacks: make(map[string][]model.FallbackType),
		artifacts: make(map[string][]model.Artifact),
	}
}

func (f *fakeRecorder) SaveRun(_ context.Context, run *model.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[run.ID] = *run
	return nil
}

func (f *fakeRecorder) FinishRun(_ context.Context, run *model.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[run.ID] = *run
	return nil
}

func (f *fakeRecorder) SaveDecisions(_ context.Context, runID string, d []model.ClassificationDecision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions[runID] = d
	return nil
}

func (f *fakeRecorder) SaveFallbackTypes(_ context.Context, runID string, fb []model.FallbackType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallbacks[runID] = fb
	return nil
}

func (f *fakeRecorder) SaveArtifacts(_ context.Context, runID string, a []model.Artifact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artifacts[runID] = a
	return nil
}

func TestRun_RecordsHistory(t *testing.T) {
	rec := newFakeRecorder()
	runner, _ := testRunner(t, Options{RunID: "hist", Recorder: rec})

	_, err := runner.Run(context.Background(), sampleRecords(), sampleCategorization())
	require.NoError(t, err)

	run := rec.runs["hist"]
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 5, run.TablesGenerated)
	assert.Equal(t, 3, run.TablesSkipped)
	require.NotNil(t, run.FinishedAt)
	assert.Len(t, rec.decisions["hist"], 6)
	assert.Len(t, rec.fallbacks["hist"], 1)
	assert.Len(t, rec.artifacts["hist"], 5)
}

func TestRun_CanceledContext(t *testing.T) {
	rec := newFakeRecorder()
	runner, _ := testRunner(t, Options{RunID: "cancel", Recorder: rec})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Run(ctx, sampleRecords(), model.Categorization{})
	require.ErrorIs(t, err, context.Canceled)

	run := rec.runs["cancel"]
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.NotEmpty(t, run.Error)
}
