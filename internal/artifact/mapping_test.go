package artifact

import (
	"encoding/json"
	"testing"

	"github.com/danielzillmann-hue/transformation-agent/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSharedObject(t *testing.T) {
	tests := []struct {
		name    string
		mapping model.MappingAnalysis
		want    bool
	}{
		{name: "runnable", mapping: model.MappingAnalysis{MappingName: "m_load", Sources: model.NameList{"A"}, Targets: model.NameList{"B"}}},
		{name: "target only", mapping: model.MappingAnalysis{MappingName: "m_seed", Targets: model.NameList{"B"}}},
		{name: "nothing read or written", mapping: model.MappingAnalysis{MappingName: "m_empty"}, want: true},
		{name: "reusable marker", mapping: model.MappingAnalysis{MappingName: "Reusable Lookups", Sources: model.NameList{"A"}}, want: true},
		{name: "not found marker", mapping: model.MappingAnalysis{MappingName: "Mapping NOT FOUND in export", Targets: model.NameList{"B"}}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSharedObject(tt.mapping))
		})
	}
}

func TestGenerateMapping_Scaffold(t *testing.T) {
	var m model.MappingAnalysis
	require.NoError(t, json.Unmarshal([]byte(`{
		"mapping_name": "m_Load_Rating",
		"sources": ["F_RATING", {"name": "D_SITE", "type": "Source Qualifier"}],
		"targets": "F_RATING_DAILY",
		"transformations": [{"type": "Aggregator"}, "exp_amount", ""],
		"logic_summary": "Sums ratings per site.\nDrops voids."
	}`), &m))

	art, err := newTestGenerator(Options{}).GenerateMapping(MappingInput{Mapping: m, FileName: "wf_rating.xml", Domain: "Customer"})
	require.NoError(t, err)

	want := `-- Dataform view converted from ETL mapping m_Load_Rating
-- File: wf_rating.xml
-- Targets: F_RATING_DAILY
-- Transformations: Aggregator, exp_amount
-- Sums ratings per site.
-- Drops voids.

config {
  type: "view",
  schema: "crown_customer",
  tags: ["etl_mapping"],
  description: "Migrated from ETL mapping m_Load_Rating"
}

WITH src_f_rating AS (
  SELECT * FROM ${ref("stg_f_rating")}
),

src_d_site AS (
  SELECT * FROM ${ref("stg_d_site")}
)

-- Join src_d_site as the mapping logic describes.
SELECT *
FROM src_f_rating
`
	assert.Equal(t, want, art.Content)
	assert.Equal(t, "definitions/intermediate/m_load_rating.sqlx", art.Path)
	assert.Equal(t, []string{"F_RATING", "D_SITE"}, art.Sources)
	assert.Equal(t, []string{"F_RATING_DAILY"}, art.Targets)
	assert.False(t, art.ModelWritten)
}

func TestGenerateMapping_ModelSQLAndErrors(t *testing.T) {
	g := newTestGenerator(Options{})

	art, err := g.GenerateMapping(MappingInput{
		Mapping:  model.MappingAnalysis{Targets: model.NameList{"X"}},
		FileName: "exports/wf_seed.xml",
		SQL:      "  SELECT 1 AS one  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "wf_seed", art.MappingName, "name falls back to the file name")
	assert.True(t, art.ModelWritten)
	assert.Contains(t, art.Content, "}\n\nSELECT 1 AS one\n")
	assert.Equal(t, "crown_default", art.Dataset)

	_, err = g.GenerateMapping(MappingInput{Mapping: model.MappingAnalysis{MappingName: "m_seed", Targets: model.NameList{"X"}}})
	assert.ErrorIs(t, err, ErrNoSources)
}

func TestRenderSharedObjects(t *testing.T) {
	doc := RenderSharedObjects([]model.SharedObject{
		{FileName: "shared.xml", Name: "Shared Folder", LogicSummary: "Reusable\n  lookups."},
		{FileName: "conn.xml", Name: "Connections"},
	})

	assert.Contains(t, doc, "# Shared ETL objects\n")
	assert.Contains(t, doc, "## Shared Folder\n\n- File: `shared.xml`\n- Summary: Reusable lookups.\n")
	assert.Contains(t, doc, "## Connections\n\n- File: `conn.xml`\n")
}
