package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielzillmann-hue/transformation-agent/internal/model"
)

// Summary is the machine-readable audit record written next to the project.
type Summary struct {
	GeneratedAt  time.Time                      `json:"generated_at"`
	Stats        map[model.DecisionSource]int   `json:"decisions_by_source"`
	Kinds        map[model.TableKind]int        `json:"tables_by_kind"`
	RunID        string                         `json:"run_id"`
	SourceSystem string                         `json:"source_system"`
	Rules        []string                       `json:"rules"`
	Decisions    []model.ClassificationDecision `json:"decisions"`
	Fallbacks    []model.FallbackType           `json:"fallback_types"`
	Skipped      []SkippedRecord                `json:"skipped"`
	Failed       []FailedTable                  `json:"failed"`
	Mappings     []model.MappingArtifact        `json:"mappings"`
	Shared       []model.SharedObject           `json:"shared_objects"`
	Artifacts    int                            `json:"artifacts"`
	Assertions   int                            `json:"assertions"`
	NonTable     int                            `json:"non_table_records"`
}

// NewSummary condenses a run result.
func NewSummary(result *Result, sourceSystem string) Summary {
	kinds := make(map[model.TableKind]int)
	for _, a := range result.Artifacts {
		kinds[a.Kind]++
	}
	return Summary{
		GeneratedAt:  result.FinishedAt,
		RunID:        result.RunID,
		SourceSystem: sourceSystem,
		Rules:        nonNil(result.Rules),
		Stats:        result.Stats,
		Kinds:        kinds,
		Decisions:    nonNil(result.Decisions),
		Fallbacks:    nonNil(result.Fallbacks),
		Skipped:      nonNil(result.Skipped),
		Failed:       nonNil(result.Failed),
		Mappings:     nonNil(result.Mappings),
		Shared:       nonNil(result.SharedObjects),
		Artifacts:    len(result.Artifacts),
		Assertions:   len(result.Assertions),
		NonTable:     result.NonTable,
	}
}

func writeSummary(path string, result *Result, sourceSystem string) error {
	data, err := json.MarshalIndent(NewSummary(result, sourceSystem), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// nonNil keeps empty lists as [] rather than null in the JSON output.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
