package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FileKind identifies what sort of source artifact an analysis record came from.
type FileKind string

// File kind constants.
const (
	FileKindDDL        FileKind = "ddl"
	FileKindProcedure  FileKind = "procedure"
	FileKindETLMapping FileKind = "etl_mapping"
	FileKindUnknown    FileKind = "unknown"
)

// ParseFileKind maps the loose labels produced by analyzers onto a FileKind.
// The source-qualified labels of the legacy object form are accepted too.
func ParseFileKind(s string) FileKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ddl", "table", "schema", "sybase_ddl":
		return FileKindDDL
	case "procedure", "proc", "stored_procedure", "sql_transformation":
		return FileKindProcedure
	case "etl", "etl_mapping", "mapping", "workflow", "informatica_xml":
		return FileKindETLMapping
	default:
		return FileKindUnknown
	}
}

// AnalysisRecord is the raw output of an upstream analyzer for one source file.
// AnalysisText is expected to contain a JSON document but may be wrapped in
// prose or code fences.
type AnalysisRecord struct {
	FileName     string   `json:"file_name"`
	FileKind     FileKind `json:"file_kind"`
	AnalysisText string   `json:"analysis_text"`
}

// TableAnalysis is the structured document extracted from AnalysisText.
type TableAnalysis struct {
	TableName   string           `json:"table_name"`
	Columns     []AnalysisColumn `json:"columns"`
	PrimaryKeys []string         `json:"primary_keys"`
}

// AnalysisColumn mirrors one entry of the analyzer's column list. Type and
// Nullable are pointers so that absent fields can take their defaults.
type AnalysisColumn struct {
	Name     string  `json:"name"`
	Type     *string `json:"type,omitempty"`
	Nullable *bool   `json:"nullable,omitempty"`
}

// Schema converts the analysis into a TableSchema, applying defaults for
// missing column types and nullability. Columns without a name are dropped.
func (a TableAnalysis) Schema() TableSchema {
	cols := make([]Column, 0, len(a.Columns))
	for _, c := range a.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		col := Column{Name: name, SourceType: DefaultSourceType, Nullable: true}
		if c.Type != nil && strings.TrimSpace(*c.Type) != "" {
			col.SourceType = strings.TrimSpace(*c.Type)
		}
		if c.Nullable != nil {
			col.Nullable = *c.Nullable
		}
		cols = append(cols, col)
	}
	return TableSchema{
		Name:        strings.TrimSpace(a.TableName),
		Columns:     cols,
		PrimaryKeys: a.PrimaryKeys,
	}
}

// DecodeAnalysisRecords accepts either a JSON array of records or the legacy
// object form keyed by file name ({"file.sql": {"type": "ddl", "analysis": "..."}}).
// The object form is returned sorted by file name.
func DecodeAnalysisRecords(data []byte) ([]AnalysisRecord, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var records []AnalysisRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to decode analysis records: %w", err)
		}
		for i := range records {
			records[i].FileKind = ParseFileKind(string(records[i].FileKind))
		}
		return records, nil
	}

	var legacy map[string]struct {
		Type     string `json:"type"`
		Analysis string `json:"analysis"`
	}
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("failed to decode analysis records: %w", err)
	}

	records := make([]AnalysisRecord, 0, len(legacy))
	for name, entry := range legacy {
		records = append(records, AnalysisRecord{
			FileName:     name,
			FileKind:     ParseFileKind(entry.Type),
			AnalysisText: entry.Analysis,
		})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].FileName < records[j].FileName
	})
	return records, nil
}
