// Package ddl turns legacy CREATE TABLE scripts into analysis records without
// a model in the loop.
package ddl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/danielzillmann-hue/transformation-agent/internal/common"
	"github.com/danielzillmann-hue/transformation-agent/internal/model"
	"github.com/ha1tch/tsqlparser"
	"github.com/ha1tch/tsqlparser/ast"
)

// ErrNoTables is returned when a script declares no parsable table.
var ErrNoTables = errors.New("no CREATE TABLE statements found")

var (
	goStatementPattern  = regexp.MustCompile(`(?im)^\s*GO\s*$`)
	createTablePattern  = regexp.MustCompile(`(?i)\bCREATE\s+TABLE\b`)
	tableMentionPattern = regexp.MustCompile(`(?i)\b(?:CREATE|ALTER)\s+TABLE\s+([#\w.\[\]"]+)`)
	primaryKeyPattern   = regexp.MustCompile(`(?i)\bPRIMARY\s+KEY\s*(?:(?:CLUSTERED|NONCLUSTERED)\s*)?\(([^)]*)\)`)
	spPrimaryKeyPattern = regexp.MustCompile(`(?im)^\s*(?:EXEC(?:UTE)?\s+)?sp_primarykey\s+['"]?([\w.\[\]]+)['"]?\s*,\s*([^\n;]+)`)
)

// FileClassifier decides what kind of source a file is from its name.
type FileClassifier interface {
	FileKind(filename string) model.FileKind
}

// Analyzer parses T-SQL and Sybase DDL.
type Analyzer struct {
	files  FileClassifier
	logger *slog.Logger
}

// NewAnalyzer creates an Analyzer. files may be nil, in which case every
// file is treated as DDL.
func NewAnalyzer(files FileClassifier, logger *slog.Logger) *Analyzer {
	return &Analyzer{files: files, logger: common.LoggerOrDefault(logger)}
}

// ParseTables extracts every table declared in source. Primary keys come
// from inline constraints, table constraints, ALTER TABLE statements and
// sp_primarykey calls.
func (a *Analyzer) ParseTables(source string) ([]model.TableAnalysis, error) {
	keys := primaryKeys(source)

	var tables []model.TableAnalysis
	seen := make(map[string]int)
	for i, batch := range goStatementPattern.Split(source, -1) {
		if !createTablePattern.MatchString(batch) {
			continue
		}

		program, errs := tsqlparser.Parse(batch)
		if len(errs) > 0 {
			a.logger.Warn("DDL batch parsed with errors",
				"batch", i+1,
				"errors", strings.Join(errs, "; "))
		}
		if program == nil {
			continue
		}

		for _, stmt := range program.Statements {
			create, ok := stmt.(*ast.CreateTableStatement)
			if !ok || create.Name == nil {
				continue
			}
			t := tableFromStatement(create)
			if t.TableName == "" || strings.HasPrefix(t.TableName, "#") {
				continue
			}
			if extra, ok := keys[strings.ToLower(t.TableName)]; ok {
				t.PrimaryKeys = mergeKeys(t.PrimaryKeys, extra)
			}

			if idx, dup := seen[strings.ToLower(t.TableName)]; dup {
				tables[idx] = t
				continue
			}
			seen[strings.ToLower(t.TableName)] = len(tables)
			tables = append(tables, t)
		}
	}

	if len(tables) == 0 {
		return nil, ErrNoTables
	}
	return tables, nil
}

// AnalyzeSource produces one DDL record per table in source. Records for
// multi-table scripts are named "<file>#<table>".
func (a *Analyzer) AnalyzeSource(fileName, source string) ([]model.AnalysisRecord, error) {
	tables, err := a.ParseTables(source)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}

	records := make([]model.AnalysisRecord, 0, len(tables))
	for _, t := range tables {
		text, err := json.MarshalIndent(t, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode analysis for %s: %w", t.TableName, err)
		}
		name := fileName
		if len(tables) > 1 {
			name = fileName + "#" + t.TableName
		}
		records = append(records, model.AnalysisRecord{
			FileName:     name,
			FileKind:     model.FileKindDDL,
			AnalysisText: string(text),
		})
	}
	return records, nil
}

// AnalyzeDir walks dir and analyzes every DDL file. Procedures and ETL
// exports are returned as records without analysis; unknown files are
// skipped. Files that fail to parse are logged and skipped.
func (a *Analyzer) AnalyzeDir(ctx context.Context, dir string) ([]model.AnalysisRecord, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	sort.Strings(paths)

	var records []model.AnalysisRecord
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = filepath.Base(path)
		}
		rel = filepath.ToSlash(rel)

		kind := model.FileKindDDL
		if a.files != nil {
			kind = a.files.FileKind(filepath.Base(path))
		}

		switch kind {
		case model.FileKindProcedure, model.FileKindETLMapping:
			records = append(records, model.AnalysisRecord{FileName: rel, FileKind: kind})
			continue
		case model.FileKindDDL:
		default:
			a.logger.Debug("skipping unrecognized file", "file", rel)
			continue
		}

		data, err := os.ReadFile(path) //nolint:gosec // walking a user-supplied source tree
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		fileRecords, err := a.AnalyzeSource(rel, string(data))
		if err != nil {
			a.logger.Warn("skipping DDL file", "file", rel, "error", err)
			continue
		}
		records = append(records, fileRecords...)
	}

	a.logger.Info("analyzed source tree", "dir", dir, "records", len(records))
	return records, nil
}

func tableFromStatement(s *ast.CreateTableStatement) model.TableAnalysis {
	t := model.TableAnalysis{TableName: normalizeName(s.Name.String())}

	for _, col := range s.Columns {
		if col == nil {
			continue
		}
		c := model.AnalysisColumn{Name: normalizeName(col.Name.Value)}
		if col.DataType != nil {
			typ := col.DataType.String()
			c.Type = &typ
		}
		nullable := true
		if col.Nullable != nil {
			nullable = *col.Nullable
		}
		for _, constraint := range col.Constraints {
			if constraint.IsPrimaryKey {
				nullable = false
				t.PrimaryKeys = append(t.PrimaryKeys, c.Name)
			}
		}
		c.Nullable = &nullable
		t.Columns = append(t.Columns, c)
	}
	return t
}

// primaryKeys scans source for key declarations outside column definitions
// and attributes each to the most recently mentioned table.
func primaryKeys(source string) map[string][]string {
	out := make(map[string][]string)

	mentions := tableMentionPattern.FindAllStringSubmatchIndex(source, -1)
	for _, m := range primaryKeyPattern.FindAllStringSubmatchIndex(source, -1) {
		table := ""
		for _, mention := range mentions {
			if mention[0] > m[0] {
				break
			}
			table = normalizeName(source[mention[2]:mention[3]])
		}
		if table == "" {
			continue
		}
		key := strings.ToLower(table)
		out[key] = mergeKeys(out[key], splitColumns(source[m[2]:m[3]]))
	}

	for _, m := range spPrimaryKeyPattern.FindAllStringSubmatch(source, -1) {
		key := strings.ToLower(normalizeName(m[1]))
		out[key] = mergeKeys(out[key], splitColumns(m[2]))
	}
	return out
}

func splitColumns(list string) []string {
	var cols []string
	for _, part := range strings.Split(list, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		// Drop ASC/DESC ordering.
		if name := normalizeName(fields[0]); name != "" {
			cols = append(cols, name)
		}
	}
	return cols
}

func mergeKeys(existing, extra []string) []string {
	for _, k := range extra {
		dup := false
		for _, e := range existing {
			if strings.EqualFold(e, k) {
				dup = true
				break
			}
		}
		if !dup {
			existing = append(existing, k)
		}
	}
	return existing
}

// normalizeName strips quoting and any database or owner qualifier.
func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.NewReplacer("[", "", "]", "", `"`, "", "'", "").Replace(name)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSpace(name)
}
