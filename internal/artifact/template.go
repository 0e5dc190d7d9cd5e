package artifact

import (
	"fmt"
	"slices"
	"strings"

	"github.com/danielzillmann-hue/transformation-agent/internal/model"
)

// History metadata columns added to every change-tracked table.
const (
	ValidFromColumn = "valid_from"
	ValidToColumn   = "valid_to"
	IsCurrentColumn = "is_current"
)

// DefaultBusinessKey is used when a table declares no primary key.
var DefaultBusinessKey = []string{"id"}

// Template renders one load kind. The set of implementations is closed.
type Template interface {
	Kind() model.TableKind
	configType() string
	// extraConfig returns config entries placed after schema.
	extraConfig(r *render) []string
	body(r *render) string
}

// templateFor selects the template for a load kind. Unknown kinds render as
// standard tables.
func templateFor(kind model.TableKind) Template {
	switch kind {
	case model.KindHistory:
		return historyTemplate{}
	case model.KindIncremental:
		return incrementalTemplate{}
	default:
		return standardTemplate{}
	}
}

// render carries everything a template needs for one table.
type render struct {
	in             Input
	source         string
	businessKey    []string
	compareColumns []string
	modified       string
}

// projection renders "CAST(col AS TYPE) AS col" lines, leaving out any
// column named in skip.
func (r *render) projection(indent string, skip ...string) []string {
	lines := make([]string, 0, len(r.in.Columns))
	for _, c := range r.in.Columns {
		if slices.ContainsFunc(skip, func(s string) bool { return strings.EqualFold(s, c.Name) }) {
			continue
		}
		lines = append(lines, fmt.Sprintf("%sCAST(%s AS %s) AS %s", indent, c.Name, c.TargetType, c.Name))
	}
	return lines
}

func (r *render) keyJoin(left, right string) string {
	parts := make([]string, len(r.businessKey))
	for i, k := range r.businessKey {
		parts[i] = fmt.Sprintf("%s.%s = %s.%s", left, k, right, k)
	}
	return strings.Join(parts, "\n    AND ")
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = jsString(v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

type standardTemplate struct{}

func (standardTemplate) Kind() model.TableKind { return model.KindStandard }

func (standardTemplate) configType() string { return "table" }

func (standardTemplate) extraConfig(*render) []string { return nil }

func (standardTemplate) body(r *render) string {
	var b strings.Builder
	b.WriteString("SELECT\n")
	b.WriteString(strings.Join(r.projection("  "), ",\n"))
	fmt.Fprintf(&b, "\nFROM %s\n", r.source)
	return b.String()
}

type historyTemplate struct{}

func (historyTemplate) Kind() model.TableKind { return model.KindHistory }

// Rows are only ever appended; closing a version writes a new row.
func (historyTemplate) configType() string { return "incremental" }

func (historyTemplate) extraConfig(*render) []string {
	return []string{`tags: ["history"]`}
}

func (historyTemplate) body(r *render) string {
	changed := changePredicate(r.compareColumns, "e", "i")
	firstKey := r.businessKey[0]

	var b strings.Builder
	b.WriteString("WITH incoming AS (\n  SELECT\n")
	// Source copies of the validity columns are replaced by fresh ones.
	lines := r.projection("    ", ValidFromColumn, ValidToColumn, IsCurrentColumn)
	lines = append(lines,
		"    CURRENT_TIMESTAMP() AS "+ValidFromColumn,
		"    CAST(NULL AS TIMESTAMP) AS "+ValidToColumn,
		"    TRUE AS "+IsCurrentColumn,
	)
	b.WriteString(strings.Join(lines, ",\n"))
	fmt.Fprintf(&b, "\n  FROM %s\n),\n\n", r.source)

	b.WriteString("existing AS (\n")
	fmt.Fprintf(&b, "  ${when(incremental(),\n    `SELECT * FROM ${self()} WHERE %s = TRUE`,\n    `SELECT * FROM incoming WHERE FALSE`)}\n),\n\n", IsCurrentColumn)

	b.WriteString("changed AS (\n  SELECT e.*\n  FROM existing e\n  JOIN incoming i\n")
	fmt.Fprintf(&b, "    ON %s\n  WHERE %s\n),\n\n", r.keyJoin("e", "i"), changed)

	b.WriteString("closed_records AS (\n  SELECT\n")
	fmt.Fprintf(&b, "    * EXCEPT (%s, %s),\n", ValidToColumn, IsCurrentColumn)
	fmt.Fprintf(&b, "    CURRENT_TIMESTAMP() AS %s,\n    FALSE AS %s\n  FROM changed\n),\n\n", ValidToColumn, IsCurrentColumn)

	b.WriteString("new_records AS (\n  SELECT i.*\n  FROM incoming i\n  LEFT JOIN existing e\n")
	fmt.Fprintf(&b, "    ON %s\n  WHERE e.%s IS NULL\n     OR %s\n)\n\n", r.keyJoin("e", "i"), firstKey, changed)

	b.WriteString("SELECT * FROM closed_records\nUNION ALL\nSELECT * FROM new_records\n")
	return b.String()
}

// changePredicate is true when any compared column differs between the two
// row aliases. With nothing to compare no row ever counts as changed.
func changePredicate(columns []string, left, right string) string {
	if len(columns) == 0 {
		return "FALSE"
	}
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = fmt.Sprintf("%s.%s IS DISTINCT FROM %s.%s", left, c, right, c)
	}
	return "(" + strings.Join(parts, "\n       OR ") + ")"
}

type incrementalTemplate struct{}

func (incrementalTemplate) Kind() model.TableKind { return model.KindIncremental }

func (incrementalTemplate) configType() string { return "incremental" }

func (incrementalTemplate) extraConfig(r *render) []string {
	return []string{"uniqueKey: " + quoteList(r.businessKey)}
}

func (incrementalTemplate) body(r *render) string {
	firstKey := r.businessKey[0]

	var b strings.Builder
	b.WriteString("WITH source AS (\n  SELECT\n")
	b.WriteString(strings.Join(r.projection("    "), ",\n"))
	fmt.Fprintf(&b, "\n  FROM %s\n)\n\n", r.source)

	b.WriteString("SELECT s.*\nFROM source s\n")
	fmt.Fprintf(&b, "${when(incremental(), `LEFT JOIN ${self()} t\n  ON %s\nWHERE t.%s IS NULL", r.keyJoin("t", "s"), firstKey)
	if r.modified != "" {
		fmt.Fprintf(&b, "\n   OR s.%s > t.%s", r.modified, r.modified)
	}
	b.WriteString("`)}\n")
	return b.String()
}
