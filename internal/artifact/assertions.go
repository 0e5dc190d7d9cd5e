package artifact

import (
	"fmt"
	"path"
	"strings"

	"github.com/danielzillmann-hue/transformation-agent/internal/model"
)

// AssertionsDir holds the generated checks below definitions/.
const AssertionsDir = "assertions"

// Assertion checks. Each names one failure condition; an assertion passes
// when its query returns no rows.
const (
	CheckKeyNotNull      = "key_not_null"
	CheckUniqueKey       = "unique_key"
	CheckSingleCurrent   = "single_current_version"
	CheckValidWindow     = "valid_window"
	CheckRequiredColumns = "required_columns"
)

// Assertions renders the data-quality checks for a generated table.
//
// Key columns must never be null. Standard and incremental tables hold one
// row per key; history tables hold one current version per key with a
// well-formed validity window. Columns declared NOT NULL in the source stay
// non-null. A table without a usable key gets only the column check.
func (g *Generator) Assertions(in Input, art model.Artifact) []model.Assertion {
	target := fmt.Sprintf(`${ref(%s, %s)}`, jsString(art.Dataset), jsString(art.TableSlug))
	key := g.assertionKey(in.Table, art.Kind)

	var out []model.Assertion
	add := func(check, description, body string) {
		out = append(out, g.assertion(art, check, description, body))
	}

	if len(key) > 0 {
		keyList := strings.Join(key, ", ")
		add(CheckKeyNotNull,
			fmt.Sprintf("%s key (%s) is never null", in.Table.Name, keyList),
			fmt.Sprintf("SELECT *\nFROM %s\nWHERE %s\n", target, nullPredicate(key)))

		if art.Kind == model.KindHistory {
			add(CheckSingleCurrent,
				fmt.Sprintf("%s has one current version per key", in.Table.Name),
				fmt.Sprintf("SELECT %s, COUNT(*) AS current_versions\nFROM %s\nWHERE %s = TRUE\nGROUP BY %s\nHAVING COUNT(*) > 1\n",
					keyList, target, IsCurrentColumn, keyList))
		} else {
			add(CheckUniqueKey,
				fmt.Sprintf("%s has one row per key", in.Table.Name),
				fmt.Sprintf("SELECT %s, COUNT(*) AS row_count\nFROM %s\nGROUP BY %s\nHAVING COUNT(*) > 1\n",
					keyList, target, keyList))
		}
	}

	if art.Kind == model.KindHistory {
		add(CheckValidWindow,
			fmt.Sprintf("%s validity windows are well formed", in.Table.Name),
			fmt.Sprintf("SELECT *\nFROM %s\nWHERE (%s IS NOT NULL AND %s < %s)\n   OR (%s = TRUE AND %s IS NOT NULL)\n   OR (%s = FALSE AND %s IS NULL)\n",
				target,
				ValidToColumn, ValidToColumn, ValidFromColumn,
				IsCurrentColumn, ValidToColumn,
				IsCurrentColumn, ValidToColumn))
	}

	if required := requiredColumns(in, key); len(required) > 0 {
		add(CheckRequiredColumns,
			fmt.Sprintf("%s NOT NULL source columns stay populated", in.Table.Name),
			fmt.Sprintf("SELECT *\nFROM %s\nWHERE %s\n", target, nullPredicate(required)))
	}

	return out
}

// assertionKey is the declared primary key. Change-tracked kinds fall back
// to the default business key, but only when the table really has it.
func (g *Generator) assertionKey(table model.TableSchema, kind model.TableKind) []string {
	if len(table.PrimaryKeys) > 0 {
		return table.PrimaryKeys
	}
	if kind == model.KindStandard {
		return nil
	}

	key := make([]string, 0, len(DefaultBusinessKey))
	for _, k := range DefaultBusinessKey {
		col, ok := table.Column(k)
		if !ok {
			g.logger.Debug("no key checks, fallback key column missing", "table", table.Name, "column", k)
			return nil
		}
		key = append(key, col.Name)
	}
	return key
}

// requiredColumns lists the NOT NULL columns that the key checks do not
// already cover.
func requiredColumns(in Input, key []string) []string {
	var out []string
	for _, c := range in.Columns {
		if c.Nullable || containsFold(key, c.Name) {
			continue
		}
		out = append(out, c.Name)
	}
	return out
}

func (g *Generator) assertion(art model.Artifact, check, description, body string) model.Assertion {
	name := art.TableSlug + "_" + check

	var b strings.Builder
	fmt.Fprintf(&b, "-- Dataform assertion for %s: %s\n", art.TableName, check)
	b.WriteString("-- Fails when the query returns any rows.\n\n")
	b.WriteString("config {\n  ")
	b.WriteString(strings.Join([]string{
		"type: " + jsString("assertion"),
		`tags: ["validation"]`,
		"description: " + jsString(description),
	}, ",\n  "))
	b.WriteString("\n}\n\n")
	b.WriteString(body)

	return model.Assertion{
		TableName:   art.TableName,
		Name:        name,
		Check:       check,
		Description: description,
		Path:        path.Join("definitions", AssertionsDir, art.DomainSlug, name+".sqlx"),
		Content:     b.String(),
	}
}

func nullPredicate(columns []string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = c + " IS NULL"
	}
	return strings.Join(parts, "\n   OR ")
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
