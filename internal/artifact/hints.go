package artifact

import (
	"strings"

	"github.com/danielzillmann-hue/transformation-agent/internal/model"
	"github.com/danielzillmann-hue/transformation-agent/internal/typemap"
)

// MaxClusterColumns is the warehouse limit on clustering keys.
const MaxClusterColumns = 4

var (
	partitionNameTokens = []string{"date", "dt", "time", "dttm"}
	clusterNameTokens   = []string{"id", "code", "type", "status", "site"}
	modifiedNameTokens  = []string{"updated", "update_", "modified", "modif", "last_upd", "changed"}
)

// ResolvedColumn is a source column with its warehouse type.
type ResolvedColumn struct {
	Name       string
	SourceType string
	TargetType string
	Nullable   bool
}

// ResolveColumns maps every column of table through the resolver.
func ResolveColumns(r *typemap.Resolver, table model.TableSchema) []ResolvedColumn {
	out := make([]ResolvedColumn, 0, len(table.Columns))
	for _, c := range table.Columns {
		out = append(out, ResolvedColumn{
			Name:       c.Name,
			SourceType: c.SourceType,
			TargetType: r.Resolve(c.SourceType),
			Nullable:   c.Nullable,
		})
	}
	return out
}

// PartitionHint names the partition column and the expression to partition by.
type PartitionHint struct {
	Column string
	Expr   string
}

// SuggestPartition picks the first date or timestamp column whose name looks
// like a date. Timestamp columns are partitioned by their calendar date.
func SuggestPartition(cols []ResolvedColumn) *PartitionHint {
	for _, c := range cols {
		family := typemap.BaseType(c.TargetType)
		if family != "DATE" && family != "DATETIME" && family != "TIMESTAMP" {
			continue
		}
		if !containsAny(strings.ToLower(c.Name), partitionNameTokens) {
			continue
		}

		expr := c.Name
		if family != "DATE" {
			expr = "DATE(" + c.Name + ")"
		}
		return &PartitionHint{Column: c.Name, Expr: expr}
	}
	return nil
}

// SuggestCluster returns the leading primary keys, or failing that up to
// four columns with identifier or category names.
func SuggestCluster(cols []ResolvedColumn, primaryKeys []string) []string {
	if len(primaryKeys) > 0 {
		n := min(len(primaryKeys), MaxClusterColumns)
		return append([]string(nil), primaryKeys[:n]...)
	}

	var out []string
	for _, c := range cols {
		if containsAny(strings.ToLower(c.Name), clusterNameTokens) {
			out = append(out, c.Name)
			if len(out) == MaxClusterColumns {
				break
			}
		}
	}
	return out
}

// modifiedColumn finds the column recording when a source row last changed.
func modifiedColumn(cols []ResolvedColumn) string {
	for _, c := range cols {
		family := typemap.BaseType(c.TargetType)
		if family != "DATE" && family != "DATETIME" && family != "TIMESTAMP" {
			continue
		}
		if containsAny(strings.ToLower(c.Name), modifiedNameTokens) {
			return c.Name
		}
	}
	return ""
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
