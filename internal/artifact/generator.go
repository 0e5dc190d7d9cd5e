// Package artifact renders warehouse schema-as-code definitions for
// classified tables.
package artifact

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"github.com/danielzillmann-hue/transformation-agent/internal/common"
	"github.com/danielzillmann-hue/transformation-agent/internal/config"
	"github.com/danielzillmann-hue/transformation-agent/internal/model"
	"github.com/danielzillmann-hue/transformation-agent/internal/typemap"
)

// ErrNoColumns is returned for a table with nothing to project.
var ErrNoColumns = errors.New("table has no columns")

// DatasetMapper maps a business domain to a warehouse dataset.
type DatasetMapper interface {
	DatasetFor(domain string) string
}

// Options configures a Generator.
type Options struct {
	Datasets     DatasetMapper
	Logger       *slog.Logger
	SourceSystem string
	// StagingPrefix is prepended to the table slug to name the staging source.
	StagingPrefix string
	// MetadataColumns are source columns excluded from change detection.
	MetadataColumns []string
	// CompareColumns caps the change-detection column count. Zero compares all.
	CompareColumns int
}

// Input is one classified table ready for rendering.
type Input struct {
	Partition *PartitionHint
	Table     model.TableSchema
	Decision  model.ClassificationDecision
	Domain    string
	Columns   []ResolvedColumn
	Cluster   []string
}

// NewInput resolves the table's columns and computes both layout hints.
func NewInput(r *typemap.Resolver, table model.TableSchema, decision model.ClassificationDecision, domain string) Input {
	cols := ResolveColumns(r, table)
	return Input{
		Table:     table,
		Columns:   cols,
		Decision:  decision,
		Domain:    domain,
		Partition: SuggestPartition(cols),
		Cluster:   SuggestCluster(cols, table.PrimaryKeys),
	}
}

// Generator renders one definition per table.
type Generator struct {
	datasets      DatasetMapper
	logger        *slog.Logger
	metadata      map[string]bool
	sourceSystem  string
	stagingPrefix string
	compareLimit  int
}

// NewGenerator creates a Generator.
func NewGenerator(opts Options) *Generator {
	metadata := map[string]bool{
		ValidFromColumn: true,
		ValidToColumn:   true,
		IsCurrentColumn: true,
	}
	for _, c := range opts.MetadataColumns {
		metadata[strings.ToLower(c)] = true
	}

	return &Generator{
		datasets:      opts.Datasets,
		logger:        common.LoggerOrDefault(opts.Logger),
		metadata:      metadata,
		sourceSystem:  opts.SourceSystem,
		stagingPrefix: opts.StagingPrefix,
		compareLimit:  opts.CompareColumns,
	}
}

// Generate renders the definition selected by in.Decision.Kind.
func (g *Generator) Generate(in Input) (model.Artifact, error) {
	if strings.TrimSpace(in.Table.Name) == "" {
		return model.Artifact{}, common.ErrMissingTableName
	}
	if len(in.Columns) == 0 {
		return model.Artifact{}, fmt.Errorf("%s: %w", in.Table.Name, ErrNoColumns)
	}

	tmpl := templateFor(in.Decision.Kind)
	dataset := g.datasetFor(in.Domain)
	tableSlug := TableSlug(in.Table.Name)

	r := &render{
		in:     in,
		source: fmt.Sprintf(`${ref(%s)}`, jsString(g.stagingPrefix+tableSlug)),
	}
	if tmpl.Kind() != model.KindStandard {
		r.businessKey = g.businessKey(in.Table)
	}
	if tmpl.Kind() == model.KindHistory {
		r.compareColumns = g.compareColumns(in.Columns, r.businessKey)
	}
	if tmpl.Kind() == model.KindIncremental {
		r.modified = modifiedColumn(in.Columns)
	}

	var b strings.Builder
	g.writeHeader(&b, in, dataset)
	g.writeConfig(&b, tmpl, r, in, dataset)
	b.WriteString(tmpl.body(r))

	domainSlug := Slugify(in.Domain)
	return model.Artifact{
		TableName:  in.Table.Name,
		DomainSlug: domainSlug,
		TableSlug:  tableSlug,
		Dataset:    dataset,
		Kind:       tmpl.Kind(),
		Path:       path.Join("definitions", domainSlug, tableSlug+".sqlx"),
		Content:    b.String(),
	}, nil
}

func (g *Generator) datasetFor(domain string) string {
	if g.datasets == nil {
		return config.FallbackDataset
	}
	return g.datasets.DatasetFor(domain)
}

func (g *Generator) writeHeader(b *strings.Builder, in Input, dataset string) {
	fmt.Fprintf(b, "-- Dataform table definition for %s\n", in.Table.Name)
	fmt.Fprintf(b, "-- Source: %s\n", typemap.DisplayName(g.sourceSystem))
	fmt.Fprintf(b, "-- Domain: %s\n", in.Domain)
	fmt.Fprintf(b, "-- Dataset: %s\n", dataset)
	fmt.Fprintf(b, "-- Load: %s (%s, %s confidence)\n\n", in.Decision.Kind, in.Decision.Source, in.Decision.Confidence)
}

func (g *Generator) writeConfig(b *strings.Builder, tmpl Template, r *render, in Input, dataset string) {
	entries := []string{
		"type: " + jsString(tmpl.configType()),
		"schema: " + jsString(dataset),
	}
	entries = append(entries, tmpl.extraConfig(r)...)
	entries = append(entries, "description: "+jsString(fmt.Sprintf("Migrated from %s - %s", typemap.DisplayName(g.sourceSystem), in.Domain)))

	var bq []string
	if in.Partition != nil {
		bq = append(bq, "partitionBy: "+jsString(in.Partition.Expr))
	}
	if len(in.Cluster) > 0 {
		bq = append(bq, "clusterBy: "+quoteList(in.Cluster))
	}
	if len(bq) > 0 {
		entries = append(entries, "bigquery: {\n    "+strings.Join(bq, ",\n    ")+"\n  }")
	}

	b.WriteString("config {\n  ")
	b.WriteString(strings.Join(entries, ",\n  "))
	b.WriteString("\n}\n\n")
}

// businessKey is the primary key, or the documented fallback when none is
// declared.
func (g *Generator) businessKey(table model.TableSchema) []string {
	if len(table.PrimaryKeys) > 0 {
		return table.PrimaryKeys
	}
	g.logger.Warn("no primary key declared, using fallback business key",
		"table", table.Name,
		"key", DefaultBusinessKey)
	return DefaultBusinessKey
}

// compareColumns lists the columns whose change opens a new version: every
// non-key, non-metadata column, capped by the configured limit.
func (g *Generator) compareColumns(cols []ResolvedColumn, key []string) []string {
	isKey := make(map[string]bool, len(key))
	for _, k := range key {
		isKey[strings.ToLower(k)] = true
	}

	var out []string
	for _, c := range cols {
		name := strings.ToLower(c.Name)
		if isKey[name] || g.metadata[name] {
			continue
		}
		out = append(out, c.Name)
		if g.compareLimit > 0 && len(out) == g.compareLimit {
			break
		}
	}
	return out
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	return strconv.Quote(s)
}
