package llm

import (
	"fmt"
	"strings"

	"github.com/danielzillmann-hue/transformation-agent/internal/model"
)

// maxPromptColumns caps how many columns are shown to the model.
const maxPromptColumns = 20

const tableClassifierSystemPrompt = "You are a data warehouse architect classifying legacy tables by load semantics. " +
	"Respond only with a JSON object."

const mappingWriterSystemPrompt = "You are a data engineer converting Informatica mappings to BigQuery SQL for Dataform. " +
	"Respond only with a JSON object."

// maxPromptSources caps how many mapping sources are listed.
const maxPromptSources = 5

// BuildTablePrompt renders the classification request for one table: its
// name, domain, up to twenty "name: type" column lines and primary keys.
func BuildTablePrompt(req model.SemanticRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Table: %s\n", req.TableName)
	fmt.Fprintf(&b, "Business domain: %s\n", req.Domain)

	b.WriteString("Columns:\n")
	cols := req.Columns
	if len(cols) > maxPromptColumns {
		cols = cols[:maxPromptColumns]
	}
	for _, c := range cols {
		fmt.Fprintf(&b, "  %s: %s\n", c.Name, c.SourceType)
	}
	if extra := len(req.Columns) - len(cols); extra > 0 {
		fmt.Fprintf(&b, "  ... and %d more columns\n", extra)
	}

	keys := "Not specified"
	if len(req.PrimaryKeys) > 0 {
		keys = strings.Join(req.PrimaryKeys, ", ")
	}
	fmt.Fprintf(&b, "Primary keys: %s\n\n", keys)

	b.WriteString(`Classify how this table should be loaded into the warehouse:
- "standard": reference or master data that is fully replaced on each load
- "history": dimension whose attribute changes must be tracked over time with validity windows
- "incremental": append-heavy event or transaction data merged by key

Respond with JSON:
{"table_type": "standard|history|incremental", "confidence": "high|medium|low", "reasoning": "one sentence"}`)

	return b.String()
}

// BuildMappingPrompt renders the conversion request for one ETL mapping.
// Sources beyond the first five are summarized.
func BuildMappingPrompt(req model.MappingRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Mapping: %s\n", req.MappingName)
	fmt.Fprintf(&b, "Targets: %s\n", listOrNone(req.Targets))
	fmt.Fprintf(&b, "Transformations: %s\n", listOrNone(req.Transformations))
	if summary := strings.TrimSpace(req.LogicSummary); summary != "" {
		fmt.Fprintf(&b, "Logic: %s\n", summary)
	}

	b.WriteString("Sources (use exactly these references):\n")
	refs := req.SourceRefs
	if len(refs) > maxPromptSources {
		refs = refs[:maxPromptSources]
	}
	for i, ref := range refs {
		name := ref
		if i < len(req.Sources) {
			name = req.Sources[i]
		}
		fmt.Fprintf(&b, "  %s -> %s\n", name, ref)
	}
	if extra := len(req.SourceRefs) - len(refs); extra > 0 {
		fmt.Fprintf(&b, "  ... and %d more sources\n", extra)
	}

	b.WriteString(`
Write one BigQuery SELECT statement (CTEs allowed) that reproduces the mapping's
joins, filters, lookups, aggregations and expressions. Read only from the
references above. Do not write DDL or DML.

Respond with JSON:
{"sql": "SELECT ..."}`)

	return b.String()
}

func listOrNone(values []string) string {
	if len(values) == 0 {
		return "None"
	}
	return strings.Join(values, ", ")
}
