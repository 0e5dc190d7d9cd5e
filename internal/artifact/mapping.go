package artifact

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/danielzillmann-hue/transformation-agent/internal/model"
)

// MappingsDir holds the views converted from ETL mappings below definitions/.
const MappingsDir = "intermediate"

// ErrNoSources is returned for a mapping that reads nothing and has no
// model-written SQL to stand in for the scaffold.
var ErrNoSources = errors.New("mapping has no sources")

// sharedObjectMarkers appear in the names analyzers give to exports that
// hold no runnable mapping.
var sharedObjectMarkers = []string{"not found", "shared object", "reusable", "folder", "n/a", "this xml"}

// IsSharedObject reports whether an ETL export holds reusable objects rather
// than a mapping: its name says so, or it neither reads nor writes anything.
func IsSharedObject(m model.MappingAnalysis) bool {
	if len(m.Sources) == 0 && len(m.Targets) == 0 {
		return true
	}
	return containsAny(strings.ToLower(m.MappingName), sharedObjectMarkers)
}

// MappingInput is one ETL mapping ready for rendering.
type MappingInput struct {
	Mapping  model.MappingAnalysis
	FileName string
	// Domain is the primary domain of the mapping's first target.
	Domain string
	// SQL is a model-written SELECT; empty renders a scaffold over the sources.
	SQL string
}

// SourceRefs returns one Dataform reference per mapping source, pointing at
// the staging table the source lands in.
func (g *Generator) SourceRefs(m model.MappingAnalysis) []string {
	refs := make([]string, len(m.Sources))
	for i, src := range m.Sources {
		refs[i] = fmt.Sprintf(`${ref(%s)}`, jsString(g.stagingPrefix+TableSlug(src)))
	}
	return refs
}

// GenerateMapping renders the view for one mapping.
func (g *Generator) GenerateMapping(in MappingInput) (model.MappingArtifact, error) {
	name := in.Mapping.NameOr(in.FileName)
	if in.SQL == "" && len(in.Mapping.Sources) == 0 {
		return model.MappingArtifact{}, fmt.Errorf("%s: %w", name, ErrNoSources)
	}

	dataset := g.datasetFor(in.Domain)
	slug := TableSlug(name)

	var b strings.Builder
	fmt.Fprintf(&b, "-- Dataform view converted from ETL mapping %s\n", name)
	if in.FileName != "" {
		fmt.Fprintf(&b, "-- File: %s\n", in.FileName)
	}
	fmt.Fprintf(&b, "-- Targets: %s\n", joinOrNone(in.Mapping.Targets))
	fmt.Fprintf(&b, "-- Transformations: %s\n", joinOrNone(in.Mapping.Transformations))
	if summary := strings.TrimSpace(in.Mapping.LogicSummary); summary != "" {
		for _, line := range strings.Split(summary, "\n") {
			fmt.Fprintf(&b, "-- %s\n", strings.TrimSpace(line))
		}
	}
	b.WriteString("\n")

	b.WriteString("config {\n  ")
	b.WriteString(strings.Join([]string{
		"type: " + jsString("view"),
		"schema: " + jsString(dataset),
		`tags: ["etl_mapping"]`,
		"description: " + jsString("Migrated from ETL mapping "+name),
	}, ",\n  "))
	b.WriteString("\n}\n\n")

	if in.SQL != "" {
		b.WriteString(strings.TrimSpace(in.SQL))
		b.WriteString("\n")
	} else {
		b.WriteString(g.mappingScaffold(in.Mapping))
	}

	return model.MappingArtifact{
		MappingName:  name,
		FileName:     in.FileName,
		Dataset:      dataset,
		Path:         path.Join("definitions", MappingsDir, slug+".sqlx"),
		Sources:      nonNilNames(in.Mapping.Sources),
		Targets:      nonNilNames(in.Mapping.Targets),
		ModelWritten: in.SQL != "",
		Content:      b.String(),
	}, nil
}

// mappingScaffold reads every source into its own CTE and selects from the
// first. The joins between sources are left to the reviewer.
func (g *Generator) mappingScaffold(m model.MappingAnalysis) string {
	refs := g.SourceRefs(m)
	ctes := make([]string, len(refs))
	names := make([]string, len(refs))
	for i, ref := range refs {
		names[i] = "src_" + TableSlug(m.Sources[i])
		ctes[i] = fmt.Sprintf("%s AS (\n  SELECT * FROM %s\n)", names[i], ref)
	}

	var b strings.Builder
	b.WriteString("WITH ")
	b.WriteString(strings.Join(ctes, ",\n\n"))
	b.WriteString("\n\n")
	if len(names) > 1 {
		fmt.Fprintf(&b, "-- Join %s as the mapping logic describes.\n", strings.Join(names[1:], ", "))
	}
	fmt.Fprintf(&b, "SELECT *\nFROM %s\n", names[0])
	return b.String()
}

// RenderSharedObjects documents the exports that were not converted.
func RenderSharedObjects(objects []model.SharedObject) string {
	var b strings.Builder
	b.WriteString("# Shared ETL objects\n\n")
	b.WriteString("These exports hold reusable objects rather than runnable mappings.\n")
	b.WriteString("No views were generated for them.\n")

	for _, obj := range objects {
		fmt.Fprintf(&b, "\n## %s\n\n", obj.Name)
		fmt.Fprintf(&b, "- File: `%s`\n", obj.FileName)
		if summary := strings.TrimSpace(obj.LogicSummary); summary != "" {
			fmt.Fprintf(&b, "- Summary: %s\n", strings.Join(strings.Fields(summary), " "))
		}
	}
	return b.String()
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}

func nonNilNames(values model.NameList) []string {
	if values == nil {
		return []string{}
	}
	return []string(values)
}
