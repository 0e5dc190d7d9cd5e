package typemap

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/danielzillmann-hue/transformation-agent/internal/model"
)

// ReportFileName is the name of the fallback report written per run.
const ReportFileName = "type_mapping_report.txt"

// WriteReport renders the operator-facing list of unmapped base types.
// Nothing is written when entries is empty.
func WriteReport(w io.Writer, sourceSystem string, entries []model.FallbackType) error {
	if len(entries) == 0 {
		return nil
	}

	sorted := make([]model.FallbackType, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].BaseType < sorted[j].BaseType
	})

	var b strings.Builder
	b.WriteString("Type Mapping Report\n\n")
	fmt.Fprintf(&b, "The following %s base types were encountered during translation "+
		"but did not have explicit mappings in the built-in table or the "+
		"override file. They were defaulted as shown below.\n\n", DisplayName(sourceSystem))
	for _, e := range sorted {
		target := e.TargetType
		if target == "" {
			target = DefaultTarget
		}
		fmt.Fprintf(&b, "%s -> %s\n", e.BaseType, target)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderHelperModule renders a JavaScript include that mirrors the effective
// mapping table for use inside the generated project.
func RenderHelperModule(sourceSystem string, table map[string]string) string {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	name := DisplayName(sourceSystem)
	fn := "map" + strings.ReplaceAll(name, " ", "") + "Type"

	var b strings.Builder
	fmt.Fprintf(&b, "// %s to BigQuery type mappings\n", name)
	fmt.Fprintf(&b, "function %s(sourceType) {\n", fn)
	b.WriteString("  const mappings = {\n")
	for i, k := range keys {
		sep := ","
		if i == len(keys)-1 {
			sep = ""
		}
		fmt.Fprintf(&b, "    '%s': '%s'%s\n", jsEscape(k), jsEscape(table[k]), sep)
	}
	b.WriteString("  };\n\n")
	b.WriteString("  const base = String(sourceType).toUpperCase().trim().split(/[(\\[]/)[0].trim();\n")
	fmt.Fprintf(&b, "  return mappings[base] || '%s';\n", DefaultTarget)
	b.WriteString("}\n\n")
	fmt.Fprintf(&b, "module.exports = { %s };\n", fn)
	return b.String()
}

// DisplayName capitalizes a source system name for generated headers.
func DisplayName(sourceSystem string) string {
	s := strings.TrimSpace(sourceSystem)
	if s == "" {
		return "Source"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func jsEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
