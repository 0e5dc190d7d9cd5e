package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/danielzillmann-hue/transformation-agent/internal/model"
	"github.com/danielzillmann-hue/transformation-agent/internal/pipeline"
)

// maxListed caps the skipped and failed lists in the summary.
const maxListed = 10

// RenderRunSummary renders the end-of-run report.
func RenderRunSummary(result *pipeline.Result) string {
	var b strings.Builder

	kinds := make(map[model.TableKind]int)
	for _, a := range result.Artifacts {
		kinds[a.Kind]++
	}

	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Run:"), result.RunID)
	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Output:"), result.ProjectPath)
	fmt.Fprintf(&b, "%s %s\n\n", BoldStyle.Render("Duration:"),
		result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond).String())

	b.WriteString(RenderTable(
		[]string{"Load", "Tables"},
		[][]string{
			{string(model.KindStandard), strconv.Itoa(kinds[model.KindStandard])},
			{string(model.KindHistory), strconv.Itoa(kinds[model.KindHistory])},
			{string(model.KindIncremental), strconv.Itoa(kinds[model.KindIncremental])},
		},
	))
	b.WriteString("\n\n")
	b.WriteString(RenderDecisionSources(result.Stats))

	if len(result.Assertions) > 0 {
		b.WriteString("\n" + SubtleStyle.Render(fmt.Sprintf("%d assertions generated", len(result.Assertions))))
	}
	if len(result.Mappings) > 0 {
		written := 0
		for _, m := range result.Mappings {
			if m.ModelWritten {
				written++
			}
		}
		b.WriteString("\n" + SubtleStyle.Render(fmt.Sprintf("%d ETL mappings converted (%d model-written, %d scaffolds)",
			len(result.Mappings), written, len(result.Mappings)-written)))
	}
	if len(result.SharedObjects) > 0 {
		b.WriteString("\n" + SubtleStyle.Render(fmt.Sprintf("%d shared ETL objects documented", len(result.SharedObjects))))
	}
	if result.NonTable > 0 {
		b.WriteString("\n" + SubtleStyle.Render(fmt.Sprintf("%d procedure records carried no table", result.NonTable)))
	}
	if len(result.Fallbacks) > 0 {
		names := make([]string, len(result.Fallbacks))
		for i, f := range result.Fallbacks {
			names[i] = f.BaseType
		}
		b.WriteString("\n" + FormatWarning(fmt.Sprintf("%d unmapped types defaulted: %s", len(names), strings.Join(names, ", "))))
	}
	if len(result.Skipped) > 0 {
		b.WriteString("\n" + FormatWarning(fmt.Sprintf("%d records skipped", len(result.Skipped))))
		for i, s := range result.Skipped {
			if i == maxListed {
				b.WriteString("\n  " + SubtleStyle.Render(fmt.Sprintf("... and %d more", len(result.Skipped)-maxListed)))
				break
			}
			b.WriteString("\n  " + SubtleStyle.Render(s.FileName+": "+s.Reason))
		}
	}
	if len(result.Failed) > 0 {
		b.WriteString("\n" + FormatError(fmt.Sprintf("%d tables failed to render", len(result.Failed))))
		for i, f := range result.Failed {
			if i == maxListed {
				b.WriteString("\n  " + SubtleStyle.Render(fmt.Sprintf("... and %d more", len(result.Failed)-maxListed)))
				break
			}
			b.WriteString("\n  " + SubtleStyle.Render(f.TableName+": "+f.Error))
		}
	}

	title := fmt.Sprintf("%s %d definitions generated", ChartIcon, len(result.Artifacts))
	return RenderBox(title, strings.TrimRight(b.String(), "\n"))
}

// RenderDecisionSources tabulates how many decisions each rule source made.
func RenderDecisionSources(stats map[model.DecisionSource]int) string {
	sources := make([]string, 0, len(stats))
	for s := range stats {
		sources = append(sources, string(s))
	}
	sort.Strings(sources)

	rows := make([][]string, len(sources))
	for i, s := range sources {
		rows[i] = []string{s, strconv.Itoa(stats[model.DecisionSource(s)])}
	}
	return RenderTable([]string{"Decided by", "Tables"}, rows)
}

// RenderRuns lists recorded runs, newest first.
func RenderRuns(runs []model.Run) string {
	if len(runs) == 0 {
		return FormatInfo("No runs recorded yet")
	}

	rows := make([][]string, len(runs))
	for i, r := range runs {
		status := string(r.Status)
		switch r.Status {
		case model.RunStatusCompleted:
			status = SuccessStyle.Render(status)
		case model.RunStatusFailed:
			status = ErrorStyle.Render(status)
		case model.RunStatusRunning:
			status = WarningStyle.Render(status)
		}
		rows[i] = []string{
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.SourceSystem,
			status,
			strconv.Itoa(r.TablesGenerated),
			strconv.Itoa(r.TablesSkipped),
		}
	}
	return RenderTable([]string{"Run", "Started", "Source", "Status", "Generated", "Skipped"}, rows)
}
