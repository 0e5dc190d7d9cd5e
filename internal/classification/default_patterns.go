package classification

import "github.com/danielzillmann-hue/transformation-agent/internal/model"

// DefaultIncrementalPatterns returns the name heuristics used when neither
// the profile nor the run configuration lists any.
func DefaultIncrementalPatterns() []Pattern {
	return []Pattern{
		// Fact tables
		{Name: "fact prefix", Kind: model.KindIncremental, Regex: `^f_`, Priority: 100},
		{Name: "fact long prefix", Kind: model.KindIncremental, Regex: `^fact_`, Priority: 100},

		// Event and log tables
		{Name: "log suffix", Kind: model.KindIncremental, Regex: `_log$`, Priority: 90},
		{Name: "transaction suffix", Kind: model.KindIncremental, Regex: `_txn$`, Priority: 90},
		{Name: "transactions suffix", Kind: model.KindIncremental, Regex: `_transactions?$`, Priority: 90},
		{Name: "audit suffix", Kind: model.KindIncremental, Regex: `_audit$`, Priority: 80},
	}
}

// IncrementalPatterns turns configured regular expressions into patterns,
// keeping their order as priority.
func IncrementalPatterns(exprs []string) []Pattern {
	patterns := make([]Pattern, 0, len(exprs))
	for i, expr := range exprs {
		patterns = append(patterns, Pattern{
			Name:     expr,
			Kind:     model.KindIncremental,
			Regex:    expr,
			Priority: len(exprs) - i,
		})
	}
	return patterns
}
