package classification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/danielzillmann-hue/transformation-agent/internal/model"
)

// Rule names, in evaluation order.
const (
	RuleReferenceList      = "reference_list"
	RuleHistoryList        = "history_list"
	RuleIncrementalPattern = "incremental_pattern"
	RuleSemantic           = "semantic"
	RuleDefault            = "default"
)

// SemanticClassifier proposes a load kind from a table's shape and domain.
type SemanticClassifier interface {
	ClassifyTable(ctx context.Context, req model.SemanticRequest) (model.SemanticVerdict, error)
}

// Rule maps a table to a decision. ok is false when the rule does not apply.
type Rule struct {
	Match func(ctx context.Context, table model.TableSchema, domain string) (model.ClassificationDecision, bool)
	Name  string
}

// nameSet is a case-insensitive set of table names.
type nameSet map[string]struct{}

func newNameSet(lists ...[]string) nameSet {
	s := make(nameSet)
	for _, list := range lists {
		for _, name := range list {
			if name = strings.TrimSpace(name); name != "" {
				s[strings.ToLower(name)] = struct{}{}
			}
		}
	}
	return s
}

func (s nameSet) contains(name string) bool {
	_, ok := s[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

func listRule(name string, set nameSet, kind model.TableKind, reason string) Rule {
	return Rule{
		Name: name,
		Match: func(_ context.Context, table model.TableSchema, _ string) (model.ClassificationDecision, bool) {
			if !set.contains(table.Name) {
				return model.ClassificationDecision{}, false
			}
			return model.ClassificationDecision{
				TableName:  table.Name,
				Kind:       kind,
				Confidence: model.ConfidenceHigh,
				Reasoning:  reason,
				Source:     model.SourceExplicitList,
			}, true
		},
	}
}

func patternRule(detector *PatternDetector) Rule {
	return Rule{
		Name: RuleIncrementalPattern,
		Match: func(_ context.Context, table model.TableSchema, _ string) (model.ClassificationDecision, bool) {
			match, err := detector.Detect(table.Name)
			if err != nil || match == nil {
				return model.ClassificationDecision{}, false
			}
			return model.ClassificationDecision{
				TableName:  table.Name,
				Kind:       match.Kind,
				Confidence: model.ConfidenceHigh,
				Reasoning:  fmt.Sprintf("table name matches pattern %q", match.PatternName),
				Source:     model.SourcePattern,
			}, true
		},
	}
}

func semanticRule(classifier SemanticClassifier, logger *slog.Logger) Rule {
	return Rule{
		Name: RuleSemantic,
		Match: func(ctx context.Context, table model.TableSchema, domain string) (model.ClassificationDecision, bool) {
			if len(table.Columns) == 0 || strings.TrimSpace(domain) == "" {
				return model.ClassificationDecision{}, false
			}

			verdict, err := classifier.ClassifyTable(ctx, model.SemanticRequest{
				TableName:   table.Name,
				Domain:      domain,
				Columns:     table.Columns,
				PrimaryKeys: table.PrimaryKeys,
			})
			if err != nil {
				logger.Warn("semantic classification failed, falling through",
					"table", table.Name,
					"error", err)
				return model.ClassificationDecision{}, false
			}

			return gate(table.Name, verdict), true
		},
	}
}

// gate accepts a history verdict only at high confidence. Anything less
// becomes standard.
func gate(table string, v model.SemanticVerdict) model.ClassificationDecision {
	d := model.ClassificationDecision{
		TableName:  table,
		Kind:       v.Kind,
		Confidence: v.Confidence,
		Reasoning:  v.Reasoning,
		Source:     model.SourceModel,
	}
	if v.Kind == model.KindHistory && v.Confidence != model.ConfidenceHigh {
		d.Kind = model.KindStandard
	}
	return d
}

func defaultRule() Rule {
	return Rule{
		Name: RuleDefault,
		Match: func(_ context.Context, table model.TableSchema, _ string) (model.ClassificationDecision, bool) {
			return model.ClassificationDecision{
				TableName:  table.Name,
				Kind:       model.KindStandard,
				Confidence: model.ConfidenceHigh,
				Reasoning:  "no rule matched",
				Source:     model.SourceDefault,
			}, true
		},
	}
}
