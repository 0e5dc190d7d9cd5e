package classification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danielzillmann-hue/transformation-agent/internal/common"
	"github.com/danielzillmann-hue/transformation-agent/internal/config"
	"github.com/danielzillmann-hue/transformation-agent/internal/model"
	"golang.org/x/sync/singleflight"
)

// Options configures an Engine.
type Options struct {
	// Classifier enables the semantic rule when non-nil.
	Classifier          SemanticClassifier
	Logger              *slog.Logger
	ReferenceTables     []string
	HistoryTables       []string
	IncrementalPatterns []string
}

// OptionsFromProfile merges the profile's static lists with the run
// configuration's additions.
func OptionsFromProfile(p *config.Profile, cc config.ClassificationConfig) Options {
	return Options{
		ReferenceTables:     append(append([]string{}, p.SCDDetection.Type1Tables...), cc.ReferenceTables...),
		HistoryTables:       append(append([]string{}, p.SCDDetection.Type2Tables...), cc.HistoryTables...),
		IncrementalPatterns: append(append([]string{}, p.IncrementalPatterns...), cc.IncrementalPatterns...),
	}
}

// Engine classifies tables through an ordered rule chain and remembers
// every decision for the rest of the run.
type Engine struct {
	logger *slog.Logger
	cache  *decisionCache
	group  singleflight.Group
	rules  []Rule
}

// NewEngine builds the rule chain. An invalid incremental pattern is a
// configuration error.
func NewEngine(opts Options) (*Engine, error) {
	logger := common.LoggerOrDefault(opts.Logger)

	patterns := DefaultIncrementalPatterns()
	if len(opts.IncrementalPatterns) > 0 {
		patterns = IncrementalPatterns(opts.IncrementalPatterns)
	}
	detector, err := NewPatternDetector(patterns)
	if err != nil {
		return nil, &common.ConfigError{Err: common.ErrInvalidConfig, Field: fmt.Sprintf("incremental_patterns: %v", err)}
	}

	rules := []Rule{
		listRule(RuleReferenceList, newNameSet(opts.ReferenceTables), model.KindStandard, "table is listed as reference data"),
		listRule(RuleHistoryList, newNameSet(opts.HistoryTables), model.KindHistory, "table is listed as change-tracked"),
		patternRule(detector),
	}
	if opts.Classifier != nil {
		rules = append(rules, semanticRule(opts.Classifier, logger))
	}
	rules = append(rules, defaultRule())

	return &Engine{
		logger: logger,
		cache:  newDecisionCache(),
		rules:  rules,
	}, nil
}

// Classify returns the decision for table. Repeat calls for the same table
// name, in any case, return the cached decision; concurrent first calls
// share one evaluation.
func (e *Engine) Classify(ctx context.Context, table model.TableSchema, domain string) model.ClassificationDecision {
	if d, ok := e.cache.get(table.Name); ok {
		return d
	}

	v, _, _ := e.group.Do(cacheKey(table.Name), func() (any, error) {
		if d, ok := e.cache.get(table.Name); ok {
			return d, nil
		}

		d := e.evaluate(ctx, table, domain)
		if ctx.Err() != nil {
			// A canceled run must not pin a degraded decision.
			return d, nil
		}
		return e.cache.setOnce(d), nil
	})

	return v.(model.ClassificationDecision)
}

func (e *Engine) evaluate(ctx context.Context, table model.TableSchema, domain string) model.ClassificationDecision {
	for _, rule := range e.rules {
		if d, ok := rule.Match(ctx, table, domain); ok {
			e.logger.Debug("table classified",
				"table", table.Name,
				"rule", rule.Name,
				"kind", d.Kind,
				"confidence", d.Confidence)
			return d
		}
	}
	// Unreachable while the default rule closes the chain.
	return model.ClassificationDecision{TableName: table.Name, Kind: model.KindStandard, Confidence: model.ConfidenceHigh, Source: model.SourceDefault}
}

// Rules lists rule names in evaluation order.
func (e *Engine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name
	}
	return names
}

// Stats counts cached decisions by source.
func (e *Engine) Stats() map[model.DecisionSource]int {
	return e.cache.stats()
}

// Decisions returns every cached decision sorted by table name.
func (e *Engine) Decisions() []model.ClassificationDecision {
	return e.cache.snapshot()
}

// Len returns the number of classified tables.
func (e *Engine) Len() int {
	return e.cache.size()
}
