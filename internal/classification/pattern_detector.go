// Package classification decides the load semantics of each migrated table.
package classification

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/danielzillmann-hue/transformation-agent/internal/model"
)

// Pattern is a table-name heuristic that implies a load kind.
type Pattern struct {
	Name     string
	Kind     model.TableKind
	Regex    string
	Priority int // Higher priority patterns are checked first
}

// CompiledPattern holds a compiled regex pattern with metadata.
type CompiledPattern struct {
	compiledRegex *regexp.Regexp
	Pattern
}

// PatternDetector matches table names against an ordered set of patterns.
// It is immutable after construction and safe for concurrent use.
type PatternDetector struct {
	patterns []CompiledPattern
}

// NewPatternDetector creates a new pattern detector with the given patterns.
func NewPatternDetector(patterns []Pattern) (*PatternDetector, error) {
	compiled, err := compilePatterns(patterns)
	if err != nil {
		return nil, err
	}
	return &PatternDetector{patterns: compiled}, nil
}

// Match represents a pattern match result.
type Match struct {
	PatternName string
	Kind        model.TableKind
}

// Detect matches the lower-cased table name against each pattern in
// priority order.
func (pd *PatternDetector) Detect(tableName string) (*Match, error) {
	name := strings.ToLower(strings.TrimSpace(tableName))
	if name == "" {
		return nil, nil //nolint:nilnil // No match is a valid result
	}

	for _, pattern := range pd.patterns {
		if pattern.compiledRegex.MatchString(name) {
			return &Match{
				PatternName: pattern.Name,
				Kind:        pattern.Kind,
			}, nil
		}
	}

	return nil, nil //nolint:nilnil // No match is a valid result
}

// PatternCount returns the number of loaded patterns.
func (pd *PatternDetector) PatternCount() int {
	return len(pd.patterns)
}

func compilePatterns(patterns []Pattern) ([]CompiledPattern, error) {
	compiled := make([]CompiledPattern, 0, len(patterns))

	for _, p := range patterns {
		regexStr := p.Regex
		if !strings.HasPrefix(regexStr, "(?i)") {
			regexStr = "(?i)" + regexStr // Make case-insensitive by default
		}

		regex, err := regexp.Compile(regexStr)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern %s: %w", p.Name, err)
		}

		compiled = append(compiled, CompiledPattern{
			Pattern:       p,
			compiledRegex: regex,
		})
	}

	// Stable, so equal priorities keep configuration order.
	slices.SortStableFunc(compiled, func(a, b CompiledPattern) int {
		return b.Priority - a.Priority
	})

	return compiled, nil
}
