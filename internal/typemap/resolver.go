// Package typemap resolves legacy column types to warehouse types.
//
// Resolution is layered: an operator-supplied override table wins over the
// source profile's built-in table, and anything left unmapped falls back to
// DefaultTarget. Every fallback is recorded once per base type in a Ledger so
// the run can report which types still need a mapping.
package typemap

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/danielzillmann-hue/transformation-agent/internal/common"
	"github.com/danielzillmann-hue/transformation-agent/internal/model"
)

// DefaultTarget is the warehouse type used when no mapping exists.
const DefaultTarget = "STRING"

// Tier names the layer that produced a resolution.
type Tier string

// Resolution tiers, highest precedence first.
const (
	TierOverride Tier = "override"
	TierBuiltin  Tier = "builtin"
	TierFallback Tier = "fallback"
)

// Resolution is the detailed result of resolving one source type.
type Resolution struct {
	Source string
	Base   string
	Target string
	Tier   Tier
}

// BaseType normalizes a declared type: upper-cased, trimmed, and cut at the
// first "(" or "[" so that size and precision are dropped.
func BaseType(sourceType string) string {
	s := strings.ToUpper(strings.TrimSpace(sourceType))
	if i := strings.IndexAny(s, "(["); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// Resolver maps source types to target types. It is safe for concurrent use.
type Resolver struct {
	overrides map[string]string
	builtin   map[string]string
	ledger    *Ledger
	logger    *slog.Logger
}

// NewResolver creates a resolver over the given tables. Keys are normalized,
// so callers may pass them in any case. Either table may be nil.
func NewResolver(builtin, overrides map[string]string, logger *slog.Logger) *Resolver {
	return &Resolver{
		builtin:   normalizeKeys(builtin),
		overrides: normalizeKeys(overrides),
		ledger:    NewLedger(),
		logger:    common.LoggerOrDefault(logger),
	}
}

// Resolve returns the target type for a declared source type. It never fails
// and never returns an empty string.
func (r *Resolver) Resolve(sourceType string) string {
	return r.ResolveDetailed(sourceType).Target
}

// ResolveDetailed is Resolve with provenance.
func (r *Resolver) ResolveDetailed(sourceType string) Resolution {
	base := BaseType(sourceType)
	res := Resolution{Source: sourceType, Base: base}

	if base == "" {
		res.Target = DefaultTarget
		res.Tier = TierFallback
		return res
	}

	if target, ok := r.overrides[base]; ok {
		res.Target = target
		res.Tier = TierOverride
		return res
	}
	if target, ok := r.builtin[base]; ok {
		res.Target = target
		res.Tier = TierBuiltin
		return res
	}

	res.Target = DefaultTarget
	res.Tier = TierFallback
	if r.ledger.record(base, DefaultTarget) {
		r.logger.Warn("no type mapping, using default",
			"base_type", base,
			"source_type", sourceType,
			"default", DefaultTarget)
	}
	return res
}

// Ledger returns the run's fallback ledger.
func (r *Resolver) Ledger() *Ledger {
	return r.ledger
}

// Table returns the effective mapping table: built-in entries with overrides
// applied on top.
func (r *Resolver) Table() map[string]string {
	out := make(map[string]string, len(r.builtin)+len(r.overrides))
	for k, v := range r.builtin {
		out[k] = v
	}
	for k, v := range r.overrides {
		out[k] = v
	}
	return out
}

// OverrideCount reports how many override entries are active.
func (r *Resolver) OverrideCount() int {
	return len(r.overrides)
}

func normalizeKeys(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		key := BaseType(k)
		v = strings.TrimSpace(v)
		if key == "" || v == "" {
			continue
		}
		out[key] = v
	}
	return out
}

// Ledger records base types that fell back to the default, once each.
type Ledger struct {
	entries map[string]*model.FallbackType
	mu      sync.Mutex
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]*model.FallbackType)}
}

// record notes a fallback and reports whether this is the first time the base
// type was seen.
func (l *Ledger) record(base, target string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[base]; ok {
		e.Occurrences++
		return false
	}
	l.entries[base] = &model.FallbackType{BaseType: base, TargetType: target, Occurrences: 1}
	return true
}

// Entries returns the recorded fallbacks sorted by base type.
func (l *Ledger) Entries() []model.FallbackType {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]model.FallbackType, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BaseType < out[j].BaseType
	})
	return out
}

// Len returns the number of distinct base types recorded.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Count returns how many times base fell back, or zero if it never did.
func (l *Ledger) Count(base string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[BaseType(base)]; ok {
		return e.Occurrences
	}
	return 0
}
