package classification

import (
	"sort"
	"strings"
	"sync"

	"github.com/danielzillmann-hue/transformation-agent/internal/model"
)

// decisionCache holds one decision per table for the lifetime of a run,
// keyed by lower-cased table name. The first stored decision wins.
type decisionCache struct {
	entries map[string]model.ClassificationDecision
	counts  map[model.DecisionSource]int
	mu      sync.RWMutex
}

func newDecisionCache() *decisionCache {
	return &decisionCache{
		entries: make(map[string]model.ClassificationDecision),
		counts:  make(map[model.DecisionSource]int),
	}
}

// get retrieves a decision if the table was already classified.
func (c *decisionCache) get(table string) (model.ClassificationDecision, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.entries[cacheKey(table)]
	return d, ok
}

// setOnce stores d unless a decision already exists, and returns whichever
// decision is now cached.
func (c *decisionCache) setOnce(d model.ClassificationDecision) model.ClassificationDecision {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(d.TableName)
	if existing, ok := c.entries[key]; ok {
		return existing
	}
	c.entries[key] = d
	c.counts[d.Source]++
	return d
}

// snapshot returns all decisions sorted by table name.
func (c *decisionCache) snapshot() []model.ClassificationDecision {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.ClassificationDecision, 0, len(c.entries))
	for _, d := range c.entries {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableName < out[j].TableName })
	return out
}

// stats copies the per-source counters.
func (c *decisionCache) stats() map[model.DecisionSource]int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[model.DecisionSource]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// size returns the number of entries in the cache.
func (c *decisionCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func cacheKey(table string) string {
	return strings.ToLower(strings.TrimSpace(table))
}
