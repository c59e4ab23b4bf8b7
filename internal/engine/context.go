package engine

import (
	"sync"

	"replique/internal/domain"
)

// ContextCache holds the bounded per-conversation transcript. Each key maps
// to an ordered slice of turns, capped at maxTurns with the oldest evicted
// first. Only the orchestrator writes to it, and only after a cacheable
// completion outcome.
type ContextCache struct {
	mu       sync.Mutex
	maxTurns int
	convos   map[string][]domain.Turn
}

func NewContextCache(maxTurns int) *ContextCache {
	if maxTurns <= 0 {
		maxTurns = 20
	}
	return &ContextCache{
		maxTurns: maxTurns,
		convos:   make(map[string][]domain.Turn),
	}
}

// Turns returns a copy of the cached turns for key, oldest first.
func (c *ContextCache) Turns(key string) []domain.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	turns := c.convos[key]
	out := make([]domain.Turn, len(turns))
	copy(out, turns)
	return out
}

// Append adds turns under key, evicting the oldest entries beyond the cap.
func (c *ContextCache) Append(key string, turns ...domain.Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	merged := append(c.convos[key], turns...)
	if len(merged) > c.maxTurns {
		merged = merged[len(merged)-c.maxTurns:]
	}
	c.convos[key] = merged
}

// Len returns the number of cached turns for key.
func (c *ContextCache) Len(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.convos[key])
}
