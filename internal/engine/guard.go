package engine

import (
	"sync"
	"time"
)

// CooldownGuard allows at most one automatic reply per author at a time.
// The marker outlives the reply by a fixed debounce delay, so a burst of
// messages from one author produces a single reply. Explicit command flows
// never touch the guard.
type CooldownGuard struct {
	mu    sync.Mutex
	busy  map[string]struct{}
	delay time.Duration
}

func NewCooldownGuard(delay time.Duration) *CooldownGuard {
	return &CooldownGuard{
		busy:  make(map[string]struct{}),
		delay: delay,
	}
}

// Acquire marks authorID as in flight. Returns false when a marker is
// already held, in which case the caller drops the message silently.
func (g *CooldownGuard) Acquire(authorID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.busy[authorID]; held {
		return false
	}
	g.busy[authorID] = struct{}{}
	return true
}

// Release schedules removal of the marker after the debounce delay. Called
// on success and failure alike.
func (g *CooldownGuard) Release(authorID string) {
	time.AfterFunc(g.delay, func() {
		g.mu.Lock()
		delete(g.busy, authorID)
		g.mu.Unlock()
	})
}

// Held reports whether a marker currently exists for authorID.
func (g *CooldownGuard) Held(authorID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, held := g.busy[authorID]
	return held
}
