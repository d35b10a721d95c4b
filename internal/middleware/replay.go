package middleware

import (
	"context"
	"sync"
	"time"
)

// ReplayGuard remembers authenticated request signatures until they can no
// longer pass the freshness check.
type ReplayGuard interface {
	// Claim records key for ttl. It reports false when key is already held.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// MemoryReplayGuard is a process-local ReplayGuard.
type MemoryReplayGuard struct {
	mu      sync.Mutex
	now     func() time.Time
	expires map[string]time.Time
	lastGC  time.Time
}

func NewMemoryReplayGuard(now func() time.Time) *MemoryReplayGuard {
	if now == nil {
		now = time.Now
	}
	return &MemoryReplayGuard{
		now:     now,
		expires: make(map[string]time.Time),
		lastGC:  now(),
	}
}

func (g *MemoryReplayGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if now.Sub(g.lastGC) > ttl {
		for k, exp := range g.expires {
			if !now.Before(exp) {
				delete(g.expires, k)
			}
		}
		g.lastGC = now
	}
	if exp, ok := g.expires[key]; ok && now.Before(exp) {
		return false, nil
	}
	g.expires[key] = now.Add(ttl)
	return true, nil
}

// Len is the number of keys currently held.
func (g *MemoryReplayGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.expires)
}
