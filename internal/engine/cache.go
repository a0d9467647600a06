package engine

import (
	"sync"
	"time"

	"github.com/udo-labs/udo-engine/internal/model"
)

// statusCache is a per-project TTL cache over derived statuses. The TTL is
// keyed by the cached status's own state, so riskier classifications expire
// sooner. Writes and acknowledged mitigations invalidate synchronously before
// the mutation returns.
//
// Each project carries a generation counter bumped by Invalidate. A derivation
// captures the generation before reading the source of record and hands it
// back to Set, which drops the entry if the generation moved in between. A
// read that raced a write can therefore never re-install a stale derivation
// over the one the write just cached.
type statusCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	gens    map[string]uint64
	ttls    map[model.State]time.Duration
	nowFunc func() time.Time
}

type cacheEntry struct {
	status    *model.Status
	expiresAt time.Time
}

func newStatusCache(ttls map[model.State]time.Duration) *statusCache {
	return &statusCache{
		entries: make(map[string]cacheEntry),
		gens:    make(map[string]uint64),
		ttls:    ttls,
		nowFunc: time.Now,
	}
}

// Get returns the cached status if present and unexpired.
func (c *statusCache) Get(projectID string) (*model.Status, bool) {
	c.mu.RLock()
	e, ok := c.entries[projectID]
	c.mu.RUnlock()
	if !ok || c.nowFunc().After(e.expiresAt) {
		return nil, false
	}
	return e.status, true
}

// Generation returns the project's current invalidation generation. Capture
// it before deriving a status and pass it to Set.
func (c *statusCache) Generation(projectID string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[projectID]
}

// Set stores st under its project id with the TTL for its state, unless the
// project was invalidated since gen was captured.
func (c *statusCache) Set(st *model.Status, gen uint64) {
	ttl, ok := c.ttls[st.State]
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[st.ProjectID] != gen {
		return
	}
	c.entries[st.ProjectID] = cacheEntry{status: st, expiresAt: c.nowFunc().Add(ttl)}
}

// Invalidate drops the cached status for a project and bumps its generation,
// expiring any in-flight derivation that started before the call.
func (c *statusCache) Invalidate(projectID string) {
	c.mu.Lock()
	delete(c.entries, projectID)
	c.gens[projectID]++
	c.mu.Unlock()
}
