package store

import (
	"context"
	"time"

	"github.com/Protocol-Lattice/toolloop/pkg/conversation"
)

// CachedStore puts an LRU in front of a slower backend. Saves write through;
// loads are served from the cache while the entry is fresh.
type CachedStore struct {
	backend Store
	cache   *lruCache
}

// NewCachedStore wraps backend with a cache of size sessions. A zero ttl keeps
// entries until they are evicted.
func NewCachedStore(backend Store, size int, ttl time.Duration) *CachedStore {
	return &CachedStore{backend: backend, cache: newLRUCache(size, ttl)}
}

func (c *CachedStore) Save(ctx context.Context, snap conversation.Snapshot) (string, error) {
	loc, err := c.backend.Save(ctx, snap)
	if err != nil {
		c.cache.remove(snap.SessionID)
		return "", err
	}
	c.cache.set(snap.SessionID, snap)
	return loc, nil
}

func (c *CachedStore) Load(ctx context.Context, sessionID string) (conversation.Snapshot, error) {
	if snap, ok := c.cache.get(sessionID); ok {
		return snap, nil
	}
	snap, err := c.backend.Load(ctx, sessionID)
	if err != nil {
		return conversation.Snapshot{}, err
	}
	c.cache.set(sessionID, snap)
	return snap, nil
}

// Cached reports how many sessions are held in memory.
func (c *CachedStore) Cached() int { return c.cache.len() }
