package store

import (
	"container/list"
	"sync"
	"time"

	"github.com/Protocol-Lattice/toolloop/pkg/conversation"
)

// lruCache is a thread-safe LRU of snapshots with a TTL.
type lruCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	lru      *list.List
	now      func() time.Time
}

type lruEntry struct {
	key       string
	snap      conversation.Snapshot
	expiresAt time.Time
}

func newLRUCache(capacity int, ttl time.Duration) *lruCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &lruCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element, capacity),
		lru:      list.New(),
		now:      time.Now,
	}
}

func (c *lruCache) get(key string) (conversation.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return conversation.Snapshot{}, false
	}
	ent := elem.Value.(*lruEntry)
	if c.ttl > 0 && c.now().After(ent.expiresAt) {
		c.lru.Remove(elem)
		delete(c.items, key)
		return conversation.Snapshot{}, false
	}
	c.lru.MoveToFront(elem)
	return cloneSnapshot(ent.snap), true
}

func (c *lruCache) set(key string, snap conversation.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)
	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		ent := elem.Value.(*lruEntry)
		ent.snap = cloneSnapshot(snap)
		ent.expiresAt = expiresAt
		return
	}

	elem := c.lru.PushFront(&lruEntry{key: key, snap: cloneSnapshot(snap), expiresAt: expiresAt})
	c.items[key] = elem

	for c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.items, oldest.Value.(*lruEntry).key)
	}
}

func (c *lruCache) remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.lru.Remove(elem)
		delete(c.items, key)
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
