package cache

import (
	"sync"
	"time"
)

// simpleCache is an unbounded map-backed cache. Entries stay until
// deleted or cleared, so it suits small fixed key spaces like layout
// documents or adapter registries where eviction would only churn.
type simpleCache[V any] struct {
	mu      sync.RWMutex
	items   map[string]simpleItem[V]
	rec     recorder
	onEvict EvictCallback[V]
}

type simpleItem[V any] struct {
	value     V
	createdAt time.Time
}

func newSimpleCache[V any](opts *settings[V]) (*simpleCache[V], error) {
	rec, err := newRecorder(opts, "newSimpleCache")
	if err != nil {
		return nil, err
	}
	return &simpleCache[V]{
		items:   make(map[string]simpleItem[V]),
		rec:     rec,
		onEvict: opts.onEvict,
	}, nil
}

// Get returns the value stored under key.
func (c *simpleCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	c.rec.lookup(ok)
	return item.value, ok
}

// Set stores a value under key, reporting whether the entry is new.
func (c *simpleCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	_, overwrote := c.items[key]
	c.items[key] = simpleItem[V]{value: value, createdAt: time.Now()}
	c.rec.stored()
	c.rec.sized(len(c.items))
	c.mu.Unlock()

	return !overwrote, nil
}

// SetWithTTL stores a value under key. The simple cache never expires
// entries, so ttl is ignored.
func (c *simpleCache[V]) SetWithTTL(key string, value V, _ time.Duration) (bool, error) {
	return c.Set(key, value)
}

// Delete removes an entry by key.
func (c *simpleCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	item, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return false, nil
	}
	delete(c.items, key)
	c.rec.deleted(1)
	c.rec.sized(len(c.items))
	c.mu.Unlock()

	if c.onEvict != nil {
		c.onEvict(key, item.value)
	}
	return true, nil
}

// DeletePrefix removes every entry whose key starts with prefix and
// returns how many were removed. An empty prefix clears the cache.
func (c *simpleCache[V]) DeletePrefix(prefix string) (int, error) {
	type removal struct {
		key   string
		value V
	}
	var removed []removal

	c.mu.Lock()
	for key, item := range c.items {
		if matchesPrefix(key, prefix) {
			removed = append(removed, removal{key: key, value: item.value})
			delete(c.items, key)
		}
	}
	if len(removed) > 0 {
		c.rec.deleted(len(removed))
		c.rec.sized(len(c.items))
	}
	c.mu.Unlock()

	if c.onEvict != nil {
		for _, r := range removed {
			c.onEvict(r.key, r.value)
		}
	}
	return len(removed), nil
}

// Clear removes all entries.
func (c *simpleCache[V]) Clear() error {
	var cleared map[string]simpleItem[V]

	c.mu.Lock()
	if c.onEvict != nil {
		cleared = c.items
	}
	c.items = make(map[string]simpleItem[V])
	c.rec.sized(0)
	c.mu.Unlock()

	for key, item := range cleared {
		c.onEvict(key, item.value)
	}
	return nil
}

// Size returns the entry count.
func (c *simpleCache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys returns all keys in map order.
func (c *simpleCache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.items))
	for key := range c.items {
		keys = append(keys, key)
	}
	return keys
}

// Snapshot returns a point-in-time view of all entries.
func (c *simpleCache[V]) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	entries := make([]EntrySnapshot, 0, len(c.items))
	for key, item := range c.items {
		entries = append(entries, EntrySnapshot{
			Key:   key,
			AgeMs: ageMs(item.createdAt, now),
		})
	}
	return Snapshot{Size: len(entries), Entries: entries}
}

// Stats returns the always-on statistics tracker.
func (c *simpleCache[V]) Stats() *Statistics {
	return c.rec.stats
}

// Close is a no-op: the simple cache runs no background work.
func (c *simpleCache[V]) Close() error {
	return nil
}
