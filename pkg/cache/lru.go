package cache

import (
	"container/list"
	"sync"
	"time"
)

// lruCache evicts the least recently used entry once maxSize is
// exceeded. Recency lives in a doubly-linked list: the front holds the
// most recently touched entry, the back the next eviction candidate.
type lruCache[V any] struct {
	mu      sync.RWMutex
	maxSize int
	elems   map[string]*list.Element
	order   *list.List
	rec     recorder
	onEvict EvictCallback[V]
}

type lruItem[V any] struct {
	key       string
	value     V
	createdAt time.Time
}

// newLRUCache creates an LRU cache capped at maxSize entries.
func newLRUCache[V any](maxSize int, opts *settings[V]) (*lruCache[V], error) {
	rec, err := newRecorder(opts, "newLRUCache")
	if err != nil {
		return nil, err
	}
	return &lruCache[V]{
		maxSize: maxSize,
		elems:   make(map[string]*list.Element),
		order:   list.New(),
		rec:     rec,
		onEvict: opts.onEvict,
	}, nil
}

// Get returns the value for key and marks it most recently used.
func (c *lruCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.elems[key]
	if !ok {
		c.rec.lookup(false)
		var zero V
		return zero, false
	}
	c.order.MoveToFront(element)
	c.rec.lookup(true)
	return element.Value.(*lruItem[V]).value, true
}

// Set stores value under key, evicting the least recently used entry
// when the cache runs over capacity.
func (c *lruCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	var evicted *lruItem[V]

	c.mu.Lock()
	created := true
	if element, ok := c.elems[key]; ok {
		item := element.Value.(*lruItem[V])
		item.value = value
		item.createdAt = time.Now()
		c.order.MoveToFront(element)
		created = false
	} else {
		c.elems[key] = c.order.PushFront(&lruItem[V]{key: key, value: value, createdAt: time.Now()})
		if len(c.elems) > c.maxSize {
			evicted = c.evictOldest()
		}
	}
	c.rec.stored()
	c.rec.sized(len(c.elems))
	c.mu.Unlock()

	// Callback runs outside the lock so it may touch the cache.
	if evicted != nil && c.onEvict != nil {
		c.onEvict(evicted.key, evicted.value)
	}
	return created, nil
}

// SetWithTTL stores a value under key. LRU caches evict by recency
// rather than age, so the ttl argument is ignored.
func (c *lruCache[V]) SetWithTTL(key string, value V, _ time.Duration) (bool, error) {
	return c.Set(key, value)
}

// Delete removes an entry by key.
func (c *lruCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	element, ok := c.elems[key]
	if !ok {
		c.mu.Unlock()
		return false, nil
	}
	item := element.Value.(*lruItem[V])
	c.unlink(element)
	c.rec.deleted(1)
	c.rec.sized(len(c.elems))
	c.mu.Unlock()

	if c.onEvict != nil {
		c.onEvict(item.key, item.value)
	}
	return true, nil
}

// DeletePrefix removes every entry whose key starts with prefix and
// returns how many were removed. An empty prefix clears the cache.
func (c *lruCache[V]) DeletePrefix(prefix string) (int, error) {
	var removed []*lruItem[V]

	c.mu.Lock()
	for element := c.order.Front(); element != nil; {
		next := element.Next()
		if item := element.Value.(*lruItem[V]); matchesPrefix(item.key, prefix) {
			c.unlink(element)
			removed = append(removed, item)
		}
		element = next
	}
	if len(removed) > 0 {
		c.rec.deleted(len(removed))
		c.rec.sized(len(c.elems))
	}
	c.mu.Unlock()

	if c.onEvict != nil {
		for _, item := range removed {
			c.onEvict(item.key, item.value)
		}
	}
	return len(removed), nil
}

// Clear removes all entries.
func (c *lruCache[V]) Clear() error {
	var cleared []*lruItem[V]

	c.mu.Lock()
	if c.onEvict != nil {
		cleared = make([]*lruItem[V], 0, len(c.elems))
		for element := c.order.Back(); element != nil; element = element.Prev() {
			cleared = append(cleared, element.Value.(*lruItem[V]))
		}
	}
	c.elems = make(map[string]*list.Element)
	c.order.Init()
	c.rec.sized(0)
	c.mu.Unlock()

	for _, item := range cleared {
		c.onEvict(item.key, item.value)
	}
	return nil
}

// Size returns the current number of entries.
func (c *lruCache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.elems)
}

// Keys returns all keys, most recently used first.
func (c *lruCache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.elems))
	for element := c.order.Front(); element != nil; element = element.Next() {
		keys = append(keys, element.Value.(*lruItem[V]).key)
	}
	return keys
}

// Snapshot returns a point-in-time view of all entries, most recently
// used first.
func (c *lruCache[V]) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	entries := make([]EntrySnapshot, 0, len(c.elems))
	for element := c.order.Front(); element != nil; element = element.Next() {
		item := element.Value.(*lruItem[V])
		entries = append(entries, EntrySnapshot{
			Key:   item.key,
			AgeMs: ageMs(item.createdAt, now),
		})
	}
	return Snapshot{Size: len(entries), Entries: entries}
}

// Stats returns the always-on statistics tracker.
func (c *lruCache[V]) Stats() *Statistics {
	return c.rec.stats
}

// Close is a no-op; LRU caches run no background goroutines.
func (c *lruCache[V]) Close() error {
	return nil
}

// evictOldest unlinks the back of the list and returns the removed item
// so the caller can deliver the eviction callback after unlocking.
// Lock held.
func (c *lruCache[V]) evictOldest() *lruItem[V] {
	element := c.order.Back()
	if element == nil {
		return nil
	}
	item := element.Value.(*lruItem[V])
	c.unlink(element)
	c.rec.evicted(1)
	return item
}

// unlink removes element from both indexes. Lock held; the eviction
// callback stays the caller's responsibility.
func (c *lruCache[V]) unlink(element *list.Element) {
	delete(c.elems, element.Value.(*lruItem[V]).key)
	c.order.Remove(element)
}
