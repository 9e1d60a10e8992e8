package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"
)

// hybridCache layers TTL expiry over LRU capacity eviction: an entry
// leaves when it expires or when the cache runs over maxSize, whichever
// comes first. Like the LRU cache it keeps recency in a linked list;
// like the TTL cache it reaps lazily on Get and in a background sweep.
type hybridCache[V any] struct {
	mu         sync.RWMutex
	maxSize    int
	defaultTTL time.Duration
	sweepEvery time.Duration
	elems      map[string]*list.Element
	order      *list.List
	rec        recorder
	onEvict    EvictCallback[V]

	closeOnce sync.Once
	shutdown  chan struct{}
	done      chan struct{}
}

type hybridItem[V any] struct {
	key       string
	value     V
	createdAt time.Time
	expiresAt time.Time
}

func (e *hybridItem[V]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// newHybridCache creates a cache bounded by both maxSize and ttl.
func newHybridCache[V any](
	ctx context.Context, maxSize int, ttl, cleanupInterval time.Duration, opts *settings[V],
) (*hybridCache[V], error) {
	rec, err := newRecorder(opts, "newHybridCache")
	if err != nil {
		return nil, err
	}
	c := &hybridCache[V]{
		maxSize:    maxSize,
		defaultTTL: ttl,
		sweepEvery: cleanupInterval,
		elems:      make(map[string]*list.Element),
		order:      list.New(),
		rec:        rec,
		onEvict:    opts.onEvict,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}

	go c.sweep(ctx)

	return c, nil
}

// Get returns the value for key if present and not expired, marking it
// most recently used. An expired entry is removed and reads as a miss.
func (c *hybridCache[V]) Get(key string) (V, bool) {
	var expired *hybridItem[V]
	var zero V

	c.mu.Lock()
	element, ok := c.elems[key]
	if !ok {
		c.rec.lookup(false)
		c.mu.Unlock()
		return zero, false
	}
	item := element.Value.(*hybridItem[V])
	if item.expired(time.Now()) {
		c.unlink(element)
		c.rec.evicted(1)
		c.rec.lookup(false)
		c.rec.sized(len(c.elems))
		expired = item
		c.mu.Unlock()

		if c.onEvict != nil {
			c.onEvict(expired.key, expired.value)
		}
		return zero, false
	}
	c.order.MoveToFront(element)
	c.rec.lookup(true)
	c.mu.Unlock()

	return item.value, true
}

// Set stores a value under key with the cache's default TTL.
func (c *hybridCache[V]) Set(key string, value V) (bool, error) {
	return c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores a value with an explicit time-to-live for this
// entry. A ttl <= 0 falls back to the default. The entry becomes most
// recently used either way.
func (c *hybridCache[V]) SetWithTTL(key string, value V, ttl time.Duration) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := time.Now()

	var evicted *hybridItem[V]

	c.mu.Lock()
	created := true
	if element, ok := c.elems[key]; ok {
		item := element.Value.(*hybridItem[V])
		item.value = value
		item.createdAt = now
		item.expiresAt = now.Add(ttl)
		c.order.MoveToFront(element)
		created = false
	} else {
		c.elems[key] = c.order.PushFront(&hybridItem[V]{
			key:       key,
			value:     value,
			createdAt: now,
			expiresAt: now.Add(ttl),
		})
		if len(c.elems) > c.maxSize {
			evicted = c.evictOldest()
		}
	}
	c.rec.stored()
	c.rec.sized(len(c.elems))
	c.mu.Unlock()

	if evicted != nil && c.onEvict != nil {
		c.onEvict(evicted.key, evicted.value)
	}
	return created, nil
}

// Delete removes an entry by key.
func (c *hybridCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	element, ok := c.elems[key]
	if !ok {
		c.mu.Unlock()
		return false, nil
	}
	item := element.Value.(*hybridItem[V])
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
func (c *hybridCache[V]) DeletePrefix(prefix string) (int, error) {
	var removed []*hybridItem[V]

	c.mu.Lock()
	for element := c.order.Front(); element != nil; {
		next := element.Next()
		if item := element.Value.(*hybridItem[V]); matchesPrefix(item.key, prefix) {
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
func (c *hybridCache[V]) Clear() error {
	var cleared []*hybridItem[V]

	c.mu.Lock()
	if c.onEvict != nil {
		cleared = make([]*hybridItem[V], 0, len(c.elems))
		for element := c.order.Back(); element != nil; element = element.Prev() {
			cleared = append(cleared, element.Value.(*hybridItem[V]))
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

// Size returns the entry count, expired-but-unswept entries included.
func (c *hybridCache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.elems)
}

// Keys returns the keys of live entries, most recently used first.
func (c *hybridCache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	keys := make([]string, 0, len(c.elems))
	for element := c.order.Front(); element != nil; element = element.Next() {
		if item := element.Value.(*hybridItem[V]); !item.expired(now) {
			keys = append(keys, item.key)
		}
	}
	return keys
}

// Snapshot returns a point-in-time view of live entries, most recently
// used first.
func (c *hybridCache[V]) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	entries := make([]EntrySnapshot, 0, len(c.elems))
	for element := c.order.Front(); element != nil; element = element.Next() {
		item := element.Value.(*hybridItem[V])
		if item.expired(now) {
			continue
		}
		entries = append(entries, EntrySnapshot{
			Key:   item.key,
			AgeMs: ageMs(item.createdAt, now),
		})
	}
	return Snapshot{Size: len(entries), Entries: entries}
}

// Stats returns the always-on statistics tracker.
func (c *hybridCache[V]) Stats() *Statistics {
	return c.rec.stats
}

// Close stops the background sweep. Safe to call more than once.
func (c *hybridCache[V]) Close() error {
	c.closeOnce.Do(func() { close(c.shutdown) })

	select {
	case <-c.done:
		return nil
	case <-time.After(sweepStopTimeout):
		return fmt.Errorf("hybrid cache sweep did not stop")
	}
}

// evictOldest unlinks the back of the list and returns the removed item
// so the caller can deliver the eviction callback after unlocking.
// Lock held.
func (c *hybridCache[V]) evictOldest() *hybridItem[V] {
	element := c.order.Back()
	if element == nil {
		return nil
	}
	item := element.Value.(*hybridItem[V])
	c.unlink(element)
	c.rec.evicted(1)
	return item
}

// unlink removes element from both indexes. Lock held; the eviction
// callback stays the caller's responsibility.
func (c *hybridCache[V]) unlink(element *list.Element) {
	delete(c.elems, element.Value.(*hybridItem[V]).key)
	c.order.Remove(element)
}

// sweep periodically removes expired entries until Close or ctx ends.
func (c *hybridCache[V]) sweep(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

// removeExpired drops every expired entry in one pass.
func (c *hybridCache[V]) removeExpired() {
	now := time.Now()
	var expired []*hybridItem[V]

	c.mu.Lock()
	for element := c.order.Front(); element != nil; {
		next := element.Next()
		if item := element.Value.(*hybridItem[V]); item.expired(now) {
			c.unlink(element)
			expired = append(expired, item)
		}
		element = next
	}
	if len(expired) > 0 {
		c.rec.evicted(len(expired))
		c.rec.sized(len(c.elems))
	}
	c.mu.Unlock()

	if c.onEvict != nil {
		for _, item := range expired {
			c.onEvict(item.key, item.value)
		}
	}
}
