package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ttlCache expires entries after a time-to-live. Entries get the
// cache's default TTL unless stored through SetWithTTL, which overrides
// expiry for that entry alone. Expired entries are reaped lazily on Get
// and in bulk by a background sweep.
type ttlCache[V any] struct {
	mu         sync.RWMutex
	defaultTTL time.Duration
	sweepEvery time.Duration
	items      map[string]*ttlEntry[V]
	rec        recorder
	onEvict    EvictCallback[V]

	closeOnce sync.Once
	shutdown  chan struct{}
	done      chan struct{}
}

// sweepStopTimeout bounds how long Close waits for the sweep goroutine.
const sweepStopTimeout = 5 * time.Second

type ttlEntry[V any] struct {
	key       string
	value     V
	createdAt time.Time
	expiresAt time.Time
}

func (e *ttlEntry[V]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// newTTLCache creates a TTL cache and starts its background sweep.
func newTTLCache[V any](
	ctx context.Context, ttl, cleanupInterval time.Duration, opts *settings[V],
) (*ttlCache[V], error) {
	rec, err := newRecorder(opts, "newTTLCache")
	if err != nil {
		return nil, err
	}
	c := &ttlCache[V]{
		defaultTTL: ttl,
		sweepEvery: cleanupInterval,
		items:      make(map[string]*ttlEntry[V]),
		rec:        rec,
		onEvict:    opts.onEvict,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}

	go c.sweep(ctx)

	return c, nil
}

// Get returns the value for key if present and not expired. An expired
// entry is removed on the spot and reads as a miss.
func (c *ttlCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	var zero V
	switch {
	case !ok:
		c.rec.lookup(false)
		return zero, false
	case entry.expired(time.Now()):
		c.expireNow(key)
		c.rec.lookup(false)
		return zero, false
	}

	c.rec.lookup(true)
	return entry.value, true
}

// expireNow removes key if it is still present and still expired. The
// re-check under the write lock covers a concurrent overwrite between
// the read and this call.
func (c *ttlCache[V]) expireNow(key string) {
	var evicted *ttlEntry[V]

	c.mu.Lock()
	if entry, ok := c.items[key]; ok && entry.expired(time.Now()) {
		delete(c.items, key)
		evicted = entry
		c.rec.evicted(1)
		c.rec.sized(len(c.items))
	}
	c.mu.Unlock()

	if evicted != nil && c.onEvict != nil {
		c.onEvict(evicted.key, evicted.value)
	}
}

// Set stores a value under key with the cache's default TTL.
func (c *ttlCache[V]) Set(key string, value V) (bool, error) {
	return c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores a value with an explicit time-to-live for this
// entry. A ttl <= 0 falls back to the default.
func (c *ttlCache[V]) SetWithTTL(key string, value V, ttl time.Duration) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := time.Now()

	c.mu.Lock()
	_, overwrote := c.items[key]
	c.items[key] = &ttlEntry[V]{
		key:       key,
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	c.rec.stored()
	c.rec.sized(len(c.items))
	c.mu.Unlock()

	return !overwrote, nil
}

// Delete removes an entry by key.
func (c *ttlCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	entry, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return false, nil
	}
	delete(c.items, key)
	c.rec.deleted(1)
	c.rec.sized(len(c.items))
	c.mu.Unlock()

	if c.onEvict != nil {
		c.onEvict(entry.key, entry.value)
	}
	return true, nil
}

// DeletePrefix removes every entry whose key starts with prefix and
// returns how many were removed. An empty prefix clears the cache.
func (c *ttlCache[V]) DeletePrefix(prefix string) (int, error) {
	var removed []*ttlEntry[V]

	c.mu.Lock()
	for key, entry := range c.items {
		if matchesPrefix(key, prefix) {
			delete(c.items, key)
			removed = append(removed, entry)
		}
	}
	if len(removed) > 0 {
		c.rec.deleted(len(removed))
		c.rec.sized(len(c.items))
	}
	c.mu.Unlock()

	if c.onEvict != nil {
		for _, entry := range removed {
			c.onEvict(entry.key, entry.value)
		}
	}
	return len(removed), nil
}

// Clear removes all entries.
func (c *ttlCache[V]) Clear() error {
	var cleared []*ttlEntry[V]

	c.mu.Lock()
	if c.onEvict != nil {
		cleared = make([]*ttlEntry[V], 0, len(c.items))
		for _, entry := range c.items {
			cleared = append(cleared, entry)
		}
	}
	c.items = make(map[string]*ttlEntry[V])
	c.rec.sized(0)
	c.mu.Unlock()

	for _, entry := range cleared {
		c.onEvict(entry.key, entry.value)
	}
	return nil
}

// Size returns the entry count, expired-but-unswept entries included.
func (c *ttlCache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys returns the keys of all live entries.
func (c *ttlCache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	keys := make([]string, 0, len(c.items))
	for key, entry := range c.items {
		if !entry.expired(now) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Snapshot returns a point-in-time view of live entries.
func (c *ttlCache[V]) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	entries := make([]EntrySnapshot, 0, len(c.items))
	for key, entry := range c.items {
		if entry.expired(now) {
			continue
		}
		entries = append(entries, EntrySnapshot{
			Key:   key,
			AgeMs: ageMs(entry.createdAt, now),
		})
	}
	return Snapshot{Size: len(entries), Entries: entries}
}

// Stats returns the always-on statistics tracker.
func (c *ttlCache[V]) Stats() *Statistics {
	return c.rec.stats
}

// Close stops the background sweep. Safe to call more than once.
func (c *ttlCache[V]) Close() error {
	c.closeOnce.Do(func() { close(c.shutdown) })

	select {
	case <-c.done:
		return nil
	case <-time.After(sweepStopTimeout):
		return fmt.Errorf("ttl cache sweep did not stop")
	}
}

// sweep periodically removes expired entries until Close or ctx ends.
func (c *ttlCache[V]) sweep(ctx context.Context) {
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
func (c *ttlCache[V]) removeExpired() {
	now := time.Now()
	var expired []*ttlEntry[V]

	c.mu.Lock()
	for key, entry := range c.items {
		if entry.expired(now) {
			delete(c.items, key)
			expired = append(expired, entry)
		}
	}
	if len(expired) > 0 {
		c.rec.evicted(len(expired))
		c.rec.sized(len(c.items))
	}
	c.mu.Unlock()

	if c.onEvict != nil {
		for _, entry := range expired {
			c.onEvict(entry.key, entry.value)
		}
	}
}
