package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// builders constructs one small cache per strategy so the shared
// behavior checks run against every implementation.
func builders() map[string]func(t *testing.T) Cache[string] {
	return map[string]func(t *testing.T) Cache[string]{
		"Simple": func(t *testing.T) Cache[string] {
			c, err := NewSimple[string]()
			require.NoError(t, err)
			return c
		},
		"LRU": func(t *testing.T) Cache[string] {
			c, err := NewLRU[string](10)
			require.NoError(t, err)
			return c
		},
		"TTL": func(t *testing.T) Cache[string] {
			c, err := NewTTL[string](context.Background(), 10*time.Second, 5*time.Second)
			require.NoError(t, err)
			return c
		},
		"Hybrid": func(t *testing.T) Cache[string] {
			c, err := NewHybrid[string](context.Background(), 10, 10*time.Second, 5*time.Second)
			require.NoError(t, err)
			return c
		},
	}
}

func TestAllStrategies(t *testing.T) {
	checks := map[string]func(*testing.T, Cache[string]){
		"Lifecycle":    checkLifecycle,
		"Size":         checkSize,
		"Keys":         checkKeys,
		"Clear":        checkClear,
		"DeletePrefix": checkDeletePrefix,
		"Snapshot":     checkSnapshot,
	}

	for name, build := range builders() {
		t.Run(name, func(t *testing.T) {
			for checkName, check := range checks {
				t.Run(checkName, func(t *testing.T) {
					c := build(t)
					defer c.Close()
					check(t, c)
				})
			}
		})
	}
}

func checkLifecycle(t *testing.T, c Cache[string]) {
	_, ok := c.Get("user:profile.name")
	require.False(t, ok, "empty cache should miss")

	created, err := c.Set("user:profile.name", "Ada")
	require.NoError(t, err)
	assert.True(t, created, "first set should report a new entry")

	v, ok := c.Get("user:profile.name")
	require.True(t, ok)
	assert.Equal(t, "Ada", v)

	created, err = c.Set("user:profile.name", "Grace")
	require.NoError(t, err)
	assert.False(t, created, "overwrite should not report a new entry")

	v, _ = c.Get("user:profile.name")
	assert.Equal(t, "Grace", v)

	removed, err := c.Delete("user:profile.name")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = c.Delete("user:profile.name")
	require.NoError(t, err)
	assert.False(t, removed, "second delete finds nothing")

	_, ok = c.Get("user:profile.name")
	assert.False(t, ok, "deleted key should miss")
}

func checkSize(t *testing.T, c Cache[string]) {
	assert.Equal(t, 0, c.Size())

	_, _ = c.Set("metrics:revenue", "1204")
	_, _ = c.Set("metrics:orders", "87")
	assert.Equal(t, 2, c.Size())

	_, _ = c.Delete("metrics:revenue")
	assert.Equal(t, 1, c.Size())
}

func checkKeys(t *testing.T, c Cache[string]) {
	assert.Empty(t, c.Keys())

	_, _ = c.Set("metrics:revenue", "1204")
	_, _ = c.Set("metrics:orders", "87")

	assert.ElementsMatch(t, []string{"metrics:revenue", "metrics:orders"}, c.Keys())
}

func checkClear(t *testing.T, c Cache[string]) {
	_, _ = c.Set("metrics:revenue", "1204")
	_, _ = c.Set("metrics:orders", "87")

	require.NoError(t, c.Clear())

	assert.Equal(t, 0, c.Size())
	_, ok := c.Get("metrics:revenue")
	assert.False(t, ok)
}

func checkDeletePrefix(t *testing.T, c Cache[string]) {
	_, _ = c.Set("binding:kpi.total", "40")
	_, _ = c.Set("binding:kpi.delta", "+3")
	_, _ = c.Set("endpoint:orders", "[...]")

	removed, err := c.DeletePrefix("binding:")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, ok := c.Get("binding:kpi.total")
	assert.False(t, ok, "prefixed key should be gone")
	_, ok = c.Get("endpoint:orders")
	assert.True(t, ok, "unrelated key should survive")

	removed, err = c.DeletePrefix("")
	require.NoError(t, err)
	assert.Equal(t, 1, removed, "empty prefix removes the rest")
	assert.Equal(t, 0, c.Size())
}

func checkSnapshot(t *testing.T, c Cache[string]) {
	snap := c.Snapshot()
	assert.Equal(t, 0, snap.Size)
	assert.Empty(t, snap.Entries)

	_, _ = c.Set("metrics:revenue", "1204")
	_, _ = c.Set("metrics:orders", "87")

	snap = c.Snapshot()
	assert.Equal(t, 2, snap.Size)
	require.Len(t, snap.Entries, 2)

	seen := make([]string, 0, 2)
	for _, entry := range snap.Entries {
		seen = append(seen, entry.Key)
		assert.GreaterOrEqual(t, entry.AgeMs, int64(0))
	}
	assert.ElementsMatch(t, []string{"metrics:revenue", "metrics:orders"}, seen)
}

func TestSimpleNeverEvicts(t *testing.T) {
	c, err := NewSimple[string]()
	require.NoError(t, err)
	defer c.Close()

	for i := range 1000 {
		_, _ = c.Set(fmt.Sprintf("layout:%d", i), fmt.Sprintf("doc-%d", i))
	}
	require.Equal(t, 1000, c.Size())

	for i := range 1000 {
		v, ok := c.Get(fmt.Sprintf("layout:%d", i))
		require.True(t, ok, "entry %d should still be present", i)
		require.Equal(t, fmt.Sprintf("doc-%d", i), v)
	}

	// SetWithTTL accepts a duration but nothing expires.
	_, _ = c.SetWithTTL("layout:temp", "doc", time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	_, ok := c.Get("layout:temp")
	assert.True(t, ok, "simple caches do not expire entries")
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c, err := NewLRU[string](3)
	require.NoError(t, err)
	defer c.Close()

	_, _ = c.Set("path:a", "1")
	_, _ = c.Set("path:b", "2")
	_, _ = c.Set("path:c", "3")
	require.Equal(t, 3, c.Size())

	// Touching path:a leaves path:b as the oldest.
	c.Get("path:a")
	_, _ = c.Set("path:d", "4")

	assert.Equal(t, 3, c.Size())
	_, ok := c.Get("path:b")
	assert.False(t, ok, "least recently used entry should be evicted")
	for _, key := range []string{"path:a", "path:c", "path:d"} {
		_, ok := c.Get(key)
		assert.True(t, ok, "%s should survive", key)
	}
}

func TestLRUKeysOrderedByRecency(t *testing.T) {
	c, err := NewLRU[string](3)
	require.NoError(t, err)
	defer c.Close()

	_, _ = c.Set("path:a", "1")
	_, _ = c.Set("path:b", "2")
	_, _ = c.Set("path:c", "3")

	c.Get("path:b")
	c.Get("path:a")
	c.Get("path:c")

	assert.Equal(t, []string{"path:c", "path:a", "path:b"}, c.Keys())
}

func TestTTLExpiry(t *testing.T) {
	c, err := NewTTL[string](context.Background(), 100*time.Millisecond, 50*time.Millisecond)
	require.NoError(t, err)
	defer c.Close()

	_, _ = c.Set("binding:live", "v")

	v, ok := c.Get("binding:live")
	require.True(t, ok)
	require.Equal(t, "v", v)

	time.Sleep(150 * time.Millisecond)

	_, ok = c.Get("binding:live")
	assert.False(t, ok, "entry should expire after its TTL")
}

func TestTTLBackgroundSweep(t *testing.T) {
	c, err := NewTTL[string](context.Background(), 50*time.Millisecond, 25*time.Millisecond)
	require.NoError(t, err)
	defer c.Close()

	_, _ = c.Set("binding:a", "1")
	_, _ = c.Set("binding:b", "2")
	require.Equal(t, 2, c.Size())

	// The sweep removes expired entries without any Get touching them.
	assert.Eventually(t, func() bool { return c.Size() == 0 },
		time.Second, 10*time.Millisecond, "sweep should reap expired entries")
}

func TestTTLPerEntryOverride(t *testing.T) {
	c, err := NewTTL[string](context.Background(), 50*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, err)
	defer c.Close()

	_, _ = c.Set("binding:fast", "v")
	_, _ = c.SetWithTTL("binding:slow", "v", 500*time.Millisecond)

	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("binding:fast")
	assert.False(t, ok, "default TTL should apply without an override")
	_, ok = c.Get("binding:slow")
	assert.True(t, ok, "per-entry TTL should outlive the default")

	// A non-positive override falls back to the default.
	_, _ = c.SetWithTTL("binding:zero", "v", 0)
	_, ok = c.Get("binding:zero")
	require.True(t, ok)
	time.Sleep(100 * time.Millisecond)
	_, ok = c.Get("binding:zero")
	assert.False(t, ok)
}

func TestTTLSnapshotSkipsExpired(t *testing.T) {
	c, err := NewTTL[string](context.Background(), 10*time.Second, time.Second)
	require.NoError(t, err)
	defer c.Close()

	_, _ = c.SetWithTTL("binding:short", "v", 30*time.Millisecond)
	_, _ = c.Set("binding:long", "v")

	time.Sleep(60 * time.Millisecond)

	snap := c.Snapshot()
	require.Equal(t, 1, snap.Size)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "binding:long", snap.Entries[0].Key)
	assert.GreaterOrEqual(t, snap.Entries[0].AgeMs, int64(50), "age reflects time since set")
	assert.Equal(t, []string{"binding:long"}, c.Keys())
}

func TestHybridCapacityEviction(t *testing.T) {
	c, err := NewHybrid[string](context.Background(), 2, time.Second, 500*time.Millisecond)
	require.NoError(t, err)
	defer c.Close()

	_, _ = c.Set("endpoint:a", "1")
	_, _ = c.Set("endpoint:b", "2")
	_, _ = c.Set("endpoint:c", "3")

	assert.Equal(t, 2, c.Size())
	_, ok := c.Get("endpoint:a")
	assert.False(t, ok, "oldest entry should fall out at capacity")
}

func TestHybridTTLExpiry(t *testing.T) {
	c, err := NewHybrid[string](context.Background(), 10, 100*time.Millisecond, 50*time.Millisecond)
	require.NoError(t, err)
	defer c.Close()

	_, _ = c.Set("endpoint:a", "1")
	time.Sleep(150 * time.Millisecond)

	_, ok := c.Get("endpoint:a")
	assert.False(t, ok, "entry should expire even below capacity")
}

func TestHybridPerEntryOverride(t *testing.T) {
	c, err := NewHybrid[string](context.Background(), 10, 50*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, err)
	defer c.Close()

	_, _ = c.Set("endpoint:fast", "v")
	_, _ = c.SetWithTTL("endpoint:slow", "v", 500*time.Millisecond)

	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("endpoint:fast")
	assert.False(t, ok)
	_, ok = c.Get("endpoint:slow")
	assert.True(t, ok, "per-entry TTL should outlive the default")
}

func TestConcurrentAccess(t *testing.T) {
	for name, build := range builders() {
		t.Run(name, func(t *testing.T) {
			c := build(t)
			defer c.Close()

			const goroutines = 10
			const operations = 100

			var wg sync.WaitGroup
			wg.Add(goroutines)
			for g := range goroutines {
				go func() {
					defer wg.Done()
					for i := range operations {
						key := fmt.Sprintf("worker%d:item%d", g, i)
						want := fmt.Sprintf("value-%d-%d", g, i)

						_, _ = c.Set(key, want)
						if got, ok := c.Get(key); ok && got != want {
							t.Errorf("got %q for %s, want %q", got, key, want)
						}
						if i%10 == 0 {
							_, _ = c.Delete(key)
						}
					}
				}()
			}
			wg.Wait()
		})
	}
}

// callbackRecorder collects eviction callbacks safely across goroutines.
type callbackRecorder struct {
	mu   sync.Mutex
	keys []string
}

func (r *callbackRecorder) record(key string, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
}

func (r *callbackRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...)
}

func TestEvictionCallbacks(t *testing.T) {
	t.Run("LRUCapacity", func(t *testing.T) {
		var rec callbackRecorder
		c, err := NewLRU[string](2, WithEvictionCallback[string](rec.record))
		require.NoError(t, err)
		defer c.Close()

		_, _ = c.Set("path:a", "1")
		_, _ = c.Set("path:b", "2")
		_, _ = c.Set("path:c", "3")

		assert.Equal(t, []string{"path:a"}, rec.snapshot())
	})

	t.Run("TTLSweep", func(t *testing.T) {
		var rec callbackRecorder
		c, err := NewTTL[string](context.Background(), 50*time.Millisecond, 25*time.Millisecond,
			WithEvictionCallback[string](rec.record))
		require.NoError(t, err)
		defer c.Close()

		_, _ = c.Set("binding:a", "1")

		assert.Eventually(t, func() bool {
			keys := rec.snapshot()
			return len(keys) == 1 && keys[0] == "binding:a"
		}, time.Second, 10*time.Millisecond, "sweep should report the expired entry")
	})

	t.Run("DeletePrefix", func(t *testing.T) {
		var rec callbackRecorder
		c, err := NewLRU[string](10, WithEvictionCallback[string](rec.record))
		require.NoError(t, err)
		defer c.Close()

		_, _ = c.Set("binding:a", "1")
		_, _ = c.Set("binding:b", "2")
		_, _ = c.Set("other:c", "3")

		_, _ = c.DeletePrefix("binding:")

		assert.ElementsMatch(t, []string{"binding:a", "binding:b"}, rec.snapshot())
	})

	t.Run("HybridExpiredGet", func(t *testing.T) {
		var rec callbackRecorder
		c, err := NewHybrid[string](context.Background(), 10, 30*time.Millisecond, time.Minute,
			WithEvictionCallback[string](rec.record))
		require.NoError(t, err)
		defer c.Close()

		_, _ = c.Set("endpoint:a", "1")
		time.Sleep(60 * time.Millisecond)

		// The sweep interval is a minute out, so this Get does the reaping.
		_, ok := c.Get("endpoint:a")
		require.False(t, ok)
		assert.Equal(t, []string{"endpoint:a"}, rec.snapshot())
		assert.Equal(t, 0, c.Size())
	})
}

// Callbacks fire after the cache releases its lock, so a callback that
// calls back into the cache must not deadlock.
func TestCallbackMayReenterCache(t *testing.T) {
	var c Cache[string]
	var err error
	reentered := make(chan struct{}, 8)

	c, err = NewLRU[string](2, WithEvictionCallback[string](func(key string, _ string) {
		c.Size()
		_, _ = c.Get("path:b")
		reentered <- struct{}{}
	}))
	require.NoError(t, err)
	defer c.Close()

	_, _ = c.Set("path:a", "1")
	_, _ = c.Set("path:b", "2")
	_, _ = c.Set("path:c", "3")

	select {
	case <-reentered:
	case <-time.After(time.Second):
		t.Fatal("eviction callback never completed")
	}
}

func TestStatisticsTracking(t *testing.T) {
	c, err := NewLRU[string](10)
	require.NoError(t, err)
	defer c.Close()

	stats := c.Stats()
	require.NotNil(t, stats, "statistics are always on")

	_, _ = c.Set("metrics:revenue", "1204")
	_, _ = c.Set("metrics:orders", "87")
	c.Get("metrics:revenue")
	c.Get("metrics:missing")
	_, _ = c.Delete("metrics:orders")

	assert.Equal(t, int64(2), stats.Sets())
	assert.Equal(t, int64(1), stats.Hits())
	assert.Equal(t, int64(1), stats.Misses())
	assert.Equal(t, int64(1), stats.Deletes())
	assert.InDelta(t, 0.5, stats.HitRatio(), 0.001)
	assert.Equal(t, int64(1), stats.CurrentSize())
	assert.Equal(t, int64(2), stats.MaxSize(), "peak size should stick at the high-water mark")
}

func TestNoopCache(t *testing.T) {
	c := NewNoop[string]()
	defer c.Close()

	created, err := c.Set("anything", "v")
	require.NoError(t, err)
	assert.False(t, created)

	_, ok := c.Get("anything")
	assert.False(t, ok, "noop cache always misses")
	assert.Equal(t, 0, c.Size())
	assert.Nil(t, c.Keys())
	assert.Nil(t, c.Stats())

	snap := c.Snapshot()
	assert.Equal(t, 0, snap.Size)
}

func TestKeyValidation(t *testing.T) {
	c, err := NewSimple[string]()
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Set("", "v")
	assert.Error(t, err, "empty keys are rejected")

	_, err = c.Delete("")
	assert.Error(t, err)
}
