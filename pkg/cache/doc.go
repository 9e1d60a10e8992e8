// Package cache provides generic, thread-safe caches with pluggable
// eviction strategies and built-in observability.
//
// Four strategies cover the runtime's caching needs:
//
//   - simple: no eviction, entries stay until deleted
//   - lru: least recently used eviction past a size cap
//   - ttl: entries expire after a time-to-live
//   - hybrid: lru capacity and ttl expiry combined
//
// Construct directly or from configuration:
//
//	values, err := cache.NewTTL[any](ctx, time.Minute, 30*time.Second)
//
//	c, err := cache.NewFromConfig[[]byte](ctx, cfg,
//		cache.WithMetrics[[]byte](registry, "hydrator"),
//	)
//
// TTL and hybrid caches run a background sweep goroutine; cancel the
// context or call Close to stop it. Simple and lru caches have no
// background work.
//
// # Per-Entry TTL
//
// SetWithTTL overrides the default lifetime for one entry, which is
// how a binding's own cacheTtlMs takes effect:
//
//	values.Set("metrics:revenue", v)                       // default TTL
//	values.SetWithTTL("metrics:revenue", v, 5*time.Minute) // explicit
//
// Simple and lru caches accept SetWithTTL and ignore the duration,
// since neither expires entries by age.
//
// # Invalidation and Introspection
//
// DeletePrefix removes every entry whose key starts with a prefix, the
// unit of invalidation for a family of related keys. An empty prefix
// clears the cache. Snapshot returns live entries with their ages in
// milliseconds for debug endpoints:
//
//	n, _ := values.DeletePrefix("endpoint:")
//	snap := values.Snapshot()
//
// # Observability
//
// Every cache tracks atomic Statistics unconditionally, available via
// Stats(): hit ratio, request rate, current and peak size. WithMetrics
// additionally exports the same counters to Prometheus with a
// component label. The two trackers are independent so that Stats()
// keeps working in tests and in deployments without a metrics
// registry, and so hit ratio and request rate stay cheap atomic loads
// rather than reads through the Prometheus client.
//
// # Eviction Callbacks
//
// WithEvictionCallback observes every removal: capacity eviction, TTL
// expiry, Delete, DeletePrefix, and Clear. Callbacks run after the
// cache releases its lock, so a callback may call back into the cache.
//
// # Typical Uses
//
//	// resolved binding values, per-binding TTL override
//	values, _ := cache.NewTTL[any](ctx, time.Minute, 30*time.Second)
//
//	// endpoint response bodies, bounded both ways
//	responses, _ := cache.NewHybrid[[]byte](ctx, 5000, 30*time.Second, 10*time.Second)
//
//	// compiled path expressions, capacity only
//	compiled, _ := cache.NewLRU[*pathexpr.Path](1000)
package cache
