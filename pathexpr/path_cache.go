// Package pathexpr - Compiled path caching using the runtime's cache package
package pathexpr

import (
	"fmt"

	"github.com/c360/canvaskit/pkg/cache"
)

// globalPathCache is the LRU cache for compiled path expressions.
// Canvas layouts repeat the same few dozen paths across many bindings, so
// a small LRU keeps reparsing off the resolve hot path.
var globalPathCache cache.Cache[*Path]

// Initialize the path cache - must be called during package init
func init() {
	var err error
	globalPathCache, err = cache.NewLRU[*Path](256)
	if err != nil {
		// Cache creation should not fail with valid options, but handle gracefully
		panic(fmt.Sprintf("Failed to initialize path cache: %v", err))
	}
}

// compilePath returns a cached compiled path or parses and caches a new one.
func compilePath(text string) (*Path, error) {
	// Try to get from cache first
	if p, found := globalPathCache.Get(text); found {
		// Cache hit - stats are automatically tracked by the cache package
		return p, nil
	}

	p, err := Parse(text)
	if err != nil {
		// Parse errors are not cached; invalid paths are a config mistake
		// and the error must stay attributable to each call site
		return nil, err
	}

	// Add to cache - the cache package handles LRU eviction automatically
	globalPathCache.Set(text, p)

	return p, nil
}

// Utility functions for testing and maintenance

// clearCache removes all cached paths (useful for testing)
func clearCache() {
	globalPathCache.Clear()
}

// cacheSize returns the current number of cached paths
func cacheSize() int {
	return globalPathCache.Size()
}

// cacheStats returns cache statistics if available
func cacheStats() *cache.Statistics {
	return globalPathCache.Stats()
}
