package cache

import (
	"strings"
	"time"

	"github.com/c360/canvaskit/errors"
)

// Cache is the interface every eviction strategy implements. The value
// type V keeps callers out of type assertions.
type Cache[V any] interface {
	// Get returns the value stored under key and whether it was found.
	Get(key string) (V, bool)

	// Set stores a value under the cache's default expiry policy and
	// reports whether the entry is new rather than an overwrite.
	Set(key string, value V) (bool, error)

	// SetWithTTL stores a value with an explicit time-to-live. A ttl
	// <= 0 falls back to the default policy; strategies without expiry
	// (simple, lru) ignore the ttl entirely.
	SetWithTTL(key string, value V, ttl time.Duration) (bool, error)

	// Delete removes an entry, reporting whether the key existed.
	Delete(key string) (bool, error)

	// DeletePrefix removes every entry whose key starts with prefix
	// and returns how many were removed. An empty prefix removes all.
	DeletePrefix(prefix string) (int, error)

	// Clear removes all entries.
	Clear() error

	// Size returns the current entry count.
	Size() int

	// Keys returns all keys currently present.
	Keys() []string

	// Snapshot returns a point-in-time view of live entries, meant for
	// debug surfaces rather than hot paths.
	Snapshot() Snapshot

	// Stats returns the statistics tracker, nil for the no-op cache.
	Stats() *Statistics

	// Close releases background resources such as sweep goroutines.
	Close() error
}

// EvictCallback observes removals. It receives the key and value of
// every entry that leaves the cache, whatever the reason.
type EvictCallback[V any] func(key string, value V)

// Snapshot describes the live contents of a cache at a point in time.
type Snapshot struct {
	Size    int             `json:"size"`
	Entries []EntrySnapshot `json:"entries"`
}

// EntrySnapshot describes one cached entry for diagnostics.
type EntrySnapshot struct {
	Key   string `json:"key"`
	AgeMs int64  `json:"ageMs"`
}

// ageMs computes the whole-millisecond age of an entry created at the
// given time, clamped at zero against clock skew.
func ageMs(createdAt, now time.Time) int64 {
	age := now.Sub(createdAt).Milliseconds()
	if age < 0 {
		return 0
	}
	return age
}

// matchesPrefix reports whether a key falls under a DeletePrefix
// prefix. An empty prefix matches every key.
func matchesPrefix(key, prefix string) bool {
	return prefix == "" || strings.HasPrefix(key, prefix)
}

func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}
