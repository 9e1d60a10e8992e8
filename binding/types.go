// Package binding - Declarative data binding resolution
package binding

import (
	"encoding/json"
	"time"
)

// Binding is a declarative pointer to live data: where the value lives
// (source + params), how to reach into the snapshot (path), how to present
// it (transform), and how to cache and refresh it. Bindings are immutable
// once constructed; layout changes produce new bindings rather than
// mutating existing ones.
type Binding struct {
	Path              string         `json:"path"`
	Source            string         `json:"source"`
	Fallback          any            `json:"fallback,omitempty"`
	RefreshIntervalMs int            `json:"refreshIntervalMs,omitempty"`
	Transform         string         `json:"transform,omitempty"`
	Params            map[string]any `json:"params,omitempty"`
	CacheKey          string         `json:"cacheKey,omitempty"`
	CacheTTLMs        int            `json:"cacheTtlMs,omitempty"`
}

// Resolved is the outcome of one resolution attempt. It is never mutated
// after creation. On failure Value holds the binding's fallback and Error
// carries the reason; Success stays false.
type Resolved struct {
	Value      any       `json:"value"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	ResolvedAt time.Time `json:"resolvedAt"`
	Source     string    `json:"source"`
	FromCache  bool      `json:"fromCache"`
}

// Context carries the caller identity handed to source adapters. Adapters
// use it for scoping and authentication; the resolver itself never
// interprets it.
type Context struct {
	TenantID       string `json:"tenantId,omitempty"`
	OrganizationID string `json:"organizationId,omitempty"`
	UserID         string `json:"userId,omitempty"`
	SessionID      string `json:"sessionId,omitempty"`
}

// fingerprint identifies a binding's fetch+evaluate work for in-flight
// deduplication. Params are canonicalized through json.Marshal, which
// serializes map keys in sorted order.
func (b Binding) fingerprint() string {
	key := b.Source + "|" + b.Path
	if len(b.Params) > 0 {
		if encoded, err := json.Marshal(b.Params); err == nil {
			key += "|" + string(encoded)
		}
	}
	return key
}

// cacheTTL returns the per-binding TTL override, or fallback when the
// binding does not set one.
func (b Binding) cacheTTL(fallback time.Duration) time.Duration {
	if b.CacheTTLMs > 0 {
		return time.Duration(b.CacheTTLMs) * time.Millisecond
	}
	return fallback
}

// bindingFromMap recognizes a decoded JSON object as a binding. The
// discriminator is structural: both path and source must be present as
// non-empty strings. Objects that merely resemble user data are left alone.
func bindingFromMap(m map[string]any) (Binding, bool) {
	path, _ := m["path"].(string)
	source, _ := m["source"].(string)
	if path == "" || source == "" {
		return Binding{}, false
	}

	b := Binding{
		Path:     path,
		Source:   source,
		Fallback: m["fallback"],
	}
	if n, ok := intFromAny(m["refreshIntervalMs"]); ok {
		b.RefreshIntervalMs = n
	}
	if s, ok := m["transform"].(string); ok {
		b.Transform = s
	}
	if p, ok := m["params"].(map[string]any); ok {
		b.Params = p
	}
	if s, ok := m["cacheKey"].(string); ok {
		b.CacheKey = s
	}
	if n, ok := intFromAny(m["cacheTtlMs"]); ok {
		b.CacheTTLMs = n
	}
	return b, true
}

// intFromAny accepts the integer shapes a decoded JSON document can carry.
func intFromAny(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
