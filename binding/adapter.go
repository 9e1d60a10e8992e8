package binding

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/c360/canvaskit/errors"
)

// Adapter fetches a raw data snapshot for one source identifier. The
// resolver evaluates the binding's path against whatever the adapter
// returns, so adapters hand back decoded JSON shapes (map[string]any,
// []any, scalars) rather than wire bytes.
//
// Fetch must honor ctx cancellation and must not retain params or bctx
// beyond the call.
type Adapter interface {
	Fetch(ctx context.Context, params map[string]any, bctx Context) (any, error)
}

// AdapterFunc adapts a plain function to the Adapter interface.
type AdapterFunc func(ctx context.Context, params map[string]any, bctx Context) (any, error)

// Fetch calls f.
func (f AdapterFunc) Fetch(ctx context.Context, params map[string]any, bctx Context) (any, error) {
	return f(ctx, params, bctx)
}

// Registry maps source identifiers to adapters. Registration happens at
// composition time; lookups happen on every resolution, so reads take the
// shared lock only.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty source adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Register binds an adapter to a source identifier. Registering an
// identifier twice is an error: two adapters silently fighting over one
// source id is a composition bug, not a configuration choice.
func (r *Registry) Register(id string, adapter Adapter) error {
	if id == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "source id validation")
	}
	if adapter == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "adapter validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[id]; exists {
		msg := fmt.Errorf("source %q is already registered", id)
		return errors.WrapInvalid(msg, "Registry", "Register", "duplicate source check")
	}

	r.adapters[id] = adapter
	return nil
}

// Lookup returns the adapter for a source identifier.
func (r *Registry) Lookup(id string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, exists := r.adapters[id]
	return adapter, exists
}

// IDs returns all registered source identifiers in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}
