// Package static serves a fixed in-memory snapshot as a binding source.
// It backs demo canvases and tests, and stands in for real sources while
// a layout is developed.
package static

import (
	"context"
	"sync"

	"github.com/c360/canvaskit/binding"
)

// SourceID is the registry identifier used by Register.
const SourceID = "static"

// Source holds one data snapshot. Every Fetch returns the current
// snapshot regardless of params; path expressions select into it.
// Callers must not mutate the returned value.
type Source struct {
	mu   sync.RWMutex
	data any
}

// New creates a static source around the given snapshot.
func New(data any) *Source {
	return &Source{data: data}
}

// Fetch returns the current snapshot.
func (s *Source) Fetch(ctx context.Context, _ map[string]any, _ binding.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data, nil
}

// Update replaces the snapshot. Resolutions started before Update
// complete against the old snapshot.
func (s *Source) Update(data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
}

// Register adds the source to a registry under SourceID.
func (s *Source) Register(reg *binding.Registry) error {
	return s.RegisterAs(reg, SourceID)
}

// RegisterAs adds the source under a custom identifier, letting a demo
// snapshot impersonate a named production source.
func (s *Source) RegisterAs(reg *binding.Registry, id string) error {
	return reg.Register(id, s)
}
