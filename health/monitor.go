package health

import (
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

// Monitor tracks the latest status of named components. All methods are
// safe for concurrent use.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{statuses: make(map[string]Status)}
}

// Update records the status for a component. The component name on the
// status is overwritten with the given name, and a zero timestamp is
// filled with the current time.
func (m *Monitor) Update(name string, status Status) {
	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[name] = status
}

// UpdateHealthy records a component as healthy.
func (m *Monitor) UpdateHealthy(name, message string) {
	m.Update(name, NewHealthy(name, message))
}

// UpdateDegraded records a component as degraded.
func (m *Monitor) UpdateDegraded(name, message string) {
	m.Update(name, NewDegraded(name, message))
}

// UpdateUnhealthy records a component as unhealthy.
func (m *Monitor) UpdateUnhealthy(name, message string) {
	m.Update(name, NewUnhealthy(name, message))
}

// Get returns the latest status for a component.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.statuses[name]
	return status, ok
}

// GetAll returns a copy of every tracked status keyed by component name.
func (m *Monitor) GetAll() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.statuses)
}

// Remove stops tracking a component.
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, name)
}

// ListComponents returns the tracked component names, sorted.
func (m *Monitor) ListComponents() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.statuses))
}

// Count returns the number of tracked components.
func (m *Monitor) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.statuses)
}

// Clear drops every tracked component.
func (m *Monitor) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.statuses)
}

// AggregateHealth rolls every tracked status into one system status.
// Sub-statuses are ordered by component name so repeated calls over the
// same state produce identical output.
func (m *Monitor) AggregateHealth(systemName string) Status {
	m.mu.RLock()
	subs := slices.Collect(maps.Values(m.statuses))
	m.mu.RUnlock()

	slices.SortFunc(subs, func(a, b Status) int {
		return strings.Compare(a.Component, b.Component)
	})
	return Aggregate(systemName, subs)
}
