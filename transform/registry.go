// Package transform - Named pure value transforms applied after path evaluation
package transform

import (
	"fmt"
	"sort"
	"sync"

	"github.com/c360/canvaskit/errors"
)

// Func is a single value transform. Implementations must be pure: no I/O,
// no mutation of the input, same output for the same input. A transform that
// does not recognize its input type returns the value unchanged.
type Func func(value any) any

// Builtin transform names. These are the identifiers bindings reference in
// their transform field.
const (
	TransformCurrency     = "currency"
	TransformPercentage   = "percentage"
	TransformNumber       = "number"
	TransformDate         = "date"
	TransformRelativeTime = "relative_time"
	TransformRound        = "round"
	TransformUppercase    = "uppercase"
	TransformLowercase    = "lowercase"
	TransformCapitalize   = "capitalize"
	TransformTruncate     = "truncate"
	TransformSum          = "sum"
	TransformAverage      = "average"
	TransformMax          = "max"
	TransformMin          = "min"
	TransformArrayLength  = "array_length"
)

// Registry holds named transforms and applies them to resolved values.
// Each resolver owns its own instance, so callers can register custom
// transforms without affecting unrelated resolvers.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry creates a registry pre-populated with the builtin catalog.
func NewRegistry() *Registry {
	registry := &Registry{
		funcs: make(map[string]Func),
	}

	// Register numeric formatters
	registry.funcs[TransformCurrency] = transformCurrency
	registry.funcs[TransformPercentage] = transformPercentage
	registry.funcs[TransformNumber] = transformNumber
	registry.funcs[TransformRound] = transformRound

	// Register time formatters
	registry.funcs[TransformDate] = transformDate
	registry.funcs[TransformRelativeTime] = transformRelativeTime

	// Register string transforms
	registry.funcs[TransformUppercase] = transformUppercase
	registry.funcs[TransformLowercase] = transformLowercase
	registry.funcs[TransformCapitalize] = transformCapitalize
	registry.funcs[TransformTruncate] = transformTruncate

	// Register array reducers
	registry.funcs[TransformSum] = transformSum
	registry.funcs[TransformAverage] = transformAverage
	registry.funcs[TransformMax] = transformMax
	registry.funcs[TransformMin] = transformMin
	registry.funcs[TransformArrayLength] = transformArrayLength

	return registry
}

// Register adds or replaces a named transform. Registration is last-wins:
// registering an existing name, including a builtin, replaces the previous
// function. Values already resolved and cached are unaffected.
func (r *Registry) Register(name string, fn Func) error {
	if name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "transform name validation")
	}
	if fn == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "transform function validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.funcs[name] = fn
	return nil
}

// Apply runs the named transform against value. An unknown name is a
// configuration error, not a silent pass-through.
func (r *Registry) Apply(value any, name string) (any, error) {
	r.mu.RLock()
	fn, exists := r.funcs[name]
	r.mu.RUnlock()

	if !exists {
		msg := fmt.Errorf("%w: %q", errors.ErrUnknownTransform, name)
		return nil, errors.WrapInvalid(msg, "Registry", "Apply", "transform lookup")
	}

	return fn(value), nil
}

// Has reports whether a transform is registered under name. The binding
// resolver uses this to reject unknown transforms before any adapter I/O.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.funcs[name]
	return exists
}

// Names returns all registered transform names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
