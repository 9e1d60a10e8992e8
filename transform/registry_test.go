package transform

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/c360/canvaskit/errors"
)

func TestNewRegistryBuiltinCatalog(t *testing.T) {
	reg := NewRegistry()

	builtins := []string{
		TransformCurrency,
		TransformPercentage,
		TransformNumber,
		TransformDate,
		TransformRelativeTime,
		TransformRound,
		TransformUppercase,
		TransformLowercase,
		TransformCapitalize,
		TransformTruncate,
		TransformSum,
		TransformAverage,
		TransformMax,
		TransformMin,
		TransformArrayLength,
	}

	for _, name := range builtins {
		assert.True(t, reg.Has(name), "builtin %q should be registered", name)
	}
	assert.Len(t, reg.Names(), len(builtins))
	assert.True(t, sort.StringsAreSorted(reg.Names()))
}

func TestRegistryApplyUnknownTransform(t *testing.T) {
	reg := NewRegistry()

	value, err := reg.Apply(42, "sparkle")

	require.Error(t, err)
	assert.Nil(t, value)
	assert.ErrorIs(t, err, cerrors.ErrUnknownTransform)
	assert.True(t, cerrors.IsInvalid(err))
	assert.Contains(t, err.Error(), "sparkle")
}

func TestRegistryRegister(t *testing.T) {
	t.Run("custom_transform", func(t *testing.T) {
		reg := NewRegistry()

		err := reg.Register("double", func(v any) any {
			if n, ok := toFloat64(v); ok {
				return n * 2
			}
			return v
		})
		require.NoError(t, err)

		got, err := reg.Apply(5, "double")
		require.NoError(t, err)
		assert.Equal(t, 10.0, got)
	})

	t.Run("empty_name_rejected", func(t *testing.T) {
		reg := NewRegistry()

		err := reg.Register("", func(v any) any { return v })

		require.Error(t, err)
		assert.ErrorIs(t, err, cerrors.ErrInvalidConfig)
		assert.True(t, cerrors.IsInvalid(err))
	})

	t.Run("nil_func_rejected", func(t *testing.T) {
		reg := NewRegistry()

		err := reg.Register("noop", nil)

		require.Error(t, err)
		assert.ErrorIs(t, err, cerrors.ErrInvalidConfig)
	})
}

func TestRegistryRegisterLastWins(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register("double", func(v any) any {
		n, _ := toFloat64(v)
		return n * 2
	}))
	require.NoError(t, reg.Register("double", func(v any) any {
		n, _ := toFloat64(v)
		return n * 3
	}))

	got, err := reg.Apply(5, "double")
	require.NoError(t, err)
	assert.Equal(t, 15.0, got)

	// Builtins can be replaced the same way.
	require.NoError(t, reg.Register(TransformUppercase, func(v any) any {
		s, ok := v.(string)
		if !ok {
			return v
		}
		return s + "!!!"
	}))

	got, err = reg.Apply("hello", TransformUppercase)
	require.NoError(t, err)
	assert.Equal(t, "hello!!!", got)
}

func TestRegistryInstancesAreIndependent(t *testing.T) {
	first := NewRegistry()
	second := NewRegistry()

	require.NoError(t, first.Register("custom", func(v any) any { return "custom" }))

	assert.True(t, first.Has("custom"))
	assert.False(t, second.Has("custom"))

	// Overriding a builtin in one registry leaves the other's intact.
	require.NoError(t, first.Register(TransformUppercase, func(v any) any { return v }))
	got, err := second.Apply("hi", TransformUppercase)
	require.NoError(t, err)
	assert.Equal(t, "HI", got)
}

func TestRegistryThreadSafety(t *testing.T) {
	reg := NewRegistry()

	const goroutines = 10
	const iterations = 100

	var wg sync.WaitGroup
	wg.Add(goroutines * 2)

	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			name := fmt.Sprintf("custom-%d", id)
			for j := 0; j < iterations; j++ {
				_ = reg.Register(name, func(v any) any { return v })
			}
		}(i)

		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				_, err := reg.Apply(1234.5, TransformCurrency)
				assert.NoError(t, err)
				_ = reg.Has(TransformSum)
			}
		}()
	}

	wg.Wait()

	for i := 0; i < goroutines; i++ {
		assert.True(t, reg.Has(fmt.Sprintf("custom-%d", i)))
	}
}
