// Package pathexpr - Path expression evaluation
package pathexpr

import (
	"fmt"
	"unicode/utf8"
)

// Evaluate parses path and evaluates it against data in one call, using the
// compiled path cache. Parse errors are returned as-is; a value missing from
// data is (nil, nil), never an error.
func Evaluate(data any, path string) (any, error) {
	p, err := compilePath(path)
	if err != nil {
		return nil, err
	}
	return p.Eval(data), nil
}

// Eval walks data along the path. A missing intermediate at any step
// short-circuits to nil (undefined); evaluation never returns an error
// and never panics.
func (p *Path) Eval(data any) any {
	current := data
	for _, seg := range p.segments {
		if current == nil {
			return nil
		}

		switch seg.kind {
		case segmentFilter:
			current = evalFilter(current, seg.filterKey, seg.filterValue)
		default:
			current = evalField(current, seg.field)
			for _, idx := range seg.indexes {
				current = evalIndex(current, idx)
			}
		}
	}
	return current
}

// evalFilter keeps array elements whose field prints equal to the wanted
// literal. Comparison is string equality over the %v rendering, not numeric
// coercion, so filter(id=7) matches 7 but not 7.0.
func evalFilter(current any, key, want string) any {
	arr, ok := current.([]any)
	if !ok {
		return nil
	}

	kept := make([]any, 0, len(arr))
	for _, element := range arr {
		fields, ok := element.(map[string]any)
		if !ok {
			continue
		}
		value, ok := fields[key]
		if !ok {
			continue
		}
		if fmt.Sprintf("%v", value) == want {
			kept = append(kept, element)
		}
	}
	return kept
}

// evalField resolves a named step against the current value. Maps get
// property access; arrays recognize the terminal reducers; strings
// recognize length. Everything else is undefined.
func evalField(current any, name string) any {
	switch v := current.(type) {
	case map[string]any:
		return v[name]
	case []any:
		return reduceArray(v, name)
	case string:
		if name == reducerLength {
			return utf8.RuneCountInString(v)
		}
		return nil
	default:
		return nil
	}
}

func evalIndex(current any, idx int) any {
	arr, ok := current.([]any)
	if !ok {
		return nil
	}
	if idx < 0 || idx >= len(arr) {
		return nil
	}
	return arr[idx]
}

// reduceArray applies a terminal reducer to an array value. Non-numeric
// elements are skipped by the numeric reducers; average, max, and min of
// an array with no numeric elements are undefined. Unknown names are
// undefined since arrays have no named properties.
func reduceArray(arr []any, name string) any {
	switch name {
	case reducerLength:
		return len(arr)

	case reducerSum:
		sum, _ := sumNumeric(arr)
		return sum

	case reducerAverage:
		sum, count := sumNumeric(arr)
		if count == 0 {
			return nil
		}
		return sum / float64(count)

	case reducerMax:
		best, found := pickNumeric(arr, func(candidate, best float64) bool { return candidate > best })
		if !found {
			return nil
		}
		return best

	case reducerMin:
		best, found := pickNumeric(arr, func(candidate, best float64) bool { return candidate < best })
		if !found {
			return nil
		}
		return best

	default:
		return nil
	}
}

func sumNumeric(arr []any) (float64, int) {
	var sum float64
	count := 0
	for _, element := range arr {
		if n, ok := toFloat64(element); ok {
			sum += n
			count++
		}
	}
	return sum, count
}

func pickNumeric(arr []any, better func(candidate, best float64) bool) (float64, bool) {
	var best float64
	found := false
	for _, element := range arr {
		n, ok := toFloat64(element)
		if !ok {
			continue
		}
		if !found || better(n, best) {
			best = n
			found = true
		}
	}
	return best, found
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}
