// Package transform - Builtin transform catalog
package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/c360/canvaskit/pkg/timestamp"
)

// truncateLimit is the maximum rune count transformTruncate keeps before
// appending an ellipsis.
const truncateLimit = 50

// transformCurrency renders a numeric value as a dollar amount, abbreviating
// millions to "$X.XM" and thousands to "$X.XK". Negative values are never
// abbreviated. Non-numeric input passes through unchanged.
func transformCurrency(value any) any {
	v, ok := toFloat64(value)
	if !ok {
		return value
	}

	switch {
	case v >= 1e6:
		return fmt.Sprintf("$%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("$%.1fK", v/1e3)
	default:
		return fmt.Sprintf("$%.2f", v)
	}
}

// transformPercentage renders a numeric value as a percent string. Inputs in
// [0,1] are treated as fractions and scaled by 100; anything outside that
// range is treated as an already-percent value and formatted as-is. The two
// readings collide at the boundary: 1 means 100% while 1.5 means 1.5%.
func transformPercentage(value any) any {
	v, ok := toFloat64(value)
	if !ok {
		return value
	}

	if v >= 0 && v <= 1 {
		v *= 100
	}
	return fmt.Sprintf("%g%%", v)
}

// transformNumber renders a numeric value with comma thousands separators,
// preserving any fractional digits.
func transformNumber(value any) any {
	v, ok := toFloat64(value)
	if !ok {
		return value
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return value
	}

	return groupThousands(strconv.FormatFloat(v, 'f', -1, 64))
}

// transformRound truncates a numeric value to two decimal places. This is
// truncation toward zero, not rounding: 2.999 becomes 2.99.
func transformRound(value any) any {
	v, ok := toFloat64(value)
	if !ok {
		return value
	}

	return math.Trunc(v*100) / 100
}

// transformDate renders a timestamp as "Jan 2, 2006". Accepts anything
// timestamp.Parse understands (epoch millis, epoch seconds, RFC3339 strings,
// time.Time); unparseable input passes through unchanged.
func transformDate(value any) any {
	ms := timestamp.Parse(value)
	if ms == 0 {
		return value
	}
	return timestamp.FormatDate(ms)
}

// transformRelativeTime renders a timestamp as a coarse human offset from
// now ("just now", "5m ago", "3h ago", "2d ago"). Unparseable input passes
// through unchanged.
func transformRelativeTime(value any) any {
	ms := timestamp.Parse(value)
	if ms == 0 {
		return value
	}
	return timestamp.FormatRelative(ms)
}

func transformUppercase(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	return strings.ToUpper(s)
}

func transformLowercase(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	return strings.ToLower(s)
}

// transformCapitalize upper-cases the first rune and leaves the rest of the
// string untouched.
func transformCapitalize(value any) any {
	s, ok := value.(string)
	if !ok || s == "" {
		return value
	}

	first, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(first)) + s[size:]
}

// transformTruncate caps a string at truncateLimit runes and appends "...".
// Strings at or under the limit are returned unchanged.
func transformTruncate(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}

	runes := []rune(s)
	if len(runes) <= truncateLimit {
		return s
	}
	return string(runes[:truncateLimit]) + "..."
}

// transformSum adds the numeric elements of an array; non-numeric elements
// are skipped and an empty array sums to 0. Non-array input passes through.
func transformSum(value any) any {
	arr, ok := value.([]any)
	if !ok {
		return value
	}

	sum, _ := sumNumeric(arr)
	return sum
}

// transformAverage returns the mean of the numeric elements of an array, or
// nil when the array holds none. Non-array input passes through.
func transformAverage(value any) any {
	arr, ok := value.([]any)
	if !ok {
		return value
	}

	sum, count := sumNumeric(arr)
	if count == 0 {
		return nil
	}
	return sum / float64(count)
}

// transformMax returns the largest numeric element of an array, or nil when
// the array holds none. Non-array input passes through.
func transformMax(value any) any {
	arr, ok := value.([]any)
	if !ok {
		return value
	}

	best, found := pickNumeric(arr, func(candidate, best float64) bool { return candidate > best })
	if !found {
		return nil
	}
	return best
}

// transformMin returns the smallest numeric element of an array, or nil when
// the array holds none. Non-array input passes through.
func transformMin(value any) any {
	arr, ok := value.([]any)
	if !ok {
		return value
	}

	best, found := pickNumeric(arr, func(candidate, best float64) bool { return candidate < best })
	if !found {
		return nil
	}
	return best
}

// transformArrayLength returns the element count of an array. Unlike the
// path grammar's length reducer it does not count string runes; non-array
// input, strings included, passes through unchanged.
func transformArrayLength(value any) any {
	arr, ok := value.([]any)
	if !ok {
		return value
	}
	return len(arr)
}

// groupThousands inserts commas into the integer part of a plain decimal
// string produced by strconv.FormatFloat.
func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}

	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}

	out := sign + b.String()
	if hasFrac {
		out += "." + frac
	}
	return out
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

// toFloat64 converts any Go numeric type to float64 for formatting and
// reduction. Strings and booleans are not coerced.
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
