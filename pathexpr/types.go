// Package pathexpr - Dot path expressions over decoded JSON values
package pathexpr

// Path is a parsed path expression ready for repeated evaluation.
type Path struct {
	raw      string
	segments []segment
}

// String returns the original expression text.
func (p *Path) String() string {
	return p.raw
}

// segmentKind discriminates the AST segment variants.
type segmentKind int

const (
	// segmentField is property access, optionally followed by [n] indexes
	segmentField segmentKind = iota
	// segmentFilter is filter(field=value) over an array
	segmentFilter
)

// segment is one dot-separated step of a path expression.
type segment struct {
	kind segmentKind

	// segmentField
	field   string
	indexes []int

	// segmentFilter
	filterKey   string
	filterValue string
}

// Reducer names recognized as field segments when the current value is an
// array. "length" is also recognized on strings.
const (
	reducerLength  = "length"
	reducerSum     = "sum"
	reducerAverage = "average"
	reducerMax     = "max"
	reducerMin     = "min"
)
