// Package pathexpr - Parsing of path expressions into a segment AST
package pathexpr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/c360/canvaskit/errors"
)

const filterPrefix = "filter("

// Parse compiles a path expression into a Path.
//
// Grammar:
//
//	path     := segment ("." segment)*
//	segment  := filter | ident index*
//	filter   := "filter" "(" ident "=" literal ")"
//	index    := "[" digits "]"
//
// Empty paths, empty segments ("a..b"), and malformed filters or indexes
// are deterministic parse errors. A path that parses never fails at
// evaluation time.
func Parse(path string) (*Path, error) {
	if path == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidPath, "pathexpr", "Parse", "empty path rejection")
	}

	parts, err := splitSegments(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "pathexpr", "Parse", "tokenization")
	}

	segments := make([]segment, 0, len(parts))
	for i, part := range parts {
		if part == "" {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: empty segment at position %d in %q", errors.ErrInvalidPath, i, path),
				"pathexpr", "Parse", "segment parse")
		}

		seg, err := parseSegment(part)
		if err != nil {
			return nil, errors.WrapInvalid(err, "pathexpr", "Parse", "segment parse")
		}
		segments = append(segments, seg)
	}

	return &Path{raw: path, segments: segments}, nil
}

// splitSegments splits a path on "." separators, ignoring dots inside
// filter parentheses so literals like filter(version=1.2) stay intact.
func splitSegments(path string) ([]string, error) {
	var parts []string
	var current strings.Builder
	depth := 0

	for _, r := range path {
		switch r {
		case '(':
			depth++
			current.WriteRune(r)
		case ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: unbalanced parentheses in %q", errors.ErrInvalidPath, path)
			}
			current.WriteRune(r)
		case '.':
			if depth == 0 {
				parts = append(parts, current.String())
				current.Reset()
			} else {
				current.WriteRune(r)
			}
		default:
			current.WriteRune(r)
		}
	}

	if depth != 0 {
		return nil, fmt.Errorf("%w: unbalanced parentheses in %q", errors.ErrInvalidPath, path)
	}

	parts = append(parts, current.String())
	return parts, nil
}

func parseSegment(text string) (segment, error) {
	if strings.HasPrefix(text, filterPrefix) {
		return parseFilter(text)
	}
	return parseField(text)
}

// parseFilter parses "filter(field=value)". The value literal runs to the
// closing parenthesis and is trimmed; it may be empty.
func parseFilter(text string) (segment, error) {
	if !strings.HasSuffix(text, ")") {
		return segment{}, fmt.Errorf("%w: malformed filter %q", errors.ErrInvalidPath, text)
	}

	inner := text[len(filterPrefix) : len(text)-1]
	key, value, found := strings.Cut(inner, "=")
	if !found {
		return segment{}, fmt.Errorf("%w: filter %q missing '='", errors.ErrInvalidPath, text)
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return segment{}, fmt.Errorf("%w: filter %q has empty field name", errors.ErrInvalidPath, text)
	}

	return segment{
		kind:        segmentFilter,
		filterKey:   key,
		filterValue: strings.TrimSpace(value),
	}, nil
}

// parseField parses "ident" optionally followed by one or more "[n]"
// index suffixes, like "items[0]" or "grid[1][2]".
func parseField(text string) (segment, error) {
	bracket := strings.IndexByte(text, '[')
	if bracket == -1 {
		if strings.ContainsAny(text, "()]") {
			return segment{}, fmt.Errorf("%w: unexpected character in segment %q", errors.ErrInvalidPath, text)
		}
		return segment{kind: segmentField, field: text}, nil
	}
	if bracket == 0 {
		return segment{}, fmt.Errorf("%w: index without field name in %q", errors.ErrInvalidPath, text)
	}

	name := text[:bracket]
	if strings.ContainsAny(name, "()]") {
		return segment{}, fmt.Errorf("%w: unexpected character in segment %q", errors.ErrInvalidPath, text)
	}

	var indexes []int
	rest := text[bracket:]
	for rest != "" {
		if rest[0] != '[' {
			return segment{}, fmt.Errorf("%w: unexpected text after index in %q", errors.ErrInvalidPath, text)
		}
		end := strings.IndexByte(rest, ']')
		if end == -1 {
			return segment{}, fmt.Errorf("%w: unterminated index in %q", errors.ErrInvalidPath, text)
		}

		idx, err := strconv.Atoi(rest[1:end])
		if err != nil {
			return segment{}, fmt.Errorf("%w: non-numeric index %q in %q", errors.ErrInvalidPath, rest[1:end], text)
		}

		indexes = append(indexes, idx)
		rest = rest[end+1:]
	}

	return segment{kind: segmentField, field: name, indexes: indexes}, nil
}
