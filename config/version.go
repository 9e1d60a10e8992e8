package config

import (
	"fmt"
	"strconv"
	"strings"
)

// CompareVersions compares two semantic version strings. It returns -1
// when a is older than b, 0 when equal, and 1 when newer. Hosts use it
// to decide whether a stored config document supersedes a local one.
func CompareVersions(a, b string) (int, error) {
	av, err := parseSemVer(a)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", a, err)
	}
	bv, err := parseSemVer(b)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", b, err)
	}

	for i := range av {
		if av[i] != bv[i] {
			if av[i] > bv[i] {
				return 1, nil
			}
			return -1, nil
		}
	}
	return 0, nil
}

// parseSemVer parses "major.minor.patch", tolerating a leading "v".
func parseSemVer(version string) ([3]int, error) {
	var parsed [3]int
	if version == "" {
		return parsed, fmt.Errorf("version cannot be empty")
	}

	parts := strings.Split(strings.TrimPrefix(version, "v"), ".")
	if len(parts) != 3 {
		return parsed, fmt.Errorf("want major.minor.patch, got %q", version)
	}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return parsed, fmt.Errorf("invalid component %q: %w", part, err)
		}
		if n < 0 {
			return parsed, fmt.Errorf("negative component %q", part)
		}
		parsed[i] = n
	}
	return parsed, nil
}
