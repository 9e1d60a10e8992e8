// Package timestamp normalizes time handling around int64 Unix
// milliseconds in UTC. Realtime message envelopes carry millisecond
// timestamps on the wire, and binding values decoded from JSON arrive
// as float64 epochs or RFC3339 strings; Parse folds all of those
// shapes into the canonical form.
//
// Zero means unset: every function treats a 0 timestamp as unknown
// and returns its zero result rather than the epoch.
package timestamp

import (
	"fmt"
	"strconv"
	"time"
)

// epochMsFloor splits bare numbers into seconds versus milliseconds.
// Values above 1e12 read as milliseconds (September 2001 onward);
// values at or below it read as seconds.
const epochMsFloor = int64(1e12)

// Now returns the current time in Unix milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}

// ToUnixMs converts t to Unix milliseconds, mapping the zero time to 0.
func ToUnixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromUnixMs converts Unix milliseconds to a time.Time, mapping 0 to
// the zero time.
func FromUnixMs(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Format renders a timestamp as RFC3339 in UTC, or "" when unset.
func Format(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// FormatDate renders a short date such as "Jan 15, 2023", or "" when
// unset.
func FormatDate(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format("Jan 2, 2006")
}

// FormatRelative renders a coarse age: "just now" under a minute, then
// "5m ago", "3h ago", "2d ago". Future timestamps (clock skew) read as
// "just now"; unset reads as "".
func FormatRelative(ms int64) string {
	if ms == 0 {
		return ""
	}

	age := time.Since(time.UnixMilli(ms))
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(age.Hours()/24))
}

// Parse folds the timestamp shapes seen in decoded JSON and wire
// messages into Unix milliseconds: integer and float epochs (seconds
// or milliseconds, split at 1e12), RFC3339 strings, numeric strings,
// time.Time, and *time.Time. Nil and unparseable input return 0.
func Parse(input any) int64 {
	switch v := input.(type) {
	case nil:
		return 0
	case int64:
		return fromEpoch(v)
	case int:
		return fromEpoch(int64(v))
	case int32:
		return fromEpoch(int64(v))
	case float64:
		if v > float64(epochMsFloor) {
			return int64(v)
		}
		return int64(v * 1000)
	case string:
		return parseString(v)
	case time.Time:
		return ToUnixMs(v)
	case *time.Time:
		if v == nil {
			return 0
		}
		return ToUnixMs(*v)
	}
	return 0
}

func fromEpoch(n int64) int64 {
	if n > epochMsFloor {
		return n
	}
	return n * 1000
}

func parseString(s string) int64 {
	if s == "" {
		return 0
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return ToUnixMs(t)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromEpoch(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Parse(f)
	}
	return 0
}

// IsZero reports whether the timestamp is unset.
func IsZero(ms int64) bool {
	return ms == 0
}

// Since returns the elapsed time since the timestamp, or 0 when unset.
func Since(ms int64) time.Duration {
	if ms == 0 {
		return 0
	}
	return time.Since(time.UnixMilli(ms))
}
