package util

import (
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime tries RFC3339, RFC3339Nano, common date layouts, and unix seconds.
// Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// UnixSeconds converts a numeric epoch that may be in milliseconds to seconds.
func UnixSeconds(v int64) int64 {
	if v > 1e11 || v < -1e11 {
		return v / 1000
	}
	return v
}

// AlignToInterval truncates t to a whole multiple of the interval in minutes.
func AlignToInterval(t time.Time, minutes int) time.Time {
	if minutes <= 0 {
		minutes = 1
	}
	return t.Truncate(time.Duration(minutes) * time.Minute)
}
