package util

import (
	"fmt"
	"strconv"
	"time"
)

// DayLayout is the calendar date format used by configuration, CLI flags and query strings.
const DayLayout = "2006-01-02"

// ParseDay accepts YYYY-MM-DD, RFC3339 or unix seconds and truncates the result to a UTC day.
// An empty string yields the zero time.
func ParseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(DayLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return truncateDay(t), nil
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return truncateDay(time.Unix(ts, 0)), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
}

// ParseDayDefault parses a day or returns def if s is empty or invalid.
func ParseDayDefault(s string, def time.Time) time.Time {
	if t, err := ParseDay(s); err == nil && !t.IsZero() {
		return t
	}
	return def
}

// FormatDay renders t as YYYY-MM-DD, or "" for the zero time.
func FormatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(DayLayout)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
