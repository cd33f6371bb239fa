package model

import (
	"fmt"
	"strings"
	"time"
)

// Timestamp layouts accepted in date-bearing fields. Recurrence output
// must mirror the shape of its input, so parsing reports which layout
// matched and rendering takes the layout back.
const (
	LayoutDateOnly  = "2006-01-02"
	LayoutNaive     = "2006-01-02T15:04"
	LayoutNaiveSecs = "2006-01-02T15:04:05"
)

// ParseStamp parses a date-bearing field value and returns the parsed
// time together with the layout that matched. Zoned values report
// time.RFC3339. Naive values are interpreted in the local timezone.
func ParseStamp(value string) (time.Time, string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, "", fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, time.RFC3339, nil
	}
	for _, layout := range []string{LayoutNaiveSecs, LayoutNaive, LayoutDateOnly} {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return t, layout, nil
		}
	}
	return time.Time{}, "", fmt.Errorf("unrecognized timestamp %q", v)
}

// FormatStamp renders t in the given layout. Zoned layouts render in
// UTC; every other layout renders local wall-clock time, preserving
// the original time-of-day for naive values.
func FormatStamp(t time.Time, layout string) string {
	if layout == time.RFC3339 {
		return t.UTC().Format(time.RFC3339)
	}
	return t.Format(layout)
}

// CompareStamps reports -1, 0 or 1 ordering two date-bearing values.
// Date-only values compare at local midnight. An unparseable value
// returns an error; callers treat that as "no comparison possible".
func CompareStamps(a, b string) (int, error) {
	ta, _, err := ParseStamp(a)
	if err != nil {
		return 0, err
	}
	tb, _, err := ParseStamp(b)
	if err != nil {
		return 0, err
	}
	switch {
	case ta.Before(tb):
		return -1, nil
	case ta.After(tb):
		return 1, nil
	}
	return 0, nil
}
