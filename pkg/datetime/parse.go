// Package datetime provides date utility functions for promo windows and calendar days.
package datetime

import (
	"fmt"
	"strings"
	"time"

	"github.com/rpkwiecinski/giftcard-engine/pkg/constants"
)

const (
	// DateLayout is the format expected in catalogues and is also the output
	// date format.
	DateLayout = constants.DateLayout
)

// MustParseTime parses a date string using the given layout and panics on error.
// This is intended for use in tests where the date string is known to be valid.
func MustParseTime(layout, dateStr string) time.Time {
	t, err := time.Parse(layout, dateStr)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseDate accepts either a plain date or an RFC 3339 timestamp and returns
// the calendar day at UTC midnight.
func ParseDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("date cannot be empty")
	}
	if t, err := time.Parse(DateLayout, trimmed); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected %s or RFC3339", value, DateLayout)
	}
	return Day(t), nil
}

// Day truncates t to its calendar day in UTC, keeping the local date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar day.
func Today() time.Time {
	return Day(time.Now())
}

// Covers reports whether day lies inside the inclusive window [from, to].
func Covers(from, to, day time.Time) bool {
	return !day.Before(from) && !day.After(to)
}
