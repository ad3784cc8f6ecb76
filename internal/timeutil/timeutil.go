// Package timeutil handles the date + "HH:MM" clock-string split used
// across the booking domain. Dates are stored as midnight values and
// times of day as strings; the helpers here combine and compare them
// without drifting through time zones.
package timeutil

import (
	"fmt"
	"time"
)

// ParseClock parses a "HH:MM" clock string.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// FormatClock renders an instant's time of day as "HH:MM".
func FormatClock(t time.Time) string {
	return t.Format("15:04")
}

// ParseDate parses a "YYYY-MM-DD" date in the given location.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// CombineDateTime builds an instant from a date and a "HH:MM" clock
// string in the given location.
func CombineDateTime(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	hh, mm, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hh, mm, 0, 0, loc), nil
}

// Overlaps reports whether two half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Back-to-back intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// SameDay reports whether two instants fall on the same calendar day in
// the given location.
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// NextFullHour truncates up to the next whole hour. An instant already
// on the hour is returned unchanged.
func NextFullHour(t time.Time) time.Time {
	truncated := t.Truncate(time.Hour)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(time.Hour)
}

// Midnight returns the start of the instant's day in the given location.
func Midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
