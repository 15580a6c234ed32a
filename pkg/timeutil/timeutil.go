// Package timeutil provides date arithmetic helpers used by the plan
// progress computations. All engine timestamps are UTC.
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// WholeDays returns the number of whole 24h periods in d, negative for
// negative durations.
func WholeDays(d time.Duration) int {
	return int(d.Hours() / 24)
}

// DaysBetween returns the number of whole days from a to b,
// negative when b is before a.
func DaysBetween(a, b time.Time) int {
	return WholeDays(b.Sub(a))
}

// ClampPercent clamps a percentage to the [0, 100] range.
func ClampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// StartOfDay returns the start of the day (00:00:00) in UTC.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
