// Package timeutil provides UTC calendar utilities for the stats engine.
// Seasons are calendar months in UTC, so everything here operates on UTC
// month boundaries. No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// StartOfMonth returns the first instant of t's month in UTC.
func StartOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// NextMonth returns the first instant of the month after t's month in UTC.
func NextMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, 0)
}

// SameMonth reports whether a and b fall in the same UTC calendar month.
func SameMonth(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// MonthKey formats t's month as "YYYY-MM" in UTC.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// MonthName formats t's month as "January 2006" in UTC.
func MonthName(t time.Time) string {
	return t.UTC().Format("January 2006")
}

// UntilNextMonth returns the duration from t until the next UTC month
// boundary. Used to schedule the season rotation check.
func UntilNextMonth(t time.Time) time.Duration {
	return NextMonth(t).Sub(t.UTC())
}
