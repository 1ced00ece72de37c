// Package tradeday anchors the daily trading state to calendar days in the
// portfolio's home timezone. Crypto trades around the clock, so the day
// boundary is purely a reporting and risk-reset convention.
package tradeday

import "time"

// DefaultTimezone matches the exchange's home market.
const DefaultTimezone = "America/Mexico_City"

// LoadLocation resolves a timezone name, falling back to UTC on failure.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Key returns the day key for t in loc, formatted YYYY-MM-DD. Daily state
// rows and risk counters are scoped by this key.
func Key(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// Today returns the current day key in loc.
func Today(loc *time.Location) string {
	return Key(time.Now(), loc)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return Key(a, loc) == Key(b, loc)
}

// NextRollover returns the first instant of the next calendar day in loc.
// The daily summary fires at this boundary.
func NextRollover(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}
