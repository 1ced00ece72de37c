package tradeday

import (
	"testing"
	"time"
)

func TestKey_TimezoneBoundary(t *testing.T) {
	loc := LoadLocation("America/Mexico_City")

	// 2026-03-15 03:00 UTC is still 2026-03-14 in Mexico City (UTC-6).
	utc := time.Date(2026, 3, 15, 3, 0, 0, 0, time.UTC)
	if got := Key(utc, loc); got != "2026-03-14" {
		t.Fatalf("Key = %q, want 2026-03-14", got)
	}
	if got := Key(utc, time.UTC); got != "2026-03-15" {
		t.Fatalf("Key UTC = %q, want 2026-03-15", got)
	}
}

func TestSameDay(t *testing.T) {
	loc := LoadLocation("America/Mexico_City")
	a := time.Date(2026, 3, 15, 3, 0, 0, 0, time.UTC)  // 21:00 on the 14th local
	b := time.Date(2026, 3, 15, 5, 59, 0, 0, time.UTC) // 23:59 on the 14th local
	c := time.Date(2026, 3, 15, 6, 1, 0, 0, time.UTC)  // 00:01 on the 15th local

	if !SameDay(a, b, loc) {
		t.Fatal("expected a and b on same local day")
	}
	if SameDay(b, c, loc) {
		t.Fatal("expected b and c on different local days")
	}
}

func TestNextRollover(t *testing.T) {
	loc := LoadLocation("America/Mexico_City")
	now := time.Date(2026, 3, 14, 22, 30, 0, 0, loc)
	next := NextRollover(now, loc)

	want := time.Date(2026, 3, 15, 0, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Fatalf("NextRollover = %v, want %v", next, want)
	}
	if !next.After(now) {
		t.Fatal("rollover must be in the future")
	}
}

func TestLoadLocation_Fallback(t *testing.T) {
	if loc := LoadLocation("Not/AZone"); loc != time.UTC {
		t.Fatalf("bad zone should fall back to UTC, got %v", loc)
	}
	if loc := LoadLocation(""); loc.String() != DefaultTimezone {
		t.Fatalf("empty name should use default, got %v", loc)
	}
}
