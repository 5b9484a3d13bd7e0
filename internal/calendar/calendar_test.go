package calendar

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) Date {
	return Date{Year: y, Month: m, Day: d}
}

func testCalendar() *Calendar {
	return New(map[int][]Date{
		2024: {
			date(2024, time.December, 25),
			date(2024, time.July, 4),
			date(2024, time.January, 1),
			date(2024, time.January, 1), // duplicate, should collapse
		},
		2025: {
			date(2025, time.January, 1),
		},
	})
}

func TestHolidaysForYear(t *testing.T) {
	c := testCalendar()
	got := c.HolidaysForYear(2024)
	if len(got) != 3 {
		t.Fatalf("expected 3 unique holidays, got %d", len(got))
	}
	// ordered ascending
	if got[0] != date(2024, time.January, 1) || got[2] != date(2024, time.December, 25) {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestHolidaysForUnknownYear(t *testing.T) {
	c := testCalendar()
	if got := c.HolidaysForYear(1999); len(got) != 0 {
		t.Fatalf("expected empty slice for unknown year, got %v", got)
	}
}

func TestHolidaysInRange(t *testing.T) {
	c := testCalendar()
	got := c.HolidaysInRange(date(2024, time.December, 23), date(2025, time.January, 2))
	if len(got) != 2 {
		t.Fatalf("expected Christmas and New Year, got %v", got)
	}
	if got[0] != date(2024, time.December, 25) || got[1] != date(2025, time.January, 1) {
		t.Fatalf("unexpected dates: %v", got)
	}
}

func TestHolidaysInRangeInclusiveBounds(t *testing.T) {
	c := testCalendar()
	got := c.HolidaysInRange(date(2024, time.July, 4), date(2024, time.July, 4))
	if len(got) != 1 {
		t.Fatalf("range bounds must be inclusive, got %v", got)
	}
}

func TestHolidaysInRangeReversed(t *testing.T) {
	c := testCalendar()
	if got := c.HolidaysInRange(date(2025, time.January, 2), date(2024, time.December, 23)); got != nil {
		t.Fatalf("expected nil for reversed range, got %v", got)
	}
}

func TestIsHoliday(t *testing.T) {
	c := testCalendar()
	if !c.IsHoliday(date(2024, time.December, 25)) {
		t.Fatalf("expected Christmas to be a holiday")
	}
	if c.IsHoliday(date(2024, time.December, 24)) {
		t.Fatalf("Christmas Eve is not in the table")
	}
}

func TestDateOfIgnoresTimeOfDay(t *testing.T) {
	late := time.Date(2024, time.December, 25, 23, 59, 59, 0, time.UTC)
	if DateOf(late) != date(2024, time.December, 25) {
		t.Fatalf("DateOf must strip time-of-day")
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-07-04")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d != date(2024, time.July, 4) {
		t.Fatalf("unexpected date %v", d)
	}
	if _, err := ParseDate("07/04/2024"); err == nil {
		t.Fatalf("expected error for non-ISO date")
	}
}

func TestYears(t *testing.T) {
	c := testCalendar()
	years := c.Years()
	if len(years) != 2 || years[0] != 2024 || years[1] != 2025 {
		t.Fatalf("unexpected years %v", years)
	}
}
