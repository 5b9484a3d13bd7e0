package turnaround

import (
	"testing"
	"time"

	"dailies/internal/calendar"
)

func usHolidays() *calendar.Calendar {
	return calendar.New(map[int][]calendar.Date{
		2024: {
			{Year: 2024, Month: time.January, Day: 1},
			{Year: 2024, Month: time.July, Day: 4},
			{Year: 2024, Month: time.December, Day: 25},
		},
		2025: {
			{Year: 2025, Month: time.January, Day: 1},
		},
	})
}

func at(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func TestCalendarDaysSameDay(t *testing.T) {
	start := at(2024, time.March, 4, 9)
	now := at(2024, time.March, 4, 23)
	if got := CalendarDays(start, now); got != 0 {
		t.Fatalf("same day should count 0, got %d", got)
	}
}

func TestCalendarDaysIgnoresTimeOfDay(t *testing.T) {
	// 23:59 on one day to 00:01 the next is still one whole day.
	start := time.Date(2024, time.March, 4, 23, 59, 0, 0, time.UTC)
	now := time.Date(2024, time.March, 5, 0, 1, 0, 0, time.UTC)
	if got := CalendarDays(start, now); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}

func TestCalendarDaysNegative(t *testing.T) {
	start := at(2024, time.March, 10, 12)
	now := at(2024, time.March, 4, 12)
	if got := CalendarDays(start, now); got != -6 {
		t.Fatalf("expected -6, got %d", got)
	}
}

func TestCalendarDaysAcrossDSTSpring(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	// US spring-forward 2024: March 10. Midnight-to-midnight is 23h.
	start := time.Date(2024, time.March, 9, 8, 0, 0, 0, loc)
	now := time.Date(2024, time.March, 11, 8, 0, 0, 0, loc)
	if got := CalendarDays(start, now); got != 2 {
		t.Fatalf("DST transition must not shift the count, got %d", got)
	}
}

func TestBusinessDaysWeekend(t *testing.T) {
	// Friday 2024-01-05 to Monday 2024-01-08: Fri counts, Sat/Sun skip.
	start := at(2024, time.January, 5, 10)
	now := at(2024, time.January, 8, 10)
	if got := CalendarDays(start, now); got != 3 {
		t.Fatalf("calendar days: expected 3, got %d", got)
	}
	if got := BusinessDays(start, now, usHolidays()); got != 1 {
		t.Fatalf("business days: expected 1, got %d", got)
	}
}

func TestBusinessDaysHolidaySpan(t *testing.T) {
	// Dec 23 2024 to Jan 2 2025 spans Christmas, New Year and two
	// weekends: Mon 23, Tue 24, Thu 26, Fri 27, Mon 30, Tue 31 count.
	start := at(2024, time.December, 23, 9)
	now := at(2025, time.January, 2, 9)
	if got := CalendarDays(start, now); got != 10 {
		t.Fatalf("calendar days: expected 10, got %d", got)
	}
	if got := BusinessDays(start, now, usHolidays()); got != 6 {
		t.Fatalf("business days: expected 6, got %d", got)
	}
}

func TestBusinessDaysNeverNegative(t *testing.T) {
	start := at(2024, time.March, 10, 12)
	now := at(2024, time.March, 4, 12)
	if got := BusinessDays(start, now, usHolidays()); got != 0 {
		t.Fatalf("expected 0 when now precedes start, got %d", got)
	}
}

func TestBusinessDaysExcludesCurrentDay(t *testing.T) {
	// Tuesday to Wednesday: only Tuesday counts.
	start := at(2024, time.January, 2, 9)
	now := at(2024, time.January, 3, 9)
	if got := BusinessDays(start, now, usHolidays()); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}

func TestBusinessDaysAtMostCalendarDays(t *testing.T) {
	cal := usHolidays()
	start := at(2024, time.June, 3, 8)
	for d := 0; d < 40; d++ {
		now := start.AddDate(0, 0, d)
		cd := CalendarDays(start, now)
		bd := BusinessDays(start, now, cal)
		if bd > cd {
			t.Fatalf("day %d: business %d exceeds calendar %d", d, bd, cd)
		}
	}
}

func TestBusinessDaysMonotonic(t *testing.T) {
	cal := usHolidays()
	start := at(2024, time.December, 16, 8)
	prev := 0
	for d := 1; d < 30; d++ {
		now := start.AddDate(0, 0, d)
		bd := BusinessDays(start, now, cal)
		if bd < prev {
			t.Fatalf("count decreased at day %d: %d -> %d", d, prev, bd)
		}
		prev = bd
	}
}

func TestClassifyBoundaries(t *testing.T) {
	th := DefaultThresholds // {5, 7}
	cases := []struct {
		business int
		want     Level
	}{
		{4, LevelNormal},
		{5, LevelNormal}, // strict: equal is not over
		{6, LevelOrange},
		{7, LevelOrange},
		{8, LevelRed},
	}
	for _, tc := range cases {
		level, msg := Classify(tc.business+2, tc.business, th, RuleBusiness)
		if level != tc.want {
			t.Errorf("business=%d: got %s, want %s", tc.business, level, tc.want)
		}
		if tc.want == LevelNormal && msg != "" {
			t.Errorf("business=%d: normal must carry no message", tc.business)
		}
		if tc.want != LevelNormal && msg == "" {
			t.Errorf("business=%d: expected a message", tc.business)
		}
	}
}

func TestClassifyRedWins(t *testing.T) {
	level, msg := Classify(20, 10, DefaultThresholds, RuleBusiness)
	if level != LevelRed {
		t.Fatalf("red must mask orange, got %s", level)
	}
	if msg != msgRed {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestClassifyLegacyRule(t *testing.T) {
	// 9 calendar days, 5 business days: legacy goes red on the calendar
	// count while the current rule stays normal.
	if level, _ := Classify(9, 5, DefaultThresholds, RuleLegacy); level != LevelRed {
		t.Fatalf("legacy rule: expected red, got %s", level)
	}
	if level, _ := Classify(9, 5, DefaultThresholds, RuleBusiness); level != LevelNormal {
		t.Fatalf("business rule: expected normal, got %s", level)
	}
}

func TestClassifyLegacyOrangeStillBusiness(t *testing.T) {
	// Legacy only changes the red input; orange stays on business days.
	if level, _ := Classify(6, 6, DefaultThresholds, RuleLegacy); level != LevelOrange {
		t.Fatalf("expected orange, got %s", level)
	}
}

func TestClassifyInvertedThresholds(t *testing.T) {
	// Orange above red is allowed: red masks orange past both.
	th := Thresholds{Orange: 10, Red: 3}
	if level, _ := Classify(5, 5, th, RuleBusiness); level != LevelRed {
		t.Fatalf("expected red, got %s", level)
	}
}

func TestComputeIdempotent(t *testing.T) {
	cal := usHolidays()
	start := at(2024, time.December, 23, 9)
	now := at(2025, time.January, 2, 9)
	first := Compute(start, now, cal, DefaultThresholds, RuleBusiness)
	second := Compute(start, now, cal, DefaultThresholds, RuleBusiness)
	if first != second {
		t.Fatalf("same inputs must give same result: %+v vs %+v", first, second)
	}
	if first.BusinessDays != 6 || first.CalendarDays != 10 {
		t.Fatalf("unexpected counts: %+v", first)
	}
	if first.Level != LevelOrange {
		t.Fatalf("6 business days over orange threshold 5: got %s", first.Level)
	}
}
