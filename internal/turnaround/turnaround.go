// Package turnaround derives review-urgency signals from elapsed working
// time. Everything here is a pure function over its inputs; callers
// recompute on demand instead of caching.
package turnaround

import (
	"time"

	"dailies/internal/calendar"
)

// Level is the urgency classification for an asset awaiting review.
type Level string

const (
	LevelNormal Level = "normal"
	LevelOrange Level = "orange"
	LevelRed    Level = "red"
)

// Rule selects which elapsed-day unit feeds the red alert.
type Rule string

const (
	// RuleBusiness evaluates both alerts on business days.
	RuleBusiness Rule = "business"
	// RuleLegacy is the superseded behavior: red on calendar days,
	// orange on business days. Kept selectable for workspaces that
	// still expect it.
	RuleLegacy Rule = "legacy"
)

// ValidRule reports whether r names a known classification rule.
func ValidRule(r Rule) bool {
	return r == RuleBusiness || r == RuleLegacy
}

// Thresholds are the alert boundaries, in days. Both comparisons are strict
// and evaluated independently: if Orange >= Red, red simply masks orange
// whenever the count exceeds both. That is expected, not an error.
type Thresholds struct {
	Orange int
	Red    int
}

// DefaultThresholds matches the shipped settings record.
var DefaultThresholds = Thresholds{Orange: 5, Red: 7}

// Result is the derived turnaround state for one asset. It is transient:
// recomputed on every query, never stored.
type Result struct {
	CalendarDays int
	BusinessDays int
	Level        Level
	Message      string
}

const (
	msgOrange = "Warning: business days since review exceeded"
	msgRed    = "Critical: days since review exceeded"
)

// midnight strips the time-of-day, keeping the instant's own location so
// "the day" means the local wall-clock day.
func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// CalendarDays counts whole days between start and now. Same day yields 0;
// now before start yields a negative count (the caller decides what a
// not-yet-started asset means).
func CalendarDays(start, now time.Time) int {
	from := midnight(start)
	to := midnight(now)
	// Rounding absorbs the one-hour skew a DST transition introduces
	// between two local midnights.
	hours := to.Sub(from).Hours()
	if hours >= 0 {
		return int((hours + 12) / 24)
	}
	return -int((-hours + 12) / 24)
}

// BusinessDays counts weekdays that are not holidays, walking from the
// start day up to but excluding the current day. The holiday set is fetched
// once for the whole span rather than per visited day. Never negative: when
// now <= start the walk body runs zero times.
func BusinessDays(start, now time.Time, cal *calendar.Calendar) int {
	from := midnight(start)
	to := midnight(now)
	if !from.Before(to) {
		return 0
	}
	holidays := make(map[calendar.Date]bool)
	for _, h := range cal.HolidaysInRange(calendar.DateOf(from), calendar.DateOf(to)) {
		holidays[h] = true
	}
	count := 0
	for day := from; day.Before(to); day = day.AddDate(0, 0, 1) {
		wd := day.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			continue
		}
		if holidays[calendar.DateOf(day)] {
			continue
		}
		count++
	}
	return count
}

// Classify maps elapsed-day counts to an alert level and message. Red is
// checked first and wins outright; there is no combined state.
func Classify(calendarDays, businessDays int, th Thresholds, rule Rule) (Level, string) {
	redDays := businessDays
	if rule == RuleLegacy {
		redDays = calendarDays
	}
	switch {
	case redDays > th.Red:
		return LevelRed, msgRed
	case businessDays > th.Orange:
		return LevelOrange, msgOrange
	default:
		return LevelNormal, ""
	}
}

// Compute runs the full pipeline for one asset.
func Compute(start, now time.Time, cal *calendar.Calendar, th Thresholds, rule Rule) Result {
	calDays := CalendarDays(start, now)
	busDays := BusinessDays(start, now, cal)
	level, msg := Classify(calDays, busDays, th, rule)
	return Result{
		CalendarDays: calDays,
		BusinessDays: busDays,
		Level:        level,
		Message:      msg,
	}
}
