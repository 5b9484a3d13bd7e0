package calendar

import (
	"fmt"
	"sort"
	"time"
)

// Date is a calendar day with no time-of-day component. Two Dates are the
// same holiday iff all three fields match, regardless of location or instant.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf truncates an instant to its wall-clock day.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate reads a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Before reports whether d falls strictly before other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// Calendar is a year-indexed holiday table. It is built once from
// configuration and never mutated afterwards, so concurrent readers need
// no locking.
type Calendar struct {
	byYear map[int][]Date
}

// New builds a Calendar from a year -> dates mapping. Dates within a year
// are deduplicated and ordered.
func New(byYear map[int][]Date) *Calendar {
	c := &Calendar{byYear: make(map[int][]Date, len(byYear))}
	for year, dates := range byYear {
		seen := make(map[Date]bool, len(dates))
		var uniq []Date
		for _, d := range dates {
			if !seen[d] {
				seen[d] = true
				uniq = append(uniq, d)
			}
		}
		sort.Slice(uniq, func(i, j int) bool { return uniq[i].Before(uniq[j]) })
		c.byYear[year] = uniq
	}
	return c
}

// HolidaysForYear returns the configured holidays for a year. Unknown years
// yield an empty slice, never an error.
func (c *Calendar) HolidaysForYear(year int) []Date {
	dates := c.byYear[year]
	out := make([]Date, len(dates))
	copy(out, dates)
	return out
}

// HolidaysInRange returns every holiday d with start <= d <= end, ordered.
// Only the years spanned by the range are consulted, so a table covering
// decades costs nothing for a typical few-week query.
func (c *Calendar) HolidaysInRange(start, end Date) []Date {
	if end.Before(start) {
		return nil
	}
	var out []Date
	for year := start.Year; year <= end.Year; year++ {
		for _, d := range c.byYear[year] {
			if d.Before(start) || end.Before(d) {
				continue
			}
			out = append(out, d)
		}
	}
	return out
}

// IsHoliday reports whether the given day is in the table.
func (c *Calendar) IsHoliday(d Date) bool {
	for _, h := range c.byYear[d.Year] {
		if h == d {
			return true
		}
	}
	return false
}

// Years returns the populated years in ascending order.
func (c *Calendar) Years() []int {
	years := make([]int, 0, len(c.byYear))
	for y := range c.byYear {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
