// Package calendar decides which dates are trading days. Forecast dates are
// stepped with the same calendar that was recorded when the model was fit.
package calendar

import (
	"fmt"
	"strings"
	"time"
)

const (
	// Weekdays treats every Monday-Friday as a business day.
	Weekdays = "weekdays"
	// NYSE skips weekends and NYSE full-day market holidays.
	NYSE = "nyse"
)

// Calendar reports business days and steps between them.
type Calendar interface {
	Name() string
	IsBusinessDay(d time.Time) bool
}

// ByName resolves a calendar from its configuration name.
func ByName(name string) (Calendar, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Weekdays, "":
		return weekdayCalendar{}, nil
	case NYSE:
		return nyseCalendar{}, nil
	default:
		return nil, fmt.Errorf("unknown calendar %q", name)
	}
}

// Next returns the first business day strictly after d, truncated to midnight
// in d's location.
func Next(c Calendar, d time.Time) time.Time {
	n := truncateToDate(d).AddDate(0, 0, 1)
	for !c.IsBusinessDay(n) {
		n = n.AddDate(0, 0, 1)
	}
	return n
}

// NextN returns the n business days following d, oldest first.
func NextN(c Calendar, d time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	cur := d
	for len(out) < n {
		cur = Next(c, cur)
		out = append(out, cur)
	}
	return out
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func isWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

type weekdayCalendar struct{}

func (weekdayCalendar) Name() string { return Weekdays }

func (weekdayCalendar) IsBusinessDay(d time.Time) bool { return !isWeekend(d) }
