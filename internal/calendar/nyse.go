package calendar

import "time"

type nyseCalendar struct{}

func (nyseCalendar) Name() string { return NYSE }

// IsBusinessDay returns true if the exchange is open for a full session on d.
func (nyseCalendar) IsBusinessDay(d time.Time) bool {
	if isWeekend(d) {
		return false
	}
	_, closed := nyseHolidays(d.Year(), d.Location())[truncateToDate(d)]
	return !closed
}

// nyseHolidays returns the observed full-day closures for a year.
//
// Fixed-date holidays falling on Saturday are observed the Friday before and
// on Sunday the Monday after. New Year's Day on a Saturday is not moved back
// into the previous year.
func nyseHolidays(year int, loc *time.Location) map[time.Time]struct{} {
	date := func(m time.Month, d int) time.Time { return time.Date(year, m, d, 0, 0, 0, 0, loc) }

	days := []time.Time{
		nthWeekday(year, time.January, time.Monday, 3, loc),    // Martin Luther King Jr. Day
		nthWeekday(year, time.February, time.Monday, 3, loc),   // Washington's Birthday
		easterSunday(year, loc).AddDate(0, 0, -2),              // Good Friday
		lastWeekday(year, time.May, time.Monday, loc),          // Memorial Day
		observed(date(time.July, 4)),                           // Independence Day
		nthWeekday(year, time.September, time.Monday, 1, loc),  // Labor Day
		nthWeekday(year, time.November, time.Thursday, 4, loc), // Thanksgiving
		observed(date(time.December, 25)),                      // Christmas
	}
	if ny := date(time.January, 1); ny.Weekday() != time.Saturday {
		days = append(days, observed(ny))
	}
	if year >= 2022 {
		days = append(days, observed(date(time.June, 19))) // Juneteenth
	}

	out := make(map[time.Time]struct{}, len(days))
	for _, d := range days {
		out[d] = struct{}{}
	}
	return out
}

func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

// nthWeekday returns the n-th given weekday of a month (n starts at 1).
func nthWeekday(year int, month time.Month, wd time.Weekday, n int, loc *time.Location) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	offset := (int(wd) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset+7*(n-1))
}

func lastWeekday(year int, month time.Month, wd time.Weekday, loc *time.Location) time.Time {
	d := time.Date(year, month+1, 1, 0, 0, 0, 0, loc).AddDate(0, 0, -1)
	offset := (int(d.Weekday()) - int(wd) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

// easterSunday returns the date of Easter Sunday for a given year
// (Meeus/Jones/Butcher algorithm).
func easterSunday(year int, loc *time.Location) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
}
