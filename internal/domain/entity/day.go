package entity

import (
	"strings"
	"time"
)

// DateLayout is the wire and storage format for calendar dates
const DateLayout = "2006-01-02"

// Day is a weekday a doctor accepts appointments on
type Day string

const (
	DayMonday    Day = "MONDAY"
	DayTuesday   Day = "TUESDAY"
	DayWednesday Day = "WEDNESDAY"
	DayThursday  Day = "THURSDAY"
	DayFriday    Day = "FRIDAY"
	DaySaturday  Day = "SATURDAY"
	DaySunday    Day = "SUNDAY"
)

// AllDays lists the week starting on Monday
var AllDays = []Day{DayMonday, DayTuesday, DayWednesday, DayThursday, DayFriday, DaySaturday, DaySunday}

var weekdayToDay = map[time.Weekday]Day{
	time.Monday:    DayMonday,
	time.Tuesday:   DayTuesday,
	time.Wednesday: DayWednesday,
	time.Thursday:  DayThursday,
	time.Friday:    DayFriday,
	time.Saturday:  DaySaturday,
	time.Sunday:    DaySunday,
}

// DayOf returns the weekday of a calendar date
func DayOf(date time.Time) Day {
	return weekdayToDay[date.Weekday()]
}

// ParseDay accepts any letter case
func ParseDay(s string) (Day, bool) {
	d := Day(strings.ToUpper(strings.TrimSpace(s)))
	for _, day := range AllDays {
		if day == d {
			return d, true
		}
	}
	return "", false
}

// DateOf truncates an instant to its calendar date in loc, returned as midnight UTC.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDate renders a calendar date as YYYY-MM-DD
func FormatDate(date time.Time) string {
	return date.Format(DateLayout)
}
