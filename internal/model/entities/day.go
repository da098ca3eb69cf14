package entities

import "time"

// DayNumber is an ordinal day count where day 1 is 1 January 1901.
type DayNumber int

var dayOrigin = time.Date(1900, time.December, 31, 0, 0, 0, 0, time.UTC)

// DayFromDate converts a calendar date (UTC) to its ordinal day number.
func DayFromDate(t time.Time) DayNumber {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return DayNumber(d.Sub(dayOrigin).Hours() / 24)
}

// Date returns the calendar date of the day number.
func (d DayNumber) Date() time.Time {
	return dayOrigin.AddDate(0, 0, int(d))
}

func (d DayNumber) String() string {
	return d.Date().Format("2006-01-02")
}
