package meter

import (
	"fmt"
	"time"
)

// Period is the calendar month readings are collected for.
type Period struct {
	Year  int
	Month time.Month
}

// CurrentPeriod returns the reporting period for now shifted back by offsetMonths.
func CurrentPeriod(now time.Time, offsetMonths int) Period {
	first := time.Date(now.Year(), now.Month()-time.Month(offsetMonths), 1, 0, 0, 0, 0, time.UTC)
	return Period{Year: first.Year(), Month: first.Month()}
}

// ReadingDate is today shifted back by offsetMonths, clamped to the end of the
// target month so that 31 March minus one month is 28/29 February.
func ReadingDate(now time.Time, offsetMonths int) time.Time {
	p := CurrentPeriod(now, offsetMonths)
	day := now.Day()
	if last := p.Days(); day > last {
		day = last
	}
	return time.Date(p.Year, p.Month, day, 0, 0, 0, 0, time.UTC)
}

// ParsePeriod parses the YYYY-MM form produced by String.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("parse period %q: %w", s, err)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// Start is the first instant of the period in UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Days is the number of days in the period.
func (p Period) Days() int {
	return p.Start().AddDate(0, 1, -1).Day()
}

// Prev returns the preceding month.
func (p Period) Prev() Period {
	t := p.Start().AddDate(0, -1, 0)
	return Period{Year: t.Year(), Month: t.Month()}
}

// String is the storage key, e.g. "2025-05".
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Label is the display form, e.g. "May 2025".
func (p Period) Label() string {
	return fmt.Sprintf("%s %d", p.Month, p.Year)
}
