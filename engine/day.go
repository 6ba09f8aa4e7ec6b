package engine

import (
	"fmt"
	"time"
)

// =============================================================================
// DAY - Canonical calendar day key
// =============================================================================

// Day is a calendar day in UTC, the key unit for all aggregation.
type Day struct {
	t time.Time
}

const dayFormat = "2006-01-02"

// NewDay constructs a day from calendar components.
func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates an instant to its calendar day.
func DayOf(t time.Time) Day {
	u := t.UTC()
	return NewDay(u.Year(), u.Month(), u.Day())
}

// Today returns the current calendar day.
func Today() Day { return DayOf(time.Now()) }

// ParseDay parses a "2006-01-02" key.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayFormat, s)
	if err != nil {
		return Day{}, fmt.Errorf("%w: malformed day %q", ErrInvalidInput, s)
	}
	return Day{t: t}, nil
}

// Comparison
func (d Day) Before(other Day) bool        { return d.t.Before(other.t) }
func (d Day) After(other Day) bool         { return d.t.After(other.t) }
func (d Day) Equal(other Day) bool         { return d.t.Equal(other.t) }
func (d Day) BeforeOrEqual(other Day) bool { return !d.After(other) }
func (d Day) AfterOrEqual(other Day) bool  { return !d.Before(other) }
func (d Day) IsZero() bool                 { return d.t.IsZero() }

// Arithmetic
func (d Day) AddDays(n int) Day { return Day{t: d.t.AddDate(0, 0, n)} }

// Properties
func (d Day) Year() int             { return d.t.Year() }
func (d Day) Month() time.Month     { return d.t.Month() }
func (d Day) DayOfMonth() int       { return d.t.Day() }
func (d Day) Weekday() time.Weekday { return d.t.Weekday() }
func (d Day) Time() time.Time       { return d.t }

func (d Day) String() string { return d.t.Format(dayFormat) }

// =============================================================================
// PERIOD KEYS - Week and month derivation
// =============================================================================

// WeekStart returns the Monday of the week containing d. Weeks start on
// Monday regardless of locale.
func (d Day) WeekStart() Day {
	offset := int(d.Weekday()-time.Monday+7) % 7
	return d.AddDays(-offset)
}

// WeekKey returns the canonical weekly period key: the week-start day.
func (d Day) WeekKey() string { return d.WeekStart().String() }

// MonthKey returns the canonical monthly period key ("2006-01").
func (d Day) MonthKey() string { return d.t.Format("2006-01") }

// MonthStart returns the first day of the month containing d.
func (d Day) MonthStart() Day { return NewDay(d.Year(), d.Month(), 1) }

// MonthEnd returns the last day of the month containing d.
func (d Day) MonthEnd() Day {
	return NewDay(d.Year(), d.Month()+1, 1).AddDays(-1)
}

// ParseMonthKey parses a "2006-01" key into the first day of that month.
func ParseMonthKey(s string) (Day, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Day{}, fmt.Errorf("%w: malformed month %q", ErrInvalidInput, s)
	}
	return Day{t: t}, nil
}

// DaysBetween returns the whole days from one day to another.
func DaysBetween(from, to Day) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}
