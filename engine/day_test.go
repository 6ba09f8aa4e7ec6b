package engine_test

import (
	"errors"
	"testing"
	"time"

	"github.com/screenloop/usage-engine/engine"
)

func TestWeekStart_AlwaysMonday(t *testing.T) {
	// GIVEN: Days across a full week including the Sunday edge
	// WHEN: Deriving the week start
	// THEN: Every day maps to the same Monday

	monday := engine.NewDay(2024, time.March, 4)
	for i := 0; i < 7; i++ {
		d := monday.AddDays(i)
		if !d.WeekStart().Equal(monday) {
			t.Errorf("%s: expected week start %s, got %s", d, monday, d.WeekStart())
		}
	}

	if monday.WeekStart().Weekday() != time.Monday {
		t.Errorf("week start should be Monday, got %v", monday.WeekStart().Weekday())
	}
}

func TestWeekStart_SundayBelongsToPrecedingMonday(t *testing.T) {
	sunday := engine.NewDay(2024, time.March, 10)
	want := engine.NewDay(2024, time.March, 4)
	if !sunday.WeekStart().Equal(want) {
		t.Errorf("expected %s, got %s", want, sunday.WeekStart())
	}
}

func TestMonthKey_AndBounds(t *testing.T) {
	d := engine.NewDay(2024, time.February, 15)

	if got := d.MonthKey(); got != "2024-02" {
		t.Errorf("expected 2024-02, got %s", got)
	}
	if !d.MonthStart().Equal(engine.NewDay(2024, time.February, 1)) {
		t.Errorf("wrong month start: %s", d.MonthStart())
	}
	// Leap year February.
	if !d.MonthEnd().Equal(engine.NewDay(2024, time.February, 29)) {
		t.Errorf("wrong month end: %s", d.MonthEnd())
	}
}

func TestParseDay_Malformed(t *testing.T) {
	_, err := engine.ParseDay("02/15/2024")
	if !errors.Is(err, engine.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDayOf_TruncatesToUTCDay(t *testing.T) {
	instant := time.Date(2024, time.June, 1, 23, 59, 59, 0, time.UTC)
	if got := engine.DayOf(instant); got.String() != "2024-06-01" {
		t.Errorf("expected 2024-06-01, got %s", got)
	}
}
