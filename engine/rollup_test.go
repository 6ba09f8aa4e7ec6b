package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/screenloop/usage-engine/engine"
)

// =============================================================================
// PERIOD ROLLUP
// =============================================================================

func TestRollupWeek_AverageExcludesUntrackedDays(t *testing.T) {
	// GIVEN: 3 days with data (60, 0, 120 minutes), 4 days with no row
	// WHEN: Rolling up the week
	// THEN: Average is (60+0+120)/3 = 60 min/day, not divided by 7

	eng, mem := newTestEngine(t)
	ctx := context.Background()
	monday := day(2024, time.March, 4)

	minutes := []int64{60, 0, 120}
	for i, m := range minutes {
		d := monday.AddDays(i)
		mustAdd(t, mem, session("games", d, 9, m*60, false))
		if _, err := eng.RunDailyAggregation(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	summary, err := eng.RollupWeek(ctx, "games", monday)
	if err != nil {
		t.Fatal(err)
	}

	if summary.DayCount != 3 {
		t.Errorf("expected 3 observed days, got %d", summary.DayCount)
	}
	want := decimal.NewFromInt(3600) // 60 minutes in seconds
	if !summary.AvgDailySeconds.Equal(want) {
		t.Errorf("expected avg %s, got %s", want, summary.AvgDailySeconds)
	}
	if summary.PeriodKey != "2024-03-04" || summary.PeriodType != engine.PeriodWeek {
		t.Errorf("wrong key/type: %s/%s", summary.PeriodKey, summary.PeriodType)
	}
}

func TestRollupWeek_ZeroDayLowersAverage(t *testing.T) {
	// An explicit zero-second row is observed and counted; it is not the
	// same as an untracked day.

	eng, mem := newTestEngine(t)
	ctx := context.Background()
	monday := day(2024, time.March, 4)

	mustAdd(t, mem, session("games", monday, 9, 7200, false))
	mustAdd(t, mem, session("games", monday.AddDays(1), 9, 0, false))
	for i := 0; i < 2; i++ {
		if _, err := eng.RunDailyAggregation(ctx, monday.AddDays(i)); err != nil {
			t.Fatal(err)
		}
	}

	summary, err := eng.RollupWeek(ctx, "games", monday)
	if err != nil {
		t.Fatal(err)
	}

	if summary.DayCount != 2 {
		t.Errorf("expected 2 observed days, got %d", summary.DayCount)
	}
	if !summary.AvgDailySeconds.Equal(decimal.NewFromInt(3600)) {
		t.Errorf("expected 3600, got %s", summary.AvgDailySeconds)
	}
}

func TestRollupMonth_ReplacesRowWholesale(t *testing.T) {
	eng, mem := newTestEngine(t)
	ctx := context.Background()
	d := day(2024, time.February, 10)

	mustAdd(t, mem, session("games", d, 9, 3600, false))
	if _, err := eng.RunDailyAggregation(ctx, d); err != nil {
		t.Fatal(err)
	}
	first, err := eng.RollupMonth(ctx, "games", d)
	if err != nil {
		t.Fatal(err)
	}
	if !first.AvgDailySeconds.Equal(decimal.NewFromInt(3600)) || first.DayCount != 1 {
		t.Fatalf("unexpected first rollup: %+v", first)
	}

	// New data on another day, then recompute: the row is replaced.
	d2 := day(2024, time.February, 11)
	mustAdd(t, mem, session("games", d2, 9, 7200, false))
	if _, err := eng.RunDailyAggregation(ctx, d2); err != nil {
		t.Fatal(err)
	}
	second, err := eng.RollupMonth(ctx, "games", d)
	if err != nil {
		t.Fatal(err)
	}

	if second.DayCount != 2 {
		t.Errorf("expected 2 days, got %d", second.DayCount)
	}
	if !second.AvgDailySeconds.Equal(decimal.NewFromInt(5400)) {
		t.Errorf("expected 5400, got %s", second.AvgDailySeconds)
	}

	stored, err := mem.GetPeriodSummary(ctx, "2024-02", "games")
	if err != nil || stored == nil {
		t.Fatalf("expected stored period row, got %v / %v", stored, err)
	}
	if stored.DayCount != 2 {
		t.Errorf("stored row not replaced: %+v", stored)
	}
}

func TestRollup_CacheInvalidatedByNewWrites(t *testing.T) {
	// GIVEN: A cached weekly rollup
	// WHEN: A new aggregation touches a day in that week
	// THEN: The next rollup recomputes instead of serving the stale value

	eng, mem := newTestEngine(t)
	ctx := context.Background()
	monday := day(2024, time.March, 4)

	mustAdd(t, mem, session("games", monday, 9, 3600, false))
	if _, err := eng.RunDailyAggregation(ctx, monday); err != nil {
		t.Fatal(err)
	}
	first, err := eng.RollupWeek(ctx, "games", monday)
	if err != nil {
		t.Fatal(err)
	}
	if first.DayCount != 1 {
		t.Fatalf("precondition: %+v", first)
	}

	tuesday := monday.AddDays(1)
	mustAdd(t, mem, session("games", tuesday, 9, 7200, false))
	if _, err := eng.RunDailyAggregation(ctx, tuesday); err != nil {
		t.Fatal(err)
	}

	second, err := eng.RollupWeek(ctx, "games", monday)
	if err != nil {
		t.Fatal(err)
	}
	if second.DayCount != 2 {
		t.Errorf("stale cache: expected 2 days, got %d", second.DayCount)
	}
}

func TestRunPeriodRollup_DispatchesOnKeyShape(t *testing.T) {
	eng, mem := newTestEngine(t)
	ctx := context.Background()
	d := day(2024, time.March, 6) // Wednesday

	mustAdd(t, mem, session("games", d, 9, 3600, false))
	if _, err := eng.RunDailyAggregation(ctx, d); err != nil {
		t.Fatal(err)
	}

	week, err := eng.RunPeriodRollup(ctx, "games", "2024-03-04")
	if err != nil {
		t.Fatal(err)
	}
	if week.PeriodType != engine.PeriodWeek {
		t.Errorf("expected week, got %s", week.PeriodType)
	}

	month, err := eng.RunPeriodRollup(ctx, "games", "2024-03")
	if err != nil {
		t.Fatal(err)
	}
	if month.PeriodType != engine.PeriodMonth {
		t.Errorf("expected month, got %s", month.PeriodType)
	}

	if _, err := eng.RunPeriodRollup(ctx, "games", "not-a-key"); err == nil {
		t.Error("expected error for malformed key")
	}
}
