package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/screenloop/usage-engine/engine"
)

// =============================================================================
// HISTORICAL REBUILD
// =============================================================================

func seedHistory(t *testing.T, eng *engine.Engine, mem interface {
	AddSession(engine.Session) error
	SetGoal(engine.GoalConfig)
}) {
	t.Helper()
	mem.SetGoal(gamesGoal())

	// Two weeks spanning a month boundary.
	for i, seconds := range []int64{3600, 10800, 0, 5400, 9000} {
		d := day(2024, time.January, 29).AddDays(i)
		if err := mem.AddSession(session("games", d, 9, seconds, false)); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRebuild_RecomputesAllTables(t *testing.T) {
	// GIVEN: Historical sessions and nothing aggregated yet
	// WHEN: Running a historical rebuild
	// THEN: Daily, period and completion tables are fully populated

	eng, mem := newTestEngine(t)
	ctx := context.Background()
	seedHistory(t, eng, mem)

	report, err := eng.RunHistoricalRebuild(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if report.DatesReplayed != 5 {
		t.Errorf("expected 5 replayed dates, got %d", report.DatesReplayed)
	}
	if len(report.SkippedDates) != 0 {
		t.Errorf("expected no skipped dates, got %v", report.SkippedDates)
	}
	// Jan 29 - Feb 2 touches 1 week and 2 months.
	if report.WeeksRolled != 1 || report.MonthsRolled != 2 {
		t.Errorf("expected 1 week / 2 months, got %d / %d", report.WeeksRolled, report.MonthsRolled)
	}

	rec, err := mem.GetCompletionRecord(ctx, day(2024, time.January, 29), "games")
	if err != nil || rec == nil {
		t.Fatalf("expected record, got %v / %v", rec, err)
	}
	if !rec.GoalMet {
		t.Error("3600s against 7200s at-most goal should be met")
	}

	week, err := mem.GetPeriodSummary(ctx, "2024-01-29", "games")
	if err != nil || week == nil {
		t.Fatalf("expected weekly summary, got %v / %v", week, err)
	}
	if week.DayCount != 5 {
		t.Errorf("expected 5 observed days in week, got %d", week.DayCount)
	}

	if eng.RebuildPhase() != engine.RebuildIdle {
		t.Errorf("expected idle after rebuild, got %s", eng.RebuildPhase())
	}
}

func TestRebuild_Deterministic(t *testing.T) {
	// GIVEN: A populated store with marked progress
	// WHEN: Rebuilding twice over the same feed
	// THEN: Identical tables both times, with progress reset to zero

	eng, mem := newTestEngine(t)
	ctx := context.Background()
	seedHistory(t, eng, mem)

	if _, err := eng.RunHistoricalRebuild(ctx); err != nil {
		t.Fatal(err)
	}

	// Mark progress, which the next rebuild must wipe.
	d := day(2024, time.January, 30)
	if err := eng.MarkPunishProgress(ctx, d, "games", decimal.NewFromInt(100)); err != nil {
		t.Fatal(err)
	}

	firstWeek, _ := mem.GetPeriodSummary(ctx, "2024-01-29", "games")
	firstDaily, _ := mem.GetDailySummary(ctx, d, "games")

	if _, err := eng.RunHistoricalRebuild(ctx); err != nil {
		t.Fatal(err)
	}

	secondWeek, _ := mem.GetPeriodSummary(ctx, "2024-01-29", "games")
	secondDaily, _ := mem.GetDailySummary(ctx, d, "games")
	rec, _ := mem.GetCompletionRecord(ctx, d, "games")

	if *firstDaily != *secondDaily {
		t.Errorf("daily rows differ: %+v vs %+v", firstDaily, secondDaily)
	}
	if firstWeek.DayCount != secondWeek.DayCount ||
		!firstWeek.AvgDailySeconds.Equal(secondWeek.AvgDailySeconds) {
		t.Errorf("weekly rows differ: %+v vs %+v", firstWeek, secondWeek)
	}
	if !rec.PunishDonePercent.IsZero() {
		t.Errorf("rebuild must reset progress, got %s", rec.PunishDonePercent)
	}
}

func TestRebuild_ClearFailureIsFatal(t *testing.T) {
	// GIVEN: A store whose clear phase fails
	// WHEN: Rebuilding
	// THEN: The rebuild aborts with prior state untouched

	eng, mem := newTestEngine(t)
	ctx := context.Background()
	seedHistory(t, eng, mem)

	if _, err := eng.RunHistoricalRebuild(ctx); err != nil {
		t.Fatal(err)
	}
	before := mem.DailySummaryCount()

	mem.FailClear = errors.New("disk full")
	_, err := eng.RunHistoricalRebuild(ctx)
	if !errors.Is(err, engine.ErrRebuildClearFailed) {
		t.Fatalf("expected ErrRebuildClearFailed, got %v", err)
	}

	if mem.DailySummaryCount() != before {
		t.Errorf("prior state must be untouched: %d rows, had %d", mem.DailySummaryCount(), before)
	}

	runs, err := mem.ListRebuildRuns(ctx)
	if err != nil {
		t.Fatal(err)
	}
	last := runs[len(runs)-1]
	if last.Status != "failed" || last.Error == "" {
		t.Errorf("expected failed run record, got %+v", last)
	}
}

func TestRebuild_SkipsFailingDateAndContinues(t *testing.T) {
	// GIVEN: One date whose sessions cannot be listed
	// WHEN: Rebuilding
	// THEN: That date is skipped, the rest is rebuilt, and the rebuild
	//       reports success

	eng, mem := newTestEngine(t)
	ctx := context.Background()
	seedHistory(t, eng, mem)

	broken := day(2024, time.January, 30)
	mem.FailSessionsOn[broken.String()] = errors.New("corrupt page")

	report, err := eng.RunHistoricalRebuild(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if report.DatesReplayed != 4 {
		t.Errorf("expected 4 replayed, got %d", report.DatesReplayed)
	}
	if len(report.SkippedDates) != 1 || !report.SkippedDates[0].Equal(broken) {
		t.Errorf("expected skipped %s, got %v", broken, report.SkippedDates)
	}

	// The broken date has no rows; its neighbors do.
	if s, _ := mem.GetDailySummary(ctx, broken, "games"); s != nil {
		t.Errorf("skipped date should have no summary, got %+v", s)
	}
	if s, _ := mem.GetDailySummary(ctx, broken.AddDays(1), "games"); s == nil {
		t.Error("neighboring date should have been rebuilt")
	}

	runs, _ := mem.ListRebuildRuns(ctx)
	last := runs[len(runs)-1]
	if last.Status != "completed" || last.DatesSkipped != 1 {
		t.Errorf("expected completed run with 1 skip, got %+v", last)
	}
}
