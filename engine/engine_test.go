package engine_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/screenloop/usage-engine/engine"
	"github.com/screenloop/usage-engine/engine/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestEngine(t *testing.T) (*engine.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	eng := engine.New(mem, mem, mem, engine.Config{
		AggregateCategory: "all",
		Runs:              mem,
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return eng, mem
}

func mustAdd(t *testing.T, mem *store.Memory, s engine.Session) {
	t.Helper()
	if err := mem.AddSession(s); err != nil {
		t.Fatalf("add session: %v", err)
	}
}

func gamesGoal() engine.GoalConfig {
	return engine.GoalConfig{
		CategoryID:       "games",
		DailyGoalMinutes: 120,
		Condition:        engine.ConditionAtMost,
		Reward: engine.UnitSpec{
			Label: "chips", QuantityPerUnit: 2, UnitLabel: "bags", TimeUnit: engine.UnitHour,
		},
		Punish: engine.UnitSpec{
			Label: "push-ups", QuantityPerUnit: 30, UnitLabel: "reps", TimeUnit: engine.UnitHour,
		},
	}
}

// =============================================================================
// DAILY AGGREGATION THROUGH THE ENGINE
// =============================================================================

func TestRunDailyAggregation_WritesAndRewritesRows(t *testing.T) {
	// GIVEN: Sessions for one day
	// WHEN: Running aggregation twice
	// THEN: Rows are present once and identical both times (overwrite, not add)

	eng, mem := newTestEngine(t)
	ctx := context.Background()
	d := day(2024, time.January, 8)

	mustAdd(t, mem, session("games", d, 9, 1200, false))
	mustAdd(t, mem, session("games", d, 20, 600, true))

	first, err := eng.RunDailyAggregation(ctx, d)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := eng.RunDailyAggregation(ctx, d)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if first["games"] != second["games"] {
		t.Errorf("runs differ: %+v vs %+v", first["games"], second["games"])
	}

	stored, err := mem.GetDailySummary(ctx, d, "games")
	if err != nil || stored == nil {
		t.Fatalf("expected stored summary, got %v / %v", stored, err)
	}
	if stored.TotalSeconds != 1800 {
		t.Errorf("expected 1800 total, got %d", stored.TotalSeconds)
	}
	// games + synthetic all
	if mem.DailySummaryCount() != 2 {
		t.Errorf("expected 2 rows, got %d", mem.DailySummaryCount())
	}
}

// =============================================================================
// GOAL EVALUATION AND RECORD
// =============================================================================

func TestRunGoalEvaluationAndRecord_MetOwesRewardOnly(t *testing.T) {
	// GIVEN: 90 min of usage against a 120 min at-most goal
	// WHEN: Evaluating and recording
	// THEN: Record created with goal met; reward for 30 started minutes
	//       (1 started hour x 2 bags); no punishment

	eng, mem := newTestEngine(t)
	ctx := context.Background()
	d := day(2024, time.January, 8)

	mem.SetGoal(gamesGoal())
	mustAdd(t, mem, session("games", d, 9, 5400, false))
	if _, err := eng.RunDailyAggregation(ctx, d); err != nil {
		t.Fatal(err)
	}

	outcome, err := eng.RunGoalEvaluationAndRecord(ctx, d, "games")
	if err != nil {
		t.Fatal(err)
	}

	if !outcome.Evaluation.Met || outcome.Evaluation.DeltaSeconds != 1800 {
		t.Errorf("got met=%v delta=%d", outcome.Evaluation.Met, outcome.Evaluation.DeltaSeconds)
	}
	if outcome.RewardQuantity != 2 {
		t.Errorf("expected reward 2, got %d", outcome.RewardQuantity)
	}
	if outcome.PunishQuantity != 0 {
		t.Errorf("expected no punishment, got %d", outcome.PunishQuantity)
	}
	if outcome.Record == nil || !outcome.Record.GoalMet {
		t.Errorf("expected record with goal met, got %+v", outcome.Record)
	}
}

func TestRunGoalEvaluationAndRecord_UnmetOwesPunishmentOnly(t *testing.T) {
	eng, mem := newTestEngine(t)
	ctx := context.Background()
	d := day(2024, time.January, 8)

	mem.SetGoal(gamesGoal())
	mustAdd(t, mem, session("games", d, 9, 10801, false)) // 1h1s over the 2h goal
	if _, err := eng.RunDailyAggregation(ctx, d); err != nil {
		t.Fatal(err)
	}

	outcome, err := eng.RunGoalEvaluationAndRecord(ctx, d, "games")
	if err != nil {
		t.Fatal(err)
	}

	if outcome.Evaluation.Met {
		t.Error("expected goal not met")
	}
	// 3601s over -> 2 started hours x 30 push-ups.
	if outcome.PunishQuantity != 60 {
		t.Errorf("expected punishment 60, got %d", outcome.PunishQuantity)
	}
	if outcome.RewardQuantity != 0 {
		t.Errorf("expected no reward, got %d", outcome.RewardQuantity)
	}
}

func TestRunGoalEvaluationAndRecord_NoData(t *testing.T) {
	// No daily summary row means nothing to evaluate and no record.

	eng, mem := newTestEngine(t)
	ctx := context.Background()
	mem.SetGoal(gamesGoal())

	outcome, err := eng.RunGoalEvaluationAndRecord(ctx, day(2024, time.January, 8), "games")
	if err != nil {
		t.Fatal(err)
	}

	if outcome.Evaluation.Status != engine.EvalNoData {
		t.Errorf("expected NoData, got %s", outcome.Evaluation.Status)
	}
	if outcome.Record != nil {
		t.Errorf("expected no record, got %+v", outcome.Record)
	}
}

func TestRunGoalEvaluationAndRecord_NoConfigCreatesNoRecord(t *testing.T) {
	// GIVEN: Usage data but no goal config
	// WHEN: Evaluating
	// THEN: NoConfig outcome, no record until a config exists

	eng, mem := newTestEngine(t)
	ctx := context.Background()
	d := day(2024, time.January, 8)

	mustAdd(t, mem, session("games", d, 9, 5400, false))
	if _, err := eng.RunDailyAggregation(ctx, d); err != nil {
		t.Fatal(err)
	}

	outcome, err := eng.RunGoalEvaluationAndRecord(ctx, d, "games")
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Evaluation.Status != engine.EvalNoConfig {
		t.Errorf("expected NoConfig, got %s", outcome.Evaluation.Status)
	}
	if outcome.Record != nil {
		t.Errorf("expected no record, got %+v", outcome.Record)
	}

	rec, err := mem.GetCompletionRecord(ctx, d, "games")
	if err != nil || rec != nil {
		t.Errorf("expected no stored record, got %+v / %v", rec, err)
	}
}

func TestCompletionRecord_VerdictFrozenAcrossConfigEdit(t *testing.T) {
	// GIVEN: A record created with goal_met=true
	// WHEN: The goal config is tightened afterward and evaluation reruns
	// THEN: The stored verdict stays true; only the live evaluation changes

	eng, mem := newTestEngine(t)
	ctx := context.Background()
	d := day(2024, time.January, 1)

	mem.SetGoal(gamesGoal()) // 120 min at most
	mustAdd(t, mem, session("games", d, 9, 5400, false))
	if _, err := eng.RunDailyAggregation(ctx, d); err != nil {
		t.Fatal(err)
	}

	first, err := eng.RunGoalEvaluationAndRecord(ctx, d, "games")
	if err != nil {
		t.Fatal(err)
	}
	if !first.Record.GoalMet {
		t.Fatal("precondition: goal should be met")
	}

	// Tighten the goal to 60 minutes; 90 minutes of usage now fails it.
	tightened := gamesGoal()
	tightened.DailyGoalMinutes = 60
	mem.SetGoal(tightened)

	second, err := eng.RunGoalEvaluationAndRecord(ctx, d, "games")
	if err != nil {
		t.Fatal(err)
	}

	if second.Evaluation.Met {
		t.Error("live evaluation should fail under the tightened goal")
	}
	if !second.Record.GoalMet {
		t.Error("stored verdict must stay frozen at true without a rebuild")
	}
}

// =============================================================================
// PROGRESS MARKING
// =============================================================================

func TestMarkProgress_OverwritesAndDerivesDone(t *testing.T) {
	eng, mem := newTestEngine(t)
	ctx := context.Background()
	d := day(2024, time.January, 8)

	mem.SetGoal(gamesGoal())
	mustAdd(t, mem, session("games", d, 9, 10800, false))
	if _, err := eng.RunDailyAggregation(ctx, d); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.RunGoalEvaluationAndRecord(ctx, d, "games"); err != nil {
		t.Fatal(err)
	}

	if err := eng.MarkPunishProgress(ctx, d, "games", decimal.NewFromInt(40)); err != nil {
		t.Fatal(err)
	}

	rec, err := mem.GetCompletionRecord(ctx, d, "games")
	if err != nil || rec == nil {
		t.Fatalf("expected record, got %v / %v", rec, err)
	}
	if !rec.PunishDonePercent.Equal(decimal.NewFromInt(40)) {
		t.Errorf("expected 40, got %s", rec.PunishDonePercent)
	}
	if !rec.PunishDone() {
		t.Error("percent > 0 should derive done")
	}
	if rec.RewardDone() {
		t.Error("reward progress untouched, should not be done")
	}

	// Overwrite, not accumulate.
	if err := eng.MarkPunishProgress(ctx, d, "games", decimal.NewFromInt(100)); err != nil {
		t.Fatal(err)
	}
	rec, _ = mem.GetCompletionRecord(ctx, d, "games")
	if !rec.PunishDonePercent.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected 100, got %s", rec.PunishDonePercent)
	}
}

func TestMarkProgress_RejectsOutOfRange(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	d := day(2024, time.January, 8)

	err := eng.MarkRewardProgress(ctx, d, "games", decimal.NewFromInt(101))
	if !errors.Is(err, engine.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	err = eng.MarkRewardProgress(ctx, d, "games", decimal.NewFromInt(-1))
	if !errors.Is(err, engine.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestMarkProgress_MissingRecord(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	err := eng.MarkRewardProgress(ctx, day(2024, time.January, 8), "games", decimal.NewFromInt(50))
	if !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// =============================================================================
// WEEK COMPLETION
// =============================================================================

func TestWeekCompletion_DenominatorExcludesTodayOnward(t *testing.T) {
	// GIVEN: Mon-Wed have records (2 met), it is Thursday
	// WHEN: Computing the week completion
	// THEN: 2/3 - the denominator is days elapsed before today, not 7

	eng, mem := newTestEngine(t)
	ctx := context.Background()
	monday := day(2024, time.March, 4)

	mem.SetGoal(gamesGoal())
	verdicts := []bool{true, false, true}
	for i, met := range verdicts {
		d := monday.AddDays(i)
		seconds := int64(3600) // met
		if !met {
			seconds = 10800
		}
		mustAdd(t, mem, session("games", d, 9, seconds, false))
		if _, err := eng.RunDailyAggregation(ctx, d); err != nil {
			t.Fatal(err)
		}
		if _, err := eng.RunGoalEvaluationAndRecord(ctx, d, "games"); err != nil {
			t.Fatal(err)
		}
	}

	thursday := monday.AddDays(3)
	ratio, err := eng.WeekCompletion(ctx, "games", monday, thursday)
	if err != nil {
		t.Fatal(err)
	}

	want := decimal.NewFromInt(2).Div(decimal.NewFromInt(3))
	if !ratio.Equal(want) {
		t.Errorf("expected %s, got %s", want, ratio)
	}

	// Run the same question "later in the week": denominator grows even
	// though no new records exist.
	sunday := monday.AddDays(6)
	ratio, err = eng.WeekCompletion(ctx, "games", monday, sunday)
	if err != nil {
		t.Fatal(err)
	}
	want = decimal.NewFromInt(2).Div(decimal.NewFromInt(6))
	if !ratio.Equal(want) {
		t.Errorf("expected %s, got %s", want, ratio)
	}
}

func TestWeekCompletion_TodayOnOrBeforeMonday(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	monday := day(2024, time.March, 4)

	ratio, err := eng.WeekCompletion(ctx, "games", monday, monday)
	if err != nil {
		t.Fatal(err)
	}
	if !ratio.IsZero() {
		t.Errorf("expected 0 with no elapsed days, got %s", ratio)
	}
}
