/*
engine.go - Caller-facing operations

PURPOSE:
  Wires the pure calculators (aggregate.go, goal.go, quantity.go) to the
  stores and exposes the operations callers invoke: daily aggregation,
  goal evaluation with record creation, period rollups, progress marking
  and the week completion figure. Historical rebuild lives in rebuild.go.

CONCURRENCY:
  A single mutex serializes all writes. Every write is an overwrite-upsert
  keyed by (day, category), so two interleaved writers for the same key
  could commit partial results; the mutex is the per-key serialization the
  stores require, applied globally. Reads bypass the mutex and observe
  either the pre- or post-update row.

SEE ALSO:
  - rebuild.go: Historical rebuild pipeline (holds the same mutex)
  - store.go: The interfaces this drives
*/
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Config carries optional engine settings.
type Config struct {
	// AggregateCategory, when set, enables the synthetic category that
	// sums all other categories per day.
	AggregateCategory CategoryID

	// Runs, when set, records historical rebuild runs for audit.
	Runs RebuildRunStore

	Logger *slog.Logger
}

// Engine drives the aggregation and goal pipeline over the stores.
type Engine struct {
	sessions  SessionFeed
	goals     GoalStore
	summaries SummaryStore
	runs      RebuildRunStore

	aggregateCategory CategoryID
	logger            *slog.Logger

	mu      sync.Mutex // serializes all writes; held for a whole rebuild
	rebuild rebuildState
	cache   *rollupCache
}

// New creates an engine over the given stores.
func New(sessions SessionFeed, goals GoalStore, summaries SummaryStore, cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		sessions:          sessions,
		goals:             goals,
		summaries:         summaries,
		runs:              cfg.Runs,
		aggregateCategory: cfg.AggregateCategory,
		logger:            logger,
		cache:             newRollupCache(),
	}
}

// =============================================================================
// DAILY AGGREGATION
// =============================================================================

// RunDailyAggregation aggregates the day's sessions and replaces the
// daily summary rows for every category observed that day. Idempotent:
// re-running with the same feed contents yields identical rows.
func (e *Engine) RunDailyAggregation(ctx context.Context, day Day) (map[CategoryID]DailySummary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.aggregateDayLocked(ctx, day)
}

func (e *Engine) aggregateDayLocked(ctx context.Context, day Day) (map[CategoryID]DailySummary, error) {
	sessions, err := e.sessions.ListSessions(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("list sessions for %s: %w", day, err)
	}

	sums := AggregateDay(day, sessions, e.aggregateCategory)

	// Deterministic write order so reruns touch rows identically.
	ids := make([]CategoryID, 0, len(sums))
	for id := range sums {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if err := e.summaries.UpsertDailySummary(ctx, sums[id]); err != nil {
			return nil, fmt.Errorf("upsert summary %s/%s: %w", day, id, err)
		}
	}

	e.cache.InvalidateDay(day)
	return sums, nil
}

// =============================================================================
// GOAL EVALUATION + COMPLETION RECORD
// =============================================================================

// DayOutcome is the result of evaluating one (day, category) key.
type DayOutcome struct {
	// Summary is the day's aggregated usage, nil when the day has no row.
	Summary *DailySummary

	// Evaluation reflects the CURRENT goal config. The record's verdict
	// may differ if the config changed after the record was created.
	Evaluation Evaluation

	// Exactly one of these is non-zero for an evaluated day: a met goal
	// owes a reward, an unmet goal owes a punishment, never both.
	RewardQuantity int64
	PunishQuantity int64

	// Record is the stored completion record, nil when none was created
	// (no usage data, or no goal config).
	Record *CompletionRecord
}

// RunGoalEvaluationAndRecord evaluates the day's usage for a category and
// ensures a completion record exists. The record is created at most once
// per key; its verdict is frozen at first observation and a later config
// edit does not change it.
//
// No daily summary row means "no data": nothing is evaluated or recorded.
// No goal config means "skip": evaluated as NoConfig, nothing recorded.
func (e *Engine) RunGoalEvaluationAndRecord(ctx context.Context, day Day, categoryID CategoryID) (*DayOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evaluateAndRecordLocked(ctx, day, categoryID)
}

func (e *Engine) evaluateAndRecordLocked(ctx context.Context, day Day, categoryID CategoryID) (*DayOutcome, error) {
	summary, err := e.summaries.GetDailySummary(ctx, day, categoryID)
	if err != nil {
		return nil, fmt.Errorf("get summary %s/%s: %w", day, categoryID, err)
	}
	if summary == nil {
		return &DayOutcome{Evaluation: Evaluation{Status: EvalNoData}}, nil
	}

	goal, err := e.goals.GetGoal(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("get goal %s: %w", categoryID, err)
	}

	outcome := &DayOutcome{
		Summary:    summary,
		Evaluation: Evaluate(summary.TotalSeconds, goal),
	}
	if outcome.Evaluation.Status == EvalNoConfig {
		return outcome, nil
	}

	if outcome.Evaluation.Met {
		outcome.RewardQuantity = ComputeQuantity(outcome.Evaluation.DeltaSeconds, goal.Reward)
	} else {
		outcome.PunishQuantity = ComputeQuantity(outcome.Evaluation.DeltaSeconds, goal.Punish)
	}

	_, stored, err := e.summaries.CreateCompletionRecord(ctx, CompletionRecord{
		Day:               day,
		CategoryID:        categoryID,
		GoalMet:           outcome.Evaluation.Met,
		RewardDonePercent: decimal.Zero,
		PunishDonePercent: decimal.Zero,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure record %s/%s: %w", day, categoryID, err)
	}
	outcome.Record = &stored

	return outcome, nil
}

// =============================================================================
// PROGRESS MARKING
// =============================================================================

var percentHundred = decimal.NewFromInt(100)

// MarkRewardProgress overwrites the reward completion percentage for an
// existing record. Percent must be within [0, 100].
func (e *Engine) MarkRewardProgress(ctx context.Context, day Day, categoryID CategoryID, percent decimal.Decimal) error {
	if err := validatePercent(percent); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summaries.SetRewardProgress(ctx, day, categoryID, percent)
}

// MarkPunishProgress overwrites the punishment completion percentage for
// an existing record. Percent must be within [0, 100].
func (e *Engine) MarkPunishProgress(ctx context.Context, day Day, categoryID CategoryID, percent decimal.Decimal) error {
	if err := validatePercent(percent); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summaries.SetPunishProgress(ctx, day, categoryID, percent)
}

func validatePercent(percent decimal.Decimal) error {
	if percent.IsNegative() || percent.GreaterThan(percentHundred) {
		return &InvalidPercentError{Value: percent.String()}
	}
	return nil
}

// =============================================================================
// PERIOD ROLLUP
// =============================================================================

// RunPeriodRollup recomputes the period summary identified by its key:
// "2006-01" for a month, a week-start day for a week. The new row replaces
// the prior one wholesale.
func (e *Engine) RunPeriodRollup(ctx context.Context, categoryID CategoryID, periodKey string) (PeriodSummary, error) {
	if len(periodKey) == len("2006-01") {
		month, err := ParseMonthKey(periodKey)
		if err != nil {
			return PeriodSummary{}, err
		}
		return e.RollupMonth(ctx, categoryID, month)
	}
	day, err := ParseDay(periodKey)
	if err != nil {
		return PeriodSummary{}, err
	}
	return e.RollupWeek(ctx, categoryID, day)
}

// RollupWeek recomputes the weekly summary for the week containing the
// given day. The average counts only days with a daily summary row.
func (e *Engine) RollupWeek(ctx context.Context, categoryID CategoryID, day Day) (PeriodSummary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rollupWeekLocked(ctx, categoryID, day)
}

func (e *Engine) rollupWeekLocked(ctx context.Context, categoryID CategoryID, day Day) (PeriodSummary, error) {
	start := day.WeekStart()
	key := start.String()
	if cached, ok := e.cache.Get(key, categoryID); ok {
		return cached, nil
	}
	return e.rollupRangeLocked(ctx, categoryID, key, PeriodWeek, start, start.AddDays(6))
}

// RollupMonth recomputes the monthly summary for the month containing the
// given day.
func (e *Engine) RollupMonth(ctx context.Context, categoryID CategoryID, day Day) (PeriodSummary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rollupMonthLocked(ctx, categoryID, day)
}

func (e *Engine) rollupMonthLocked(ctx context.Context, categoryID CategoryID, day Day) (PeriodSummary, error) {
	key := day.MonthKey()
	if cached, ok := e.cache.Get(key, categoryID); ok {
		return cached, nil
	}
	return e.rollupRangeLocked(ctx, categoryID, key, PeriodMonth, day.MonthStart(), day.MonthEnd())
}

func (e *Engine) rollupRangeLocked(ctx context.Context, categoryID CategoryID, key string, ptype PeriodType, from, to Day) (PeriodSummary, error) {
	rows, err := e.summaries.ListDailySummaries(ctx, categoryID, from, to)
	if err != nil {
		return PeriodSummary{}, fmt.Errorf("list summaries %s/%s: %w", key, categoryID, err)
	}

	summary := PeriodSummary{
		PeriodKey:       key,
		PeriodType:      ptype,
		CategoryID:      categoryID,
		AvgDailySeconds: decimal.Zero,
		DayCount:        len(rows),
	}
	if len(rows) > 0 {
		var total int64
		for _, r := range rows {
			total += r.TotalSeconds
		}
		summary.AvgDailySeconds = decimal.NewFromInt(total).Div(decimal.NewFromInt(int64(len(rows))))
	}

	if err := e.summaries.UpsertPeriodSummary(ctx, summary); err != nil {
		return PeriodSummary{}, fmt.Errorf("upsert period %s/%s: %w", key, categoryID, err)
	}
	e.cache.Put(summary)

	return summary, nil
}

// =============================================================================
// WEEK COMPLETION
// =============================================================================

// WeekCompletion returns the fraction of goal-met days for the week,
// scanning from the week's Monday up to but excluding today. The
// denominator therefore depends on the day of the week the call runs on;
// today is an explicit argument so the behavior is reproducible.
func (e *Engine) WeekCompletion(ctx context.Context, categoryID CategoryID, weekStart Day, today Day) (decimal.Decimal, error) {
	start := weekStart.WeekStart()
	end := start.AddDays(7)
	if today.Before(end) {
		end = today
	}

	days := DaysBetween(start, end)
	if days <= 0 {
		return decimal.Zero, nil
	}

	records, err := e.summaries.ListCompletionRecords(ctx, categoryID, start, end.AddDays(-1))
	if err != nil {
		return decimal.Zero, fmt.Errorf("list records %s/%s: %w", start, categoryID, err)
	}

	var met int64
	for _, r := range records {
		if r.GoalMet {
			met++
		}
	}

	return decimal.NewFromInt(met).Div(decimal.NewFromInt(int64(days))), nil
}
