/*
rebuild.go - Historical rebuild pipeline

PURPOSE:
  Full recompute path used for repair and migration: wipe every derived
  table, replay all historical sessions through the daily aggregator and
  goal evaluator, then re-roll every week and month the replay touched.

STATE MACHINE:
  Idle -> ClearingAggregates -> ReplayingDays -> RollingUpPeriods -> Idle

FAILURE MODEL:
  - A failure during ClearingAggregates is fatal: the rebuild aborts and
    prior state is left untouched. No partial wipe is committed without a
    follow-up replay.
  - A failure replaying one date is logged and the date skipped; the
    rebuild continues. Same for individual period rollups.
  - Progress percentages are reset by the wipe: a rebuild always starts
    from a clean slate, which also makes back-to-back rebuilds over the
    same feed produce identical tables.

EXCLUSIVITY:
  The rebuild holds the engine write mutex end to end, so no live
  aggregation pass can interleave. A second rebuild request while one is
  running returns ErrRebuildRunning instead of queueing.

SEE ALSO:
  - engine.go: The per-date operations the replay reuses
  - store.go: ClearAggregates contract
*/
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// REBUILD STATE
// =============================================================================

// RebuildPhase is the current stage of a historical rebuild.
type RebuildPhase string

const (
	RebuildIdle      RebuildPhase = "idle"
	RebuildClearing  RebuildPhase = "clearing_aggregates"
	RebuildReplaying RebuildPhase = "replaying_days"
	RebuildRollingUp RebuildPhase = "rolling_up_periods"
)

type rebuildState struct {
	mu     sync.Mutex
	phase  RebuildPhase
	active bool
}

func (s *rebuildState) tryStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return false
	}
	s.active = true
	s.phase = RebuildClearing
	return true
}

func (s *rebuildState) setPhase(p RebuildPhase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
}

func (s *rebuildState) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.phase = RebuildIdle
}

// RebuildPhase returns the current rebuild stage, RebuildIdle when none
// is running. Safe to call concurrently with a rebuild.
func (e *Engine) RebuildPhase() RebuildPhase {
	e.rebuild.mu.Lock()
	defer e.rebuild.mu.Unlock()
	if !e.rebuild.active {
		return RebuildIdle
	}
	return e.rebuild.phase
}

// =============================================================================
// RUN AUDIT
// =============================================================================

// RebuildRun is the audit row recorded for each rebuild attempt.
type RebuildRun struct {
	ID            string
	Status        string // "running", "completed", "failed"
	DatesReplayed int
	DatesSkipped  int
	Error         string
	StartedAt     time.Time
	CompletedAt   *time.Time
}

// RebuildRunStore persists rebuild run records. Optional: an engine
// without one simply does not keep rebuild history.
type RebuildRunStore interface {
	SaveRebuildRun(ctx context.Context, run RebuildRun) error
	ListRebuildRuns(ctx context.Context) ([]RebuildRun, error)
}

// RebuildReport summarizes a completed rebuild.
type RebuildReport struct {
	RunID         string
	DatesReplayed int
	SkippedDates  []Day
	WeeksRolled   int
	MonthsRolled  int
}

// =============================================================================
// PIPELINE
// =============================================================================

// RunHistoricalRebuild wipes all derived tables and recomputes them from
// the full session feed. Deterministic: two rebuilds over the same feed
// produce identical daily, period and completion tables.
func (e *Engine) RunHistoricalRebuild(ctx context.Context) (RebuildReport, error) {
	if !e.rebuild.tryStart() {
		return RebuildReport{}, ErrRebuildRunning
	}
	defer e.rebuild.finish()

	e.mu.Lock()
	defer e.mu.Unlock()

	run := RebuildRun{
		ID:        uuid.NewString(),
		Status:    "running",
		StartedAt: time.Now().UTC(),
	}
	e.saveRun(ctx, run)

	report := RebuildReport{RunID: run.ID}

	// Phase 1: clear. Fatal on failure, nothing has been replayed yet.
	if err := e.summaries.ClearAggregates(ctx); err != nil {
		e.failRun(ctx, run, err)
		return report, fmt.Errorf("%w: %w", ErrRebuildClearFailed, err)
	}
	e.cache.InvalidateAll()

	// Phase 2: replay every historical date, ascending.
	e.rebuild.setPhase(RebuildReplaying)

	dates, err := e.sessions.ListAllDates(ctx)
	if err != nil {
		e.failRun(ctx, run, err)
		return report, fmt.Errorf("list dates: %w", err)
	}

	touchedWeeks := make(map[string]Day)
	touchedMonths := make(map[string]Day)
	seen := make(map[CategoryID]bool)

	for _, day := range dates {
		replayed, err := e.replayDateLocked(ctx, day)
		if err != nil {
			e.logger.Warn("rebuild: skipping date",
				"run", run.ID, "date", day.String(), "error", err)
			report.SkippedDates = append(report.SkippedDates, day)
			continue
		}
		report.DatesReplayed++
		touchedWeeks[day.WeekKey()] = day
		touchedMonths[day.MonthKey()] = day
		for _, id := range replayed {
			seen[id] = true
		}
	}

	// Phase 3: re-roll every touched week and month.
	e.rebuild.setPhase(RebuildRollingUp)

	categories := make([]CategoryID, 0, len(seen))
	for id := range seen {
		categories = append(categories, id)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	for _, day := range sortedDays(touchedWeeks) {
		for _, cat := range categories {
			if _, err := e.rollupWeekLocked(ctx, cat, day); err != nil {
				e.logger.Warn("rebuild: week rollup failed",
					"run", run.ID, "week", day.WeekKey(), "category", string(cat), "error", err)
				continue
			}
		}
		report.WeeksRolled++
	}
	for _, day := range sortedDays(touchedMonths) {
		for _, cat := range categories {
			if _, err := e.rollupMonthLocked(ctx, cat, day); err != nil {
				e.logger.Warn("rebuild: month rollup failed",
					"run", run.ID, "month", day.MonthKey(), "category", string(cat), "error", err)
				continue
			}
		}
		report.MonthsRolled++
	}

	now := time.Now().UTC()
	run.Status = "completed"
	run.DatesReplayed = report.DatesReplayed
	run.DatesSkipped = len(report.SkippedDates)
	run.CompletedAt = &now
	e.saveRun(ctx, run)

	e.logger.Info("rebuild completed",
		"run", run.ID,
		"replayed", report.DatesReplayed,
		"skipped", len(report.SkippedDates),
		"weeks", report.WeeksRolled,
		"months", report.MonthsRolled)

	return report, nil
}

// replayDateLocked runs one date through aggregation, evaluation and
// record creation, returning the categories it touched. Any error fails
// the whole date; the caller skips it.
func (e *Engine) replayDateLocked(ctx context.Context, day Day) ([]CategoryID, error) {
	sums, err := e.aggregateDayLocked(ctx, day)
	if err != nil {
		return nil, err
	}

	ids := make([]CategoryID, 0, len(sums))
	for id := range sums {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if _, err := e.evaluateAndRecordLocked(ctx, day, id); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func (e *Engine) saveRun(ctx context.Context, run RebuildRun) {
	if e.runs == nil {
		return
	}
	if err := e.runs.SaveRebuildRun(ctx, run); err != nil {
		e.logger.Warn("rebuild: run record not saved", "run", run.ID, "error", err)
	}
}

func (e *Engine) failRun(ctx context.Context, run RebuildRun, cause error) {
	now := time.Now().UTC()
	run.Status = "failed"
	run.Error = cause.Error()
	run.CompletedAt = &now
	e.saveRun(ctx, run)
}

func sortedDays(m map[string]Day) []Day {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Day, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}
