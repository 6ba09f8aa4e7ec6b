/*
Package engine provides the usage aggregation and goal evaluation engine.

PURPOSE:
  This package contains the types and algorithms that turn raw timestamped
  usage sessions into daily summary tables, goal-met verdicts, and concrete
  reward/punishment quantities. The same pipeline serves both live daily
  aggregation and the full historical rebuild used for repair and migration.

KEY CONCEPTS IN THIS FILE (types.go):
  - Session: A single span of app/activity usage (read-only input)
  - DailySummary: Per (day, category) usage totals, real vs. virtual
  - GoalConfig: A category's daily goal plus reward/punishment units
  - CompletionRecord: Frozen goal verdict + user-reported completion
  - PeriodSummary: Weekly/monthly average-per-day derived figures

DESIGN PRINCIPLES:
  1. Overwrite-upsert: summaries are replaced wholesale, never patched
  2. Frozen verdicts: a completion record's goal_met never changes after
     creation; only an explicit rebuild recomputes it
  3. Precision: derived averages and percentages use decimal.Decimal,
     exact integer work stays on int64 seconds
  4. Type safety: CategoryID and Day keys prevent mixing identifiers

USAGE:
  sums := engine.AggregateDay(day, sessions, "")
  eval := engine.Evaluate(sums["games"].TotalSeconds, goal)
  qty  := engine.ComputeQuantity(eval.DeltaSeconds, goal.Punish)

SEE ALSO:
  - day.go: Calendar day/week/month key derivation
  - goal.go: Goal evaluation
  - quantity.go: Reward/punishment unit conversion
  - engine.go: The caller-facing operations
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// CategoryID identifies a user-defined usage bucket (e.g. "entertainment").
type CategoryID string

// =============================================================================
// SESSION - Raw usage input (owned by the session feed, read-only here)
// =============================================================================

// Session is a single recorded span of usage. Immutable once recorded.
// Virtual sessions are manually logged offline activity, as opposed to
// automatically detected on-device usage.
type Session struct {
	CategoryID      CategoryID
	StartAt         time.Time
	DurationSeconds int64
	Virtual         bool
	SourceID        string
}

// Day returns the calendar day the session started on.
func (s Session) Day() Day { return DayOf(s.StartAt) }

// =============================================================================
// DAILY SUMMARY - Per (day, category) usage totals
// =============================================================================

// DailySummary holds a category's usage totals for one calendar day.
// Unique key (Day, CategoryID). Always replaced wholesale by a recompute
// pass, never partially updated.
type DailySummary struct {
	Day            Day
	CategoryID     CategoryID
	TotalSeconds   int64
	RealSeconds    int64
	VirtualSeconds int64
}

// =============================================================================
// GOAL CONFIGURATION
// =============================================================================

// GoalCondition is the goal policy: usage must not exceed the goal, or
// usage must reach it.
type GoalCondition string

const (
	ConditionAtMost  GoalCondition = "at_most"
	ConditionAtLeast GoalCondition = "at_least"
)

// TimeUnit sizes one reward/punishment unit of time delta.
type TimeUnit string

const (
	UnitSecond TimeUnit = "second"
	UnitMinute TimeUnit = "minute"
	UnitHour   TimeUnit = "hour"
)

// Seconds returns the unit length in seconds. Unrecognized or empty units
// default to an hour, the coarsest granularity.
func (u TimeUnit) Seconds() int64 {
	switch u {
	case UnitSecond:
		return 1
	case UnitMinute:
		return 60
	default:
		return 3600
	}
}

// UnitSpec describes how a time delta converts into a concrete quantity,
// e.g. {Label: "push-ups", QuantityPerUnit: 30, UnitLabel: "reps",
// TimeUnit: hour} means 30 push-ups per started hour.
type UnitSpec struct {
	Label           string
	QuantityPerUnit int64
	UnitLabel       string
	TimeUnit        TimeUnit
}

// GoalConfig is a category's daily usage goal. At most one active config
// exists per category; the engine only reads these.
type GoalConfig struct {
	CategoryID       CategoryID
	DailyGoalMinutes int64
	Condition        GoalCondition
	Reward           UnitSpec
	Punish           UnitSpec
}

// GoalSeconds returns the daily goal in seconds.
func (g GoalConfig) GoalSeconds() int64 { return g.DailyGoalMinutes * 60 }

// =============================================================================
// COMPLETION RECORD - Frozen verdict + user-reported progress
// =============================================================================

// CompletionRecord captures the goal verdict for one (day, category) the
// first time that key has usage data. GoalMet is frozen at creation; a
// later goal config edit does not change it, only a rebuild does.
// Percentages are user-reported and default to zero.
type CompletionRecord struct {
	Day               Day
	CategoryID        CategoryID
	GoalMet           bool
	RewardDonePercent decimal.Decimal
	PunishDonePercent decimal.Decimal
}

// RewardDone reports whether any reward progress was marked.
func (r CompletionRecord) RewardDone() bool { return r.RewardDonePercent.IsPositive() }

// PunishDone reports whether any punishment progress was marked.
func (r CompletionRecord) PunishDone() bool { return r.PunishDonePercent.IsPositive() }

// =============================================================================
// PERIOD SUMMARY - Weekly/monthly derived figures
// =============================================================================

// PeriodType distinguishes weekly from monthly summaries.
type PeriodType string

const (
	PeriodWeek  PeriodType = "week"
	PeriodMonth PeriodType = "month"
)

// PeriodSummary is the average daily usage for a category over a week or
// month. The average is computed only over days that have a DailySummary
// row: a day with an explicit zero lowers the average, a day with no row
// at all is excluded as not yet tracked. Fully derived and replaceable.
type PeriodSummary struct {
	PeriodKey       string // week-start day ("2006-01-02") or month ("2006-01")
	PeriodType      PeriodType
	CategoryID      CategoryID
	AvgDailySeconds decimal.Decimal
	DayCount        int
}
