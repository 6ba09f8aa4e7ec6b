/*
store.go - Persistence interfaces for sessions, goals and summaries

PURPOSE:
  Defines the boundary between the engine and its collaborators. The
  engine consumes a session feed and a goal configuration store, and owns
  a summary store. Different implementations can use SQLite or in-memory
  storage.

KEY INTERFACES:
  SessionFeed:  Ordered, read-only usage sessions (external feed)
  GoalStore:    Per-category goal configuration (external, read-only)
  SummaryStore: Daily/period summaries and completion records (owned)

OVERWRITE-UPSERT CONTRACT:
  Every summary write replaces the row for its key wholesale. There is no
  partial update. CreateCompletionRecord is the single create-if-absent
  write: it never overwrites an existing row, which is what freezes the
  goal verdict at first observation.

CONCURRENCY:
  Callers must serialize writes per (day, category) key; the Engine does
  this with a single writer mutex. Reads may run concurrently with writes
  and observe either the pre- or post-update row, provided the store
  performs each upsert atomically.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - engine/store: In-memory for testing/dev

SEE ALSO:
  - engine.go: The operations driving these interfaces
  - rebuild.go: ClearAggregates usage during historical rebuild
*/
package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SESSION FEED - Read-only usage input
// =============================================================================

// SessionFeed supplies recorded usage sessions. The engine only reads
// sessions; recording them is a boundary concern of the feed owner.
type SessionFeed interface {
	// ListSessions returns all sessions that started on the given day,
	// ordered by start time.
	ListSessions(ctx context.Context, day Day) ([]Session, error)

	// ListAllDates returns every distinct day with at least one session,
	// ascending. Drives the historical rebuild replay.
	ListAllDates(ctx context.Context) ([]Day, error)
}

// =============================================================================
// GOAL STORE - Read-only configuration
// =============================================================================

// GoalStore supplies goal configuration. At most one active config exists
// per category.
type GoalStore interface {
	// GetGoal returns the category's goal config, or (nil, nil) when no
	// config exists. Absence is not an error: callers treat it as "skip
	// reward/punish, no record created".
	GetGoal(ctx context.Context, categoryID CategoryID) (*GoalConfig, error)
}

// =============================================================================
// SUMMARY STORE - Owned aggregate state
// =============================================================================

// SummaryStore persists the engine's derived tables. All writes are
// overwrite-upserts except CreateCompletionRecord.
type SummaryStore interface {
	// UpsertDailySummary replaces the summary row for (Day, CategoryID).
	UpsertDailySummary(ctx context.Context, s DailySummary) error

	// GetDailySummary returns the row for the key, or (nil, nil) if the
	// day has no data for the category.
	GetDailySummary(ctx context.Context, day Day, categoryID CategoryID) (*DailySummary, error)

	// ListDailySummaries returns rows for the category in [from, to],
	// ascending by day. Days with no row are simply absent.
	ListDailySummaries(ctx context.Context, categoryID CategoryID, from, to Day) ([]DailySummary, error)

	// UpsertPeriodSummary replaces the period row for (PeriodKey, CategoryID).
	UpsertPeriodSummary(ctx context.Context, s PeriodSummary) error

	// GetPeriodSummary returns the row for the key, or (nil, nil).
	GetPeriodSummary(ctx context.Context, periodKey string, categoryID CategoryID) (*PeriodSummary, error)

	// CreateCompletionRecord inserts the record if no row exists for its
	// key and reports whether it was created. When a row already exists it
	// is returned unchanged: the stored verdict wins, always.
	CreateCompletionRecord(ctx context.Context, r CompletionRecord) (created bool, stored CompletionRecord, err error)

	// GetCompletionRecord returns the record, or (nil, nil) when the day
	// has no usage data recorded. Absence is not an error.
	GetCompletionRecord(ctx context.Context, day Day, categoryID CategoryID) (*CompletionRecord, error)

	// ListCompletionRecords returns records for the category in [from, to],
	// ascending by day.
	ListCompletionRecords(ctx context.Context, categoryID CategoryID, from, to Day) ([]CompletionRecord, error)

	// SetRewardProgress overwrites the stored reward completion percentage.
	// Returns ErrNotFound if no record exists for the key.
	SetRewardProgress(ctx context.Context, day Day, categoryID CategoryID, percent decimal.Decimal) error

	// SetPunishProgress overwrites the stored punishment completion
	// percentage. Returns ErrNotFound if no record exists for the key.
	SetPunishProgress(ctx context.Context, day Day, categoryID CategoryID, percent decimal.Decimal) error

	// ClearAggregates deletes ALL daily summaries, period summaries and
	// completion records in one atomic operation. Used only by the
	// historical rebuild; a failure here aborts the rebuild.
	ClearAggregates(ctx context.Context) error
}
