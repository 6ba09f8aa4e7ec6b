/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements the session feed, goal configuration store and summary store
  using SQLite. In production the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  engine.SessionFeed:     Recorded usage sessions (plus the recording side)
  engine.GoalStore:       Per-category goal configuration
  engine.SummaryStore:    Daily/period summaries and completion records
  engine.RebuildRunStore: Historical rebuild audit rows

UPSERT DISCIPLINE:
  Summary tables are written with INSERT ... ON CONFLICT DO UPDATE so each
  write replaces the row for its key atomically. Completion records use
  ON CONFLICT DO NOTHING: the first insert wins and the stored verdict is
  frozen until a rebuild wipes the table.

KEY TABLES:
  sessions:           Immutable usage sessions (the feed)
  goal_configs:       One active goal per category
  daily_summaries:    Per (day, category) usage totals
  period_summaries:   Weekly/monthly averages
  completion_records: Frozen verdicts + user-reported progress
  rebuild_runs:       Rebuild audit trail

CONCURRENCY:
  Uses sync.RWMutex for thread-safety plus WAL mode so readers don't block
  the single writer. The engine additionally serializes logical writes; the
  store only has to keep each single upsert atomic.

USAGE:
  store, err := sqlite.New("./data/usage.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  eng := engine.New(store, store, store, engine.Config{Runs: store})

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/screenloop/usage-engine/engine"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Sessions (immutable usage feed)
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		category_id TEXT NOT NULL,
		day TEXT NOT NULL,
		start_at TEXT NOT NULL,
		duration_seconds INTEGER NOT NULL CHECK (duration_seconds >= 0),
		is_virtual BOOLEAN NOT NULL DEFAULT FALSE,
		source_id TEXT,
		created_at TEXT NOT NULL
	);

	-- Replay enumerates distinct days; listing filters by day (hot path)
	CREATE INDEX IF NOT EXISTS idx_sessions_day
		ON sessions(day, start_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_category
		ON sessions(category_id, day);

	-- Goal configuration (one active config per category)
	CREATE TABLE IF NOT EXISTS goal_configs (
		category_id TEXT PRIMARY KEY,
		daily_goal_minutes INTEGER NOT NULL CHECK (daily_goal_minutes > 0),
		condition TEXT NOT NULL,
		reward_label TEXT NOT NULL DEFAULT '',
		reward_quantity_per_unit INTEGER NOT NULL DEFAULT 0,
		reward_unit_label TEXT NOT NULL DEFAULT '',
		reward_time_unit TEXT NOT NULL DEFAULT 'hour',
		punish_label TEXT NOT NULL DEFAULT '',
		punish_quantity_per_unit INTEGER NOT NULL DEFAULT 0,
		punish_unit_label TEXT NOT NULL DEFAULT '',
		punish_time_unit TEXT NOT NULL DEFAULT 'hour',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Daily summaries (overwrite-upsert per key)
	CREATE TABLE IF NOT EXISTS daily_summaries (
		day TEXT NOT NULL,
		category_id TEXT NOT NULL,
		total_seconds INTEGER NOT NULL CHECK (total_seconds >= 0),
		real_seconds INTEGER NOT NULL DEFAULT 0,
		virtual_seconds INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (day, category_id)
	);

	CREATE INDEX IF NOT EXISTS idx_daily_summaries_category_day
		ON daily_summaries(category_id, day);

	-- Period summaries (weekly and monthly, fully derived)
	CREATE TABLE IF NOT EXISTS period_summaries (
		period_key TEXT NOT NULL,
		period_type TEXT NOT NULL,
		category_id TEXT NOT NULL,
		avg_daily_seconds TEXT NOT NULL,
		day_count INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (period_key, category_id)
	);

	-- Completion records (insert-once; verdict frozen until rebuild)
	CREATE TABLE IF NOT EXISTS completion_records (
		day TEXT NOT NULL,
		category_id TEXT NOT NULL,
		goal_met BOOLEAN NOT NULL,
		reward_done_percent TEXT NOT NULL DEFAULT '0',
		punish_done_percent TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		PRIMARY KEY (day, category_id)
	);

	CREATE INDEX IF NOT EXISTS idx_completion_records_category_day
		ON completion_records(category_id, day);

	-- Rebuild runs (audit trail)
	CREATE TABLE IF NOT EXISTS rebuild_runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'running',
		dates_replayed INTEGER NOT NULL DEFAULT 0,
		dates_skipped INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_rebuild_runs_started
		ON rebuild_runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// storeErr wraps driver failures so callers can match ErrStoreUnavailable.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", engine.ErrStoreUnavailable, op, err)
}

// =============================================================================
// SESSION FEED (engine.SessionFeed interface + recording side)
// =============================================================================

// RecordSession validates and persists a session. This is the boundary
// where invalid input is rejected; the aggregator never sees it.
func (s *Store) RecordSession(ctx context.Context, sess engine.Session) error {
	if err := engine.ValidateSession(sess); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions
		(id, category_id, day, start_at, duration_seconds, is_virtual, source_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		sess.CategoryID,
		sess.Day().String(),
		sess.StartAt.UTC().Format(time.RFC3339),
		sess.DurationSeconds,
		sess.Virtual,
		sess.SourceID,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return storeErr("record session", err)
	}
	return nil
}

// ListSessions returns the day's sessions ordered by start time.
func (s *Store) ListSessions(ctx context.Context, day engine.Day) ([]engine.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT category_id, start_at, duration_seconds, is_virtual, source_id
		FROM sessions
		WHERE day = ?
		ORDER BY start_at ASC, created_at ASC`,
		day.String(),
	)
	if err != nil {
		return nil, storeErr("list sessions", err)
	}
	defer rows.Close()

	var sessions []engine.Session
	for rows.Next() {
		var (
			sess     engine.Session
			startAt  string
			sourceID sql.NullString
		)
		if err := rows.Scan(&sess.CategoryID, &startAt, &sess.DurationSeconds, &sess.Virtual, &sourceID); err != nil {
			return nil, storeErr("scan session", err)
		}
		t, err := time.Parse(time.RFC3339, startAt)
		if err != nil {
			return nil, storeErr("parse session start", err)
		}
		sess.StartAt = t
		sess.SourceID = sourceID.String
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list sessions", err)
	}
	return sessions, nil
}

// ListAllDates returns every distinct day with sessions, ascending.
func (s *Store) ListAllDates(ctx context.Context) ([]engine.Day, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT day FROM sessions ORDER BY day ASC`)
	if err != nil {
		return nil, storeErr("list dates", err)
	}
	defer rows.Close()

	var days []engine.Day
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, storeErr("scan date", err)
		}
		d, err := engine.ParseDay(key)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list dates", err)
	}
	return days, nil
}

// =============================================================================
// GOAL STORE (engine.GoalStore interface + configuration side)
// =============================================================================

// SaveGoalConfig installs or replaces a category's goal config.
func (s *Store) SaveGoalConfig(ctx context.Context, g engine.GoalConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO goal_configs
		(category_id, daily_goal_minutes, condition,
		 reward_label, reward_quantity_per_unit, reward_unit_label, reward_time_unit,
		 punish_label, punish_quantity_per_unit, punish_unit_label, punish_time_unit,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(category_id) DO UPDATE SET
			daily_goal_minutes = excluded.daily_goal_minutes,
			condition = excluded.condition,
			reward_label = excluded.reward_label,
			reward_quantity_per_unit = excluded.reward_quantity_per_unit,
			reward_unit_label = excluded.reward_unit_label,
			reward_time_unit = excluded.reward_time_unit,
			punish_label = excluded.punish_label,
			punish_quantity_per_unit = excluded.punish_quantity_per_unit,
			punish_unit_label = excluded.punish_unit_label,
			punish_time_unit = excluded.punish_time_unit,
			updated_at = excluded.updated_at`,
		g.CategoryID, g.DailyGoalMinutes, g.Condition,
		g.Reward.Label, g.Reward.QuantityPerUnit, g.Reward.UnitLabel, g.Reward.TimeUnit,
		g.Punish.Label, g.Punish.QuantityPerUnit, g.Punish.UnitLabel, g.Punish.TimeUnit,
		now, now,
	)
	if err != nil {
		return storeErr("save goal config", err)
	}
	return nil
}

// GetGoal returns the category's goal config, or (nil, nil) when absent.
func (s *Store) GetGoal(ctx context.Context, categoryID engine.CategoryID) (*engine.GoalConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT category_id, daily_goal_minutes, condition,
		       reward_label, reward_quantity_per_unit, reward_unit_label, reward_time_unit,
		       punish_label, punish_quantity_per_unit, punish_unit_label, punish_time_unit
		FROM goal_configs WHERE category_id = ?`,
		categoryID,
	)

	g, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get goal", err)
	}
	return g, nil
}

// ListGoalConfigs returns all configured goals, ordered by category.
func (s *Store) ListGoalConfigs(ctx context.Context) ([]engine.GoalConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT category_id, daily_goal_minutes, condition,
		       reward_label, reward_quantity_per_unit, reward_unit_label, reward_time_unit,
		       punish_label, punish_quantity_per_unit, punish_unit_label, punish_time_unit
		FROM goal_configs ORDER BY category_id ASC`)
	if err != nil {
		return nil, storeErr("list goals", err)
	}
	defer rows.Close()

	var goals []engine.GoalConfig
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, storeErr("scan goal", err)
		}
		goals = append(goals, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list goals", err)
	}
	return goals, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGoal(row rowScanner) (*engine.GoalConfig, error) {
	var g engine.GoalConfig
	err := row.Scan(
		&g.CategoryID, &g.DailyGoalMinutes, &g.Condition,
		&g.Reward.Label, &g.Reward.QuantityPerUnit, &g.Reward.UnitLabel, &g.Reward.TimeUnit,
		&g.Punish.Label, &g.Punish.QuantityPerUnit, &g.Punish.UnitLabel, &g.Punish.TimeUnit,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// =============================================================================
// SUMMARY STORE (engine.SummaryStore interface)
// =============================================================================

// UpsertDailySummary replaces the summary row for (day, category).
func (s *Store) UpsertDailySummary(ctx context.Context, sum engine.DailySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_summaries
		(day, category_id, total_seconds, real_seconds, virtual_seconds, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(day, category_id) DO UPDATE SET
			total_seconds = excluded.total_seconds,
			real_seconds = excluded.real_seconds,
			virtual_seconds = excluded.virtual_seconds,
			updated_at = excluded.updated_at`,
		sum.Day.String(), sum.CategoryID,
		sum.TotalSeconds, sum.RealSeconds, sum.VirtualSeconds,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return storeErr("upsert daily summary", err)
	}
	return nil
}

// GetDailySummary returns the row for the key, or (nil, nil).
func (s *Store) GetDailySummary(ctx context.Context, day engine.Day, categoryID engine.CategoryID) (*engine.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		sum engine.DailySummary
		key string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT day, category_id, total_seconds, real_seconds, virtual_seconds
		FROM daily_summaries WHERE day = ? AND category_id = ?`,
		day.String(), categoryID,
	).Scan(&key, &sum.CategoryID, &sum.TotalSeconds, &sum.RealSeconds, &sum.VirtualSeconds)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get daily summary", err)
	}
	if sum.Day, err = engine.ParseDay(key); err != nil {
		return nil, err
	}
	return &sum, nil
}

// ListDailySummaries returns rows in [from, to], ascending by day.
func (s *Store) ListDailySummaries(ctx context.Context, categoryID engine.CategoryID, from, to engine.Day) ([]engine.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT day, category_id, total_seconds, real_seconds, virtual_seconds
		FROM daily_summaries
		WHERE category_id = ? AND day >= ? AND day <= ?
		ORDER BY day ASC`,
		categoryID, from.String(), to.String(),
	)
	if err != nil {
		return nil, storeErr("list daily summaries", err)
	}
	defer rows.Close()

	var sums []engine.DailySummary
	for rows.Next() {
		var (
			sum engine.DailySummary
			key string
		)
		if err := rows.Scan(&key, &sum.CategoryID, &sum.TotalSeconds, &sum.RealSeconds, &sum.VirtualSeconds); err != nil {
			return nil, storeErr("scan daily summary", err)
		}
		if sum.Day, err = engine.ParseDay(key); err != nil {
			return nil, err
		}
		sums = append(sums, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list daily summaries", err)
	}
	return sums, nil
}

// UpsertPeriodSummary replaces the period row for (key, category).
func (s *Store) UpsertPeriodSummary(ctx context.Context, sum engine.PeriodSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO period_summaries
		(period_key, period_type, category_id, avg_daily_seconds, day_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(period_key, category_id) DO UPDATE SET
			period_type = excluded.period_type,
			avg_daily_seconds = excluded.avg_daily_seconds,
			day_count = excluded.day_count,
			updated_at = excluded.updated_at`,
		sum.PeriodKey, sum.PeriodType, sum.CategoryID,
		sum.AvgDailySeconds.String(), sum.DayCount,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return storeErr("upsert period summary", err)
	}
	return nil
}

// GetPeriodSummary returns the row for the key, or (nil, nil).
func (s *Store) GetPeriodSummary(ctx context.Context, periodKey string, categoryID engine.CategoryID) (*engine.PeriodSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		sum engine.PeriodSummary
		avg string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT period_key, period_type, category_id, avg_daily_seconds, day_count
		FROM period_summaries WHERE period_key = ? AND category_id = ?`,
		periodKey, categoryID,
	).Scan(&sum.PeriodKey, &sum.PeriodType, &sum.CategoryID, &avg, &sum.DayCount)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get period summary", err)
	}
	sum.AvgDailySeconds = parseDecimal(avg)
	return &sum, nil
}

// CreateCompletionRecord inserts the record if absent. The first insert
// wins; an existing row is returned unchanged.
func (s *Store) CreateCompletionRecord(ctx context.Context, r engine.CompletionRecord) (bool, engine.CompletionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO completion_records
		(day, category_id, goal_met, reward_done_percent, punish_done_percent, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(day, category_id) DO NOTHING`,
		r.Day.String(), r.CategoryID, r.GoalMet,
		r.RewardDonePercent.String(), r.PunishDonePercent.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, engine.CompletionRecord{}, storeErr("create completion record", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, engine.CompletionRecord{}, storeErr("create completion record", err)
	}
	if affected > 0 {
		return true, r, nil
	}

	stored, err := s.getCompletionRecordLocked(ctx, r.Day, r.CategoryID)
	if err != nil {
		return false, engine.CompletionRecord{}, err
	}
	return false, *stored, nil
}

// GetCompletionRecord returns the record, or (nil, nil) when absent.
func (s *Store) GetCompletionRecord(ctx context.Context, day engine.Day, categoryID engine.CategoryID) (*engine.CompletionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getCompletionRecordLocked(ctx, day, categoryID)
}

func (s *Store) getCompletionRecordLocked(ctx context.Context, day engine.Day, categoryID engine.CategoryID) (*engine.CompletionRecord, error) {
	var (
		r         engine.CompletionRecord
		key       string
		rewardPct string
		punishPct string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT day, category_id, goal_met, reward_done_percent, punish_done_percent
		FROM completion_records WHERE day = ? AND category_id = ?`,
		day.String(), categoryID,
	).Scan(&key, &r.CategoryID, &r.GoalMet, &rewardPct, &punishPct)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get completion record", err)
	}
	if r.Day, err = engine.ParseDay(key); err != nil {
		return nil, err
	}
	r.RewardDonePercent = parseDecimal(rewardPct)
	r.PunishDonePercent = parseDecimal(punishPct)
	return &r, nil
}

// ListCompletionRecords returns records in [from, to], ascending by day.
func (s *Store) ListCompletionRecords(ctx context.Context, categoryID engine.CategoryID, from, to engine.Day) ([]engine.CompletionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT day, category_id, goal_met, reward_done_percent, punish_done_percent
		FROM completion_records
		WHERE category_id = ? AND day >= ? AND day <= ?
		ORDER BY day ASC`,
		categoryID, from.String(), to.String(),
	)
	if err != nil {
		return nil, storeErr("list completion records", err)
	}
	defer rows.Close()

	var records []engine.CompletionRecord
	for rows.Next() {
		var (
			r         engine.CompletionRecord
			key       string
			rewardPct string
			punishPct string
		)
		if err := rows.Scan(&key, &r.CategoryID, &r.GoalMet, &rewardPct, &punishPct); err != nil {
			return nil, storeErr("scan completion record", err)
		}
		if r.Day, err = engine.ParseDay(key); err != nil {
			return nil, err
		}
		r.RewardDonePercent = parseDecimal(rewardPct)
		r.PunishDonePercent = parseDecimal(punishPct)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list completion records", err)
	}
	return records, nil
}

// SetRewardProgress overwrites the reward completion percentage.
func (s *Store) SetRewardProgress(ctx context.Context, day engine.Day, categoryID engine.CategoryID, percent decimal.Decimal) error {
	return s.setProgress(ctx, day, categoryID, percent, "reward_done_percent")
}

// SetPunishProgress overwrites the punishment completion percentage.
func (s *Store) SetPunishProgress(ctx context.Context, day engine.Day, categoryID engine.CategoryID, percent decimal.Decimal) error {
	return s.setProgress(ctx, day, categoryID, percent, "punish_done_percent")
}

func (s *Store) setProgress(ctx context.Context, day engine.Day, categoryID engine.CategoryID, percent decimal.Decimal, column string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// column is one of two compile-time constants, never user input.
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE completion_records SET %s = ? WHERE day = ? AND category_id = ?`, column),
		percent.String(), day.String(), categoryID,
	)
	if err != nil {
		return storeErr("set progress", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr("set progress", err)
	}
	if affected == 0 {
		return engine.ErrNotFound
	}
	return nil
}

// ClearAggregates deletes all derived rows atomically. Sessions and goal
// configs survive: only aggregates are rebuilt.
func (s *Store) ClearAggregates(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("clear aggregates", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"daily_summaries", "period_summaries", "completion_records"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return storeErr("clear "+table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("clear aggregates", err)
	}
	return nil
}

// =============================================================================
// REBUILD RUN STORE (engine.RebuildRunStore interface)
// =============================================================================

// SaveRebuildRun inserts or updates a rebuild run record.
func (s *Store) SaveRebuildRun(ctx context.Context, run engine.RebuildRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var completedAt any
	if run.CompletedAt != nil {
		completedAt = run.CompletedAt.UTC().Format(time.RFC3339)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rebuild_runs
		(id, status, dates_replayed, dates_skipped, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			dates_replayed = excluded.dates_replayed,
			dates_skipped = excluded.dates_skipped,
			error = excluded.error,
			completed_at = excluded.completed_at`,
		run.ID, run.Status, run.DatesReplayed, run.DatesSkipped,
		nullString(run.Error),
		run.StartedAt.UTC().Format(time.RFC3339),
		completedAt,
	)
	if err != nil {
		return storeErr("save rebuild run", err)
	}
	return nil
}

// ListRebuildRuns returns rebuild runs, most recent first.
func (s *Store) ListRebuildRuns(ctx context.Context) ([]engine.RebuildRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, dates_replayed, dates_skipped, error, started_at, completed_at
		FROM rebuild_runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, storeErr("list rebuild runs", err)
	}
	defer rows.Close()

	var runs []engine.RebuildRun
	for rows.Next() {
		var (
			run         engine.RebuildRun
			errText     sql.NullString
			startedAt   string
			completedAt sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Status, &run.DatesReplayed, &run.DatesSkipped,
			&errText, &startedAt, &completedAt); err != nil {
			return nil, storeErr("scan rebuild run", err)
		}
		run.Error = errText.String
		if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
			run.StartedAt = t
		}
		if completedAt.Valid {
			if t, err := time.Parse(time.RFC3339, completedAt.String); err == nil {
				run.CompletedAt = &t
			}
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list rebuild runs", err)
	}
	return runs, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Compile-time interface checks.
var (
	_ engine.SessionFeed     = (*Store)(nil)
	_ engine.GoalStore       = (*Store)(nil)
	_ engine.SummaryStore    = (*Store)(nil)
	_ engine.RebuildRunStore = (*Store)(nil)
)
