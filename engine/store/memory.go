// Package store provides in-memory store implementations for testing/dev.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/screenloop/usage-engine/engine"
)

// =============================================================================
// MEMORY STORE - Implements every engine store interface
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	sessions map[string][]engine.Session // keyed by day string
	goals    map[engine.CategoryID]engine.GoalConfig
	daily    map[dayKey]engine.DailySummary
	periods  map[periodKey]engine.PeriodSummary
	records  map[dayKey]engine.CompletionRecord
	runs     []engine.RebuildRun

	// FailClear makes ClearAggregates fail, for rebuild failure tests.
	FailClear error

	// FailSessionsOn makes ListSessions fail for one day, for partial
	// rebuild failure tests.
	FailSessionsOn map[string]error
}

type dayKey struct {
	Day        string
	CategoryID engine.CategoryID
}

type periodKey struct {
	PeriodKey  string
	CategoryID engine.CategoryID
}

func NewMemory() *Memory {
	return &Memory{
		sessions:       make(map[string][]engine.Session),
		goals:          make(map[engine.CategoryID]engine.GoalConfig),
		daily:          make(map[dayKey]engine.DailySummary),
		periods:        make(map[periodKey]engine.PeriodSummary),
		records:        make(map[dayKey]engine.CompletionRecord),
		FailSessionsOn: make(map[string]error),
	}
}

// =============================================================================
// SESSION FEED
// =============================================================================

// AddSession records a session after boundary validation.
func (m *Memory) AddSession(s engine.Session) error {
	if err := engine.ValidateSession(s); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	day := s.Day().String()
	m.sessions[day] = append(m.sessions[day], s)
	return nil
}

func (m *Memory) ListSessions(_ context.Context, day engine.Day) ([]engine.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err, ok := m.FailSessionsOn[day.String()]; ok {
		return nil, err
	}
	src := m.sessions[day.String()]
	out := make([]engine.Session, len(src))
	copy(out, src)
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (m *Memory) ListAllDates(_ context.Context) ([]engine.Day, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]engine.Day, 0, len(keys))
	for _, k := range keys {
		d, err := engine.ParseDay(k)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// =============================================================================
// GOAL STORE
// =============================================================================

// SetGoal installs or replaces a category's goal config.
func (m *Memory) SetGoal(g engine.GoalConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.goals[g.CategoryID] = g
}

// DeleteGoal removes a category's goal config.
func (m *Memory) DeleteGoal(categoryID engine.CategoryID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.goals, categoryID)
}

func (m *Memory) GetGoal(_ context.Context, categoryID engine.CategoryID) (*engine.GoalConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.goals[categoryID]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

// =============================================================================
// SUMMARY STORE
// =============================================================================

func (m *Memory) UpsertDailySummary(_ context.Context, s engine.DailySummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.daily[dayKey{Day: s.Day.String(), CategoryID: s.CategoryID}] = s
	return nil
}

func (m *Memory) GetDailySummary(_ context.Context, day engine.Day, categoryID engine.CategoryID) (*engine.DailySummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.daily[dayKey{Day: day.String(), CategoryID: categoryID}]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *Memory) ListDailySummaries(_ context.Context, categoryID engine.CategoryID, from, to engine.Day) ([]engine.DailySummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.DailySummary
	for _, s := range m.daily {
		if s.CategoryID != categoryID {
			continue
		}
		if s.Day.AfterOrEqual(from) && s.Day.BeforeOrEqual(to) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (m *Memory) UpsertPeriodSummary(_ context.Context, s engine.PeriodSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.periods[periodKey{PeriodKey: s.PeriodKey, CategoryID: s.CategoryID}] = s
	return nil
}

func (m *Memory) GetPeriodSummary(_ context.Context, key string, categoryID engine.CategoryID) (*engine.PeriodSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.periods[periodKey{PeriodKey: key, CategoryID: categoryID}]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *Memory) CreateCompletionRecord(_ context.Context, r engine.CompletionRecord) (bool, engine.CompletionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := dayKey{Day: r.Day.String(), CategoryID: r.CategoryID}
	if existing, ok := m.records[k]; ok {
		return false, existing, nil
	}
	m.records[k] = r
	return true, r, nil
}

func (m *Memory) GetCompletionRecord(_ context.Context, day engine.Day, categoryID engine.CategoryID) (*engine.CompletionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[dayKey{Day: day.String(), CategoryID: categoryID}]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Memory) ListCompletionRecords(_ context.Context, categoryID engine.CategoryID, from, to engine.Day) ([]engine.CompletionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.CompletionRecord
	for _, r := range m.records {
		if r.CategoryID != categoryID {
			continue
		}
		if r.Day.AfterOrEqual(from) && r.Day.BeforeOrEqual(to) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (m *Memory) SetRewardProgress(_ context.Context, day engine.Day, categoryID engine.CategoryID, percent decimal.Decimal) error {
	return m.setProgress(day, categoryID, percent, true)
}

func (m *Memory) SetPunishProgress(_ context.Context, day engine.Day, categoryID engine.CategoryID, percent decimal.Decimal) error {
	return m.setProgress(day, categoryID, percent, false)
}

func (m *Memory) setProgress(day engine.Day, categoryID engine.CategoryID, percent decimal.Decimal, reward bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := dayKey{Day: day.String(), CategoryID: categoryID}
	r, ok := m.records[k]
	if !ok {
		return engine.ErrNotFound
	}
	if reward {
		r.RewardDonePercent = percent
	} else {
		r.PunishDonePercent = percent
	}
	m.records[k] = r
	return nil
}

func (m *Memory) ClearAggregates(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailClear != nil {
		return m.FailClear
	}
	m.daily = make(map[dayKey]engine.DailySummary)
	m.periods = make(map[periodKey]engine.PeriodSummary)
	m.records = make(map[dayKey]engine.CompletionRecord)
	return nil
}

// =============================================================================
// REBUILD RUN STORE
// =============================================================================

func (m *Memory) SaveRebuildRun(_ context.Context, run engine.RebuildRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.runs {
		if r.ID == run.ID {
			m.runs[i] = run
			return nil
		}
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *Memory) ListRebuildRuns(_ context.Context) ([]engine.RebuildRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.RebuildRun, len(m.runs))
	copy(out, m.runs)
	return out, nil
}

// DailySummaryCount reports the number of stored daily rows (test helper).
func (m *Memory) DailySummaryCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.daily)
}

// Compile-time interface checks.
var (
	_ engine.SessionFeed     = (*Memory)(nil)
	_ engine.GoalStore       = (*Memory)(nil)
	_ engine.SummaryStore    = (*Memory)(nil)
	_ engine.RebuildRunStore = (*Memory)(nil)
)
