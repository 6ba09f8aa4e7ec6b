package engine

import "sync"

// =============================================================================
// ROLLUP CACHE - Memoized period summaries
// =============================================================================

// rollupCache memoizes computed period summaries keyed by (period, category)
// with manual invalidation on any write touching the period. This replaces
// scattered last-loaded flags with one structure.
type rollupCache struct {
	mu      sync.RWMutex
	entries map[rollupKey]PeriodSummary
}

type rollupKey struct {
	PeriodKey  string
	CategoryID CategoryID
}

func newRollupCache() *rollupCache {
	return &rollupCache{entries: make(map[rollupKey]PeriodSummary)}
}

func (c *rollupCache) Get(periodKey string, categoryID CategoryID) (PeriodSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.entries[rollupKey{PeriodKey: periodKey, CategoryID: categoryID}]
	return s, ok
}

func (c *rollupCache) Put(s PeriodSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[rollupKey{PeriodKey: s.PeriodKey, CategoryID: s.CategoryID}] = s
}

// InvalidateDay drops every cached period containing the day, across all
// categories. Called after any daily summary write.
func (c *rollupCache) InvalidateDay(day Day) {
	weekKey := day.WeekKey()
	monthKey := day.MonthKey()

	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.PeriodKey == weekKey || k.PeriodKey == monthKey {
			delete(c.entries, k)
		}
	}
}

// InvalidateAll empties the cache. Called when the rebuild wipes aggregates.
func (c *rollupCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[rollupKey]PeriodSummary)
}
