/*
aggregate.go - Daily aggregation of usage sessions

PURPOSE:
  Turns one day's sessions into per-category DailySummary rows, splitting
  real (detected on-device) from virtual (manually logged) usage. This is
  the first stage of the pipeline; everything downstream (goal verdicts,
  period rollups) reads the rows produced here.

IDEMPOTENCE:
  AggregateDay is a pure function: the same sessions for the same day
  always yield identical summaries. The engine then overwrite-upserts the
  result, so re-running an aggregation pass replaces rather than doubles
  prior rows.

AGGREGATE CATEGORY:
  An optional synthetic category sums all other categories' totals for the
  day. Sessions recorded directly under the aggregate category are ignored
  so it never counts itself.

SEE ALSO:
  - goal.go: Consumes the TotalSeconds produced here
  - rollup.go: Averages these rows into period summaries
*/
package engine

// AggregateDay groups the day's sessions by category and sums durations,
// tracked separately for real and virtual usage. Sessions outside the
// given day or with negative durations are assumed to have been rejected
// at the recording boundary.
//
// When aggregateCategory is non-empty, a synthetic summary under that id
// is added containing the sum of all other categories' totals.
func AggregateDay(day Day, sessions []Session, aggregateCategory CategoryID) map[CategoryID]DailySummary {
	sums := make(map[CategoryID]DailySummary)

	for _, s := range sessions {
		if aggregateCategory != "" && s.CategoryID == aggregateCategory {
			// Never let the aggregate category count itself.
			continue
		}
		cur, ok := sums[s.CategoryID]
		if !ok {
			cur = DailySummary{Day: day, CategoryID: s.CategoryID}
		}
		if s.Virtual {
			cur.VirtualSeconds += s.DurationSeconds
		} else {
			cur.RealSeconds += s.DurationSeconds
		}
		cur.TotalSeconds = cur.RealSeconds + cur.VirtualSeconds
		sums[s.CategoryID] = cur
	}

	if aggregateCategory != "" {
		agg := DailySummary{Day: day, CategoryID: aggregateCategory}
		for _, s := range sums {
			agg.RealSeconds += s.RealSeconds
			agg.VirtualSeconds += s.VirtualSeconds
		}
		agg.TotalSeconds = agg.RealSeconds + agg.VirtualSeconds
		sums[aggregateCategory] = agg
	}

	return sums
}

// ValidateSession rejects sessions the aggregator must never see.
// Recording boundaries (API, feed importers) call this before persisting.
func ValidateSession(s Session) error {
	if s.CategoryID == "" {
		return &InvalidSessionError{CategoryID: s.CategoryID, Reason: "empty category id"}
	}
	if s.DurationSeconds < 0 {
		return &InvalidSessionError{CategoryID: s.CategoryID, Reason: "negative duration"}
	}
	if s.StartAt.IsZero() {
		return &InvalidSessionError{CategoryID: s.CategoryID, Reason: "zero start time"}
	}
	return nil
}
