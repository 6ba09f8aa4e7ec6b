/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request bodies carry validator struct tags checked by the handler before
  any engine call. Responses are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - engine/types.go: Domain types these map from
*/
package api

import (
	"fmt"
	"time"

	"github.com/screenloop/usage-engine/engine"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// RecordSessionRequest is the request to record a usage session.
type RecordSessionRequest struct {
	CategoryID      string `json:"category_id" validate:"required"`
	StartAt         string `json:"start_at" validate:"required"`
	DurationSeconds int64  `json:"duration_seconds" validate:"gte=0"`
	Virtual         bool   `json:"virtual"`
	SourceID        string `json:"source_id"`
}

// MarkProgressRequest reports reward or punishment completion.
type MarkProgressRequest struct {
	Percent float64 `json:"percent" validate:"gte=0,lte=100"`
}

// AggregateRequest asks for a day to be aggregated and evaluated.
type AggregateRequest struct {
	Day string `json:"day" validate:"required"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// DailySummaryDTO represents one day's usage for a category.
type DailySummaryDTO struct {
	Day            string `json:"day"`
	CategoryID     string `json:"category_id"`
	TotalSeconds   int64  `json:"total_seconds"`
	RealSeconds    int64  `json:"real_seconds"`
	VirtualSeconds int64  `json:"virtual_seconds"`
}

// PeriodSummaryDTO represents a weekly or monthly rollup.
type PeriodSummaryDTO struct {
	PeriodKey       string `json:"period_key"`
	PeriodType      string `json:"period_type"`
	CategoryID      string `json:"category_id"`
	AvgDailySeconds string `json:"avg_daily_seconds"`
	DayCount        int    `json:"day_count"`
}

// CompletionRecordDTO represents a day's frozen verdict and progress.
type CompletionRecordDTO struct {
	Day               string `json:"day"`
	CategoryID        string `json:"category_id"`
	GoalMet           bool   `json:"goal_met"`
	RewardDonePercent string `json:"reward_done_percent"`
	PunishDonePercent string `json:"punish_done_percent"`
	RewardDone        bool   `json:"reward_done"`
	PunishDone        bool   `json:"punish_done"`
}

// DayOutcomeDTO is the result of evaluating a day.
type DayOutcomeDTO struct {
	Day            string               `json:"day"`
	CategoryID     string               `json:"category_id"`
	Status         string               `json:"status"`
	GoalMet        bool                 `json:"goal_met"`
	DeltaSeconds   int64                `json:"delta_seconds"`
	RewardQuantity int64                `json:"reward_quantity"`
	PunishQuantity int64                `json:"punish_quantity"`
	Consequence    string               `json:"consequence,omitempty"`
	Record         *CompletionRecordDTO `json:"record,omitempty"`
}

// GoalConfigDTO represents a category's configured goal.
type GoalConfigDTO struct {
	CategoryID       string      `json:"category_id"`
	DailyGoalMinutes int64       `json:"daily_goal_minutes"`
	Condition        string      `json:"condition"`
	Reward           UnitSpecDTO `json:"reward"`
	Punish           UnitSpecDTO `json:"punish"`
}

// UnitSpecDTO represents one side of a goal's consequence.
type UnitSpecDTO struct {
	Label           string `json:"label"`
	QuantityPerUnit int64  `json:"quantity_per_unit"`
	UnitLabel       string `json:"unit_label"`
	TimeUnit        string `json:"time_unit"`
}

// WeekCompletionDTO is the goal-met ratio for a week so far.
type WeekCompletionDTO struct {
	CategoryID string `json:"category_id"`
	WeekStart  string `json:"week_start"`
	Completion string `json:"completion"`
}

// RebuildRunDTO represents one historical rebuild run.
type RebuildRunDTO struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	DatesReplayed int    `json:"dates_replayed"`
	DatesSkipped  int    `json:"dates_skipped"`
	Error         string `json:"error,omitempty"`
	StartedAt     string `json:"started_at"`
	CompletedAt   string `json:"completed_at,omitempty"`
}

// RebuildReportDTO is the result of a completed rebuild.
type RebuildReportDTO struct {
	RunID         string   `json:"run_id"`
	DatesReplayed int      `json:"dates_replayed"`
	SkippedDates  []string `json:"skipped_dates,omitempty"`
	WeeksRolled   int      `json:"weeks_rolled"`
	MonthsRolled  int      `json:"months_rolled"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func dailySummaryDTO(s engine.DailySummary) DailySummaryDTO {
	return DailySummaryDTO{
		Day:            s.Day.String(),
		CategoryID:     string(s.CategoryID),
		TotalSeconds:   s.TotalSeconds,
		RealSeconds:    s.RealSeconds,
		VirtualSeconds: s.VirtualSeconds,
	}
}

func periodSummaryDTO(s engine.PeriodSummary) PeriodSummaryDTO {
	return PeriodSummaryDTO{
		PeriodKey:       s.PeriodKey,
		PeriodType:      string(s.PeriodType),
		CategoryID:      string(s.CategoryID),
		AvgDailySeconds: s.AvgDailySeconds.String(),
		DayCount:        s.DayCount,
	}
}

func completionRecordDTO(r engine.CompletionRecord) CompletionRecordDTO {
	return CompletionRecordDTO{
		Day:               r.Day.String(),
		CategoryID:        string(r.CategoryID),
		GoalMet:           r.GoalMet,
		RewardDonePercent: r.RewardDonePercent.String(),
		PunishDonePercent: r.PunishDonePercent.String(),
		RewardDone:        r.RewardDone(),
		PunishDone:        r.PunishDone(),
	}
}

func goalConfigDTO(g engine.GoalConfig) GoalConfigDTO {
	return GoalConfigDTO{
		CategoryID:       string(g.CategoryID),
		DailyGoalMinutes: g.DailyGoalMinutes,
		Condition:        string(g.Condition),
		Reward:           unitSpecDTO(g.Reward),
		Punish:           unitSpecDTO(g.Punish),
	}
}

func unitSpecDTO(u engine.UnitSpec) UnitSpecDTO {
	return UnitSpecDTO{
		Label:           u.Label,
		QuantityPerUnit: u.QuantityPerUnit,
		UnitLabel:       u.UnitLabel,
		TimeUnit:        string(u.TimeUnit),
	}
}

// consequenceText renders the owed quantity as display text, e.g.
// "60 reps push-ups".
func consequenceText(quantity int64, u engine.UnitSpec) string {
	if quantity <= 0 || u.Label == "" {
		return ""
	}
	return fmt.Sprintf("%d %s %s", quantity, u.UnitLabel, u.Label)
}

func dayOutcomeDTO(day engine.Day, categoryID engine.CategoryID, o *engine.DayOutcome, goal *engine.GoalConfig) DayOutcomeDTO {
	dto := DayOutcomeDTO{
		Day:            day.String(),
		CategoryID:     string(categoryID),
		Status:         string(o.Evaluation.Status),
		GoalMet:        o.Evaluation.Met,
		DeltaSeconds:   o.Evaluation.DeltaSeconds,
		RewardQuantity: o.RewardQuantity,
		PunishQuantity: o.PunishQuantity,
	}
	if goal != nil {
		if o.Evaluation.Met {
			dto.Consequence = consequenceText(o.RewardQuantity, goal.Reward)
		} else {
			dto.Consequence = consequenceText(o.PunishQuantity, goal.Punish)
		}
	}
	if o.Record != nil {
		rec := completionRecordDTO(*o.Record)
		dto.Record = &rec
	}
	return dto
}

func rebuildRunDTO(run engine.RebuildRun) RebuildRunDTO {
	dto := RebuildRunDTO{
		ID:            run.ID,
		Status:        run.Status,
		DatesReplayed: run.DatesReplayed,
		DatesSkipped:  run.DatesSkipped,
		Error:         run.Error,
		StartedAt:     run.StartedAt.Format(time.RFC3339),
	}
	if run.CompletedAt != nil {
		dto.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

func rebuildReportDTO(r engine.RebuildReport) RebuildReportDTO {
	dto := RebuildReportDTO{
		RunID:         r.RunID,
		DatesReplayed: r.DatesReplayed,
		WeeksRolled:   r.WeeksRolled,
		MonthsRolled:  r.MonthsRolled,
	}
	for _, d := range r.SkippedDates {
		dto.SkippedDates = append(dto.SkippedDates, d.String())
	}
	return dto
}
