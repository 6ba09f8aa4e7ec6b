/*
handlers.go - HTTP API handlers for the usage engine

PURPOSE:
  Exposes the usage aggregation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Sessions:
    POST   /api/sessions                          Record a usage session

  Summaries:
    POST   /api/summaries/aggregate               Aggregate one day
    GET    /api/summaries/daily                   Daily summaries in range
    GET    /api/summaries/periods/{key}           Weekly/monthly rollup
    POST   /api/summaries/periods/{key}/rollup    Recompute a rollup

  Goals and records:
    GET    /api/goals                             List goal configs
    POST   /api/days/{day}/evaluate               Evaluate + record a day
    GET    /api/records                           Completion records in range
    POST   /api/records/{day}/reward-progress     Mark reward progress
    POST   /api/records/{day}/punish-progress     Mark punishment progress
    GET    /api/weeks/{start}/completion          Week goal-met ratio

  Rebuild:
    POST   /api/rebuild                           Run historical rebuild
    GET    /api/rebuild/status                    Current rebuild phase
    GET    /api/rebuild/runs                      Rebuild audit trail

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (rebuild already running)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - engine/engine.go: Domain operations these delegate to
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/screenloop/usage-engine/engine"
	"github.com/screenloop/usage-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Engine   *engine.Engine
	validate *validator.Validate
}

// NewHandler creates a new handler around the store and engine.
func NewHandler(store *sqlite.Store, eng *engine.Engine) *Handler {
	return &Handler{
		Store:    store,
		Engine:   eng,
		validate: validator.New(),
	}
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// RecordSession records a usage session.
func (h *Handler) RecordSession(w http.ResponseWriter, r *http.Request) {
	var req RecordSessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	startAt, err := parseTimestamp(req.StartAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_at", err)
		return
	}

	sess := engine.Session{
		CategoryID:      engine.CategoryID(req.CategoryID),
		StartAt:         startAt,
		DurationSeconds: req.DurationSeconds,
		Virtual:         req.Virtual,
		SourceID:        req.SourceID,
	}
	if err := h.Store.RecordSession(r.Context(), sess); err != nil {
		writeEngineError(w, "Failed to record session", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"day":         sess.Day().String(),
		"category_id": req.CategoryID,
	})
}

// =============================================================================
// SUMMARY HANDLERS
// =============================================================================

// AggregateDay recomputes daily summaries for one day.
func (h *Handler) AggregateDay(w http.ResponseWriter, r *http.Request) {
	var req AggregateRequest
	if !h.decode(w, r, &req) {
		return
	}

	day, err := engine.ParseDay(req.Day)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid day", err)
		return
	}

	summaries, err := h.Engine.RunDailyAggregation(r.Context(), day)
	if err != nil {
		writeEngineError(w, "Failed to aggregate day", err)
		return
	}

	dtos := make([]DailySummaryDTO, 0, len(summaries))
	for _, s := range summaries {
		dtos = append(dtos, dailySummaryDTO(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"summaries": dtos})
}

// ListDailySummaries returns daily rows for a category and range.
func (h *Handler) ListDailySummaries(w http.ResponseWriter, r *http.Request) {
	categoryID := engine.CategoryID(r.URL.Query().Get("category_id"))
	if categoryID == "" {
		writeError(w, http.StatusBadRequest, "category_id is required", nil)
		return
	}
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid range", err)
		return
	}

	rows, err := h.Store.ListDailySummaries(r.Context(), categoryID, from, to)
	if err != nil {
		writeEngineError(w, "Failed to list summaries", err)
		return
	}

	dtos := make([]DailySummaryDTO, len(rows))
	for i, s := range rows {
		dtos[i] = dailySummaryDTO(s)
	}
	writeJSON(w, http.StatusOK, map[string]any{"summaries": dtos})
}

// GetPeriodSummary returns a stored weekly/monthly rollup.
func (h *Handler) GetPeriodSummary(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	categoryID := engine.CategoryID(r.URL.Query().Get("category_id"))
	if categoryID == "" {
		writeError(w, http.StatusBadRequest, "category_id is required", nil)
		return
	}

	sum, err := h.Store.GetPeriodSummary(r.Context(), key, categoryID)
	if err != nil {
		writeEngineError(w, "Failed to get period summary", err)
		return
	}
	if sum == nil {
		writeError(w, http.StatusNotFound, "Period summary not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, periodSummaryDTO(*sum))
}

// RollupPeriod recomputes and stores the rollup for a period key.
func (h *Handler) RollupPeriod(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	categoryID := engine.CategoryID(r.URL.Query().Get("category_id"))
	if categoryID == "" {
		writeError(w, http.StatusBadRequest, "category_id is required", nil)
		return
	}

	sum, err := h.Engine.RunPeriodRollup(r.Context(), categoryID, key)
	if err != nil {
		writeEngineError(w, "Failed to roll up period", err)
		return
	}
	writeJSON(w, http.StatusOK, periodSummaryDTO(sum))
}

// =============================================================================
// GOAL AND RECORD HANDLERS
// =============================================================================

// ListGoals returns all configured goals.
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.Store.ListGoalConfigs(r.Context())
	if err != nil {
		writeEngineError(w, "Failed to list goals", err)
		return
	}

	dtos := make([]GoalConfigDTO, len(goals))
	for i, g := range goals {
		dtos[i] = goalConfigDTO(g)
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": dtos})
}

// EvaluateDay evaluates a day's goal and creates the completion record.
func (h *Handler) EvaluateDay(w http.ResponseWriter, r *http.Request) {
	day, err := engine.ParseDay(chi.URLParam(r, "day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid day", err)
		return
	}
	categoryID := engine.CategoryID(r.URL.Query().Get("category_id"))
	if categoryID == "" {
		writeError(w, http.StatusBadRequest, "category_id is required", nil)
		return
	}

	outcome, err := h.Engine.RunGoalEvaluationAndRecord(r.Context(), day, categoryID)
	if err != nil {
		writeEngineError(w, "Failed to evaluate day", err)
		return
	}
	goal, err := h.Store.GetGoal(r.Context(), categoryID)
	if err != nil {
		writeEngineError(w, "Failed to load goal", err)
		return
	}
	writeJSON(w, http.StatusOK, dayOutcomeDTO(day, categoryID, outcome, goal))
}

// ListCompletionRecords returns records for a category and range.
func (h *Handler) ListCompletionRecords(w http.ResponseWriter, r *http.Request) {
	categoryID := engine.CategoryID(r.URL.Query().Get("category_id"))
	if categoryID == "" {
		writeError(w, http.StatusBadRequest, "category_id is required", nil)
		return
	}
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid range", err)
		return
	}

	records, err := h.Store.ListCompletionRecords(r.Context(), categoryID, from, to)
	if err != nil {
		writeEngineError(w, "Failed to list records", err)
		return
	}

	dtos := make([]CompletionRecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = completionRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": dtos})
}

// MarkRewardProgress records reward completion for a day.
func (h *Handler) MarkRewardProgress(w http.ResponseWriter, r *http.Request) {
	h.markProgress(w, r, h.Engine.MarkRewardProgress)
}

// MarkPunishProgress records punishment completion for a day.
func (h *Handler) MarkPunishProgress(w http.ResponseWriter, r *http.Request) {
	h.markProgress(w, r, h.Engine.MarkPunishProgress)
}

type progressFunc func(ctx context.Context, day engine.Day, categoryID engine.CategoryID, percent decimal.Decimal) error

func (h *Handler) markProgress(w http.ResponseWriter, r *http.Request, mark progressFunc) {
	day, err := engine.ParseDay(chi.URLParam(r, "day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid day", err)
		return
	}
	categoryID := engine.CategoryID(r.URL.Query().Get("category_id"))
	if categoryID == "" {
		writeError(w, http.StatusBadRequest, "category_id is required", nil)
		return
	}

	var req MarkProgressRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := mark(r.Context(), day, categoryID, decimal.NewFromFloat(req.Percent)); err != nil {
		writeEngineError(w, "Failed to mark progress", err)
		return
	}

	rec, err := h.Store.GetCompletionRecord(r.Context(), day, categoryID)
	if err != nil || rec == nil {
		writeEngineError(w, "Failed to reload record", err)
		return
	}
	writeJSON(w, http.StatusOK, completionRecordDTO(*rec))
}

// =============================================================================
// REBUILD HANDLERS
// =============================================================================

// TriggerRebuild wipes and recomputes all derived data.
func (h *Handler) TriggerRebuild(w http.ResponseWriter, r *http.Request) {
	report, err := h.Engine.RunHistoricalRebuild(r.Context())
	if err != nil {
		writeEngineError(w, "Rebuild failed", err)
		return
	}
	writeJSON(w, http.StatusOK, rebuildReportDTO(report))
}

// RebuildStatus reports the current rebuild phase.
func (h *Handler) RebuildStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"phase": string(h.Engine.RebuildPhase()),
	})
}

// ListRebuildRuns returns the rebuild audit trail.
func (h *Handler) ListRebuildRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListRebuildRuns(r.Context())
	if err != nil {
		writeEngineError(w, "Failed to list rebuild runs", err)
		return
	}

	dtos := make([]RebuildRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = rebuildRunDTO(run)
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": dtos})
}

// WeekCompletion returns the goal-met ratio for a week up to today.
func (h *Handler) WeekCompletion(w http.ResponseWriter, r *http.Request) {
	weekStart, err := engine.ParseDay(chi.URLParam(r, "start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid week start", err)
		return
	}
	categoryID := engine.CategoryID(r.URL.Query().Get("category_id"))
	if categoryID == "" {
		writeError(w, http.StatusBadRequest, "category_id is required", nil)
		return
	}

	today := engine.Today()
	if raw := r.URL.Query().Get("today"); raw != "" {
		if today, err = engine.ParseDay(raw); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid today", err)
			return
		}
	}

	ratio, err := h.Engine.WeekCompletion(r.Context(), categoryID, weekStart, today)
	if err != nil {
		writeEngineError(w, "Failed to compute week completion", err)
		return
	}
	writeJSON(w, http.StatusOK, WeekCompletionDTO{
		CategoryID: string(categoryID),
		WeekStart:  weekStart.WeekStart().String(),
		Completion: ratio.String(),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode parses and validates a JSON request body. Writes the error
// response itself and returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// writeEngineError maps engine error taxonomy to HTTP status codes.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, engine.ErrRebuildRunning):
		writeError(w, http.StatusConflict, message, err)
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func parseRange(r *http.Request) (engine.Day, engine.Day, error) {
	from, err := engine.ParseDay(r.URL.Query().Get("from"))
	if err != nil {
		return engine.Day{}, engine.Day{}, err
	}
	to, err := engine.ParseDay(r.URL.Query().Get("to"))
	if err != nil {
		return engine.Day{}, engine.Day{}, err
	}
	return from, to, nil
}
