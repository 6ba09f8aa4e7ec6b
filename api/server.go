/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for local dashboards

ROUTE GROUPS:
  /api/sessions/*    Session recording
  /api/summaries/*   Daily and period summaries
  /api/goals         Goal configuration
  /api/days/*        Goal evaluation
  /api/records/*     Completion records and progress
  /api/weeks/*       Week completion ratios
  /api/rebuild/*     Historical rebuild

SECURITY NOTE:
  No authentication middleware. The server is intended to run locally.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", h.RecordSession)

		r.Route("/summaries", func(r chi.Router) {
			r.Post("/aggregate", h.AggregateDay)
			r.Get("/daily", h.ListDailySummaries)
			r.Get("/periods/{key}", h.GetPeriodSummary)
			r.Post("/periods/{key}/rollup", h.RollupPeriod)
		})

		r.Get("/goals", h.ListGoals)
		r.Post("/days/{day}/evaluate", h.EvaluateDay)

		r.Route("/records", func(r chi.Router) {
			r.Get("/", h.ListCompletionRecords)
			r.Post("/{day}/reward-progress", h.MarkRewardProgress)
			r.Post("/{day}/punish-progress", h.MarkPunishProgress)
		})

		r.Get("/weeks/{start}/completion", h.WeekCompletion)

		r.Route("/rebuild", func(r chi.Router) {
			r.Post("/", h.TriggerRebuild)
			r.Get("/status", h.RebuildStatus)
			r.Get("/runs", h.ListRebuildRuns)
		})

		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	return r
}
