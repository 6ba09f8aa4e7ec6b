/*
scheduler.go - Background aggregation scheduler

PURPOSE:
  Periodically aggregates and evaluates recent days so summaries and
  completion records stay current without a caller driving the engine.

DESIGN:
  - Runs a background goroutine with a configurable tick interval
  - Each tick processes yesterday and today for every configured category
  - Evaluation is create-once, so an already-recorded (day, category) key
    keeps its frozen verdict when the tick re-runs it
  - Today is always re-aggregated; its sessions are still arriving

USAGE:
  sched := NewAggregationScheduler(eng, categories, logger)
  sched.Start()
  // ... later
  sched.Stop()

SEE ALSO:
  - handlers.go: AggregateDay / EvaluateDay (manual equivalents)
  - engine/engine.go: Operations the scheduler drives
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/screenloop/usage-engine/engine"
)

// AggregationScheduler keeps recent days aggregated and evaluated.
type AggregationScheduler struct {
	Engine       *engine.Engine
	Categories   []engine.CategoryID
	TickInterval time.Duration

	logger *slog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAggregationScheduler creates a scheduler for the given categories.
func NewAggregationScheduler(eng *engine.Engine, categories []engine.CategoryID, logger *slog.Logger) *AggregationScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AggregationScheduler{
		Engine:       eng,
		Categories:   categories,
		TickInterval: 5 * time.Minute,
		logger:       logger,
		stop:         make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *AggregationScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		return
	}
	s.ticker = time.NewTicker(s.TickInterval)
	s.wg.Add(1)
	go s.run()

	s.logger.Info("aggregation scheduler started",
		"interval", s.TickInterval,
		"categories", len(s.Categories))
}

// Stop stops the scheduler and waits for the current tick to finish.
func (s *AggregationScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.logger.Info("aggregation scheduler stopped")
}

func (s *AggregationScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.tick()

	for {
		select {
		case <-s.ticker.C:
			s.tick()
		case <-s.stop:
			return
		}
	}
}

// tick aggregates and evaluates yesterday and today.
func (s *AggregationScheduler) tick() {
	ctx := context.Background()
	today := engine.Today()

	for _, day := range []engine.Day{today.AddDays(-1), today} {
		if _, err := s.Engine.RunDailyAggregation(ctx, day); err != nil {
			s.logger.Warn("scheduled aggregation failed", "day", day, "error", err)
			continue
		}
		for _, categoryID := range s.Categories {
			outcome, err := s.Engine.RunGoalEvaluationAndRecord(ctx, day, categoryID)
			if err != nil {
				s.logger.Warn("scheduled evaluation failed",
					"day", day, "category", categoryID, "error", err)
				continue
			}
			if outcome.Record != nil {
				s.logger.Debug("evaluated day",
					"day", day, "category", categoryID, "met", outcome.Evaluation.Met)
			}
		}
	}
}
