/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the usage engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load and validate the YAML category/goal configuration
  3. Initialize SQLite store and seed goal configs
  4. Create the engine and API handler
  5. Start the background aggregation scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: usage.db)
           Use ":memory:" for in-memory database
  -config  YAML goal configuration path (default: config.yaml)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/usage.db" -config="./config.yaml"

  # Run with in-memory database
  ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration format
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/screenloop/usage-engine/api"
	"github.com/screenloop/usage-engine/config"
	"github.com/screenloop/usage-engine/engine"
	"github.com/screenloop/usage-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "usage.db", "SQLite database path")
	cfgPath := flag.String("config", "config.yaml", "YAML goal configuration path")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "usage-engine")
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("failed to load config", "path", *cfgPath, "error", err)
		os.Exit(1)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Seed goal configs
	ctx := context.Background()
	for _, goal := range cfg.GoalConfigs() {
		if err := store.SaveGoalConfig(ctx, goal); err != nil {
			logger.Error("failed to seed goal", "category", goal.CategoryID, "error", err)
			os.Exit(1)
		}
	}
	logger.Info("seeded goal configs", "count", len(cfg.Categories))

	// Create engine and handler
	eng := engine.New(store, store, store, engine.Config{
		AggregateCategory: engine.CategoryID(cfg.AggregateCategory),
		Runs:              store,
		Logger:            logger,
	})
	handler := api.NewHandler(store, eng)
	router := api.NewRouter(handler)

	// Background aggregation
	sched := api.NewAggregationScheduler(eng, cfg.CategoryIDs(), logger)
	if cfg.SchedulerInterval > 0 {
		sched.TickInterval = time.Duration(cfg.SchedulerInterval)
	}
	sched.Start()
	defer sched.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", "addr", fmt.Sprintf("http://localhost:%d/api", *port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
