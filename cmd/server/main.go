/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env and parse command-line flags
  2. Load the accrual policy from YAML
  3. Initialize SQLite store
  4. Wire the projector, expiration engine and API handler
  5. Start the expiration scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080, env PORT)
  -db      SQLite database path (default: leave.db, env DATABASE_PATH)
           Use ":memory:" for an in-memory database
  -config  Policy YAML path (default: leave.yaml, env CONFIG_PATH;
           missing file falls back to the statutory defaults)
  -log     Log level (default: info, env LOG_LEVEL)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the expiration scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/leave.db"

  # Run with in-memory database and verbose tracing
  ./server -db=":memory:" -log=debug

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Background expiration sweep
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/warp/leave-ledger/api"
	"github.com/warp/leave-ledger/config"
	"github.com/warp/leave-ledger/leave"
	"github.com/warp/leave-ledger/store/sqlite"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// .env is optional; flags and real env win.
	_ = godotenv.Load()

	port := flag.String("port", envOr("PORT", "8080"), "HTTP server port")
	dbPath := flag.String("db", envOr("DATABASE_PATH", "leave.db"), "SQLite database path")
	configPath := flag.String("config", envOr("CONFIG_PATH", "leave.yaml"), "policy YAML path")
	logLevel := flag.String("log", envOr("LOG_LEVEL", "info"), "log level")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(*logLevel); err == nil {
		log.SetLevel(level)
	}

	policy := leave.DefaultPolicy()
	if cfg, err := config.Load(*configPath); err == nil {
		policy, err = cfg.Build()
		if err != nil {
			log.WithError(err).Fatal("invalid policy configuration")
		}
		log.WithField("path", *configPath).Info("policy configuration loaded")
	} else if !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("could not read policy configuration, using defaults")
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	accrual := leave.NewAccrualPolicy(policy)
	accrual.Trace = leave.LogrusTracer(log)
	engine := leave.NewExpirationEngine(accrual, store, store)
	engine.Trace = accrual.Trace

	projector := &leave.BalanceProjector{
		Policy:     accrual,
		Directory:  store,
		Events:     store,
		Overrides:  store,
		Expiration: engine,
		Snapshots:  store,
		Trace:      accrual.Trace,
	}

	handler := api.NewHandler(projector, store, log)
	router := api.NewRouter(handler)

	scheduler := api.NewExpirationScheduler(store, engine, log)
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("leave ledger server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server stopped")
}
