// main is the entry point for the EventHub API server.
//
// It loads configuration, opens the SQLite database, wires the handlers
// and the maintenance scheduler, and serves HTTP until interrupted.
//
// ────────────────────────────────────────────────────────────────────
// How this file fits into the project
// ────────────────────────────────────────────────────────────────────
// This file is the composition root: the single place where the
// independent packages (config, db, handlers, middleware, scheduler) are
// wired together. Every other package stays testable in isolation.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campushub/eventhub/internal/config"
	"github.com/campushub/eventhub/internal/db"
	"github.com/campushub/eventhub/internal/handlers"
	"github.com/campushub/eventhub/internal/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	seed := flag.Bool("seed", false, "load the demo data before serving (ignored in production)")
	flag.Parse()

	// ── Configuration ────────────────────────────────────────────────
	// config.yaml, then .env, then the process environment.
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "text").Error("load config", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log, *seed); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger, seed bool) error {
	// ── Database ─────────────────────────────────────────────────────
	// db.Open creates the file if needed and applies pending migrations.
	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	srv, err := handlers.New(cfg, database, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if seed {
		if cfg.IsProduction() {
			log.Warn("-seed ignored in production")
		} else if err := srv.Seed(ctx); err != nil {
			return err
		}
	}

	if cfg.SchedulerEnabled {
		srv.Scheduler.Start()
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           routes(srv, cfg, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("EventHub API listening", "addr", cfg.Addr, "env", cfg.Env, "scheduler", cfg.SchedulerEnabled)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Scheduler.Stop(shutdownCtx); err != nil {
		log.Warn("scheduler did not stop in time", "err", err)
	}
	return httpSrv.Shutdown(shutdownCtx)
}
