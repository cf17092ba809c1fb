// Package main is the entry point for the holdings tracker.
// It serves the portfolio API, refreshes quotes on a schedule and backs up the database.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/holdings/internal/config"
	"github.com/aristath/holdings/internal/di"
	"github.com/aristath/holdings/internal/scheduler"
	"github.com/aristath/holdings/internal/server"
	"github.com/aristath/holdings/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting holdings tracker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(log)

	container, jobs, err := di.Wire(ctx, cfg, sched, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	snap, err := di.LoadPortfolio(ctx, container, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load portfolio")
	}
	log.Info().
		Int("positions", len(snap.Positions)).
		Float64("investment", snap.Totals.Investment).
		Msg("Portfolio loaded")

	srv := server.New(server.Config{
		Log:     log,
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
		DataDir: cfg.DataDir,
		DB:      container.DB,
		Events:  container.EventManager,
		Jobs:    sched,
		Modules: []server.RouteRegistrar{container.PortfolioHandler},
	})
	srv.SetJobs(jobs.All()...)

	sched.Start()

	// Prices start out as stored; refresh once without waiting for the schedule
	go func() {
		if err := sched.RunNow(jobs.Refresh); err != nil {
			log.Error().Err(err).Msg("Initial refresh failed")
		}
	}()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	sched.Stop()
	cancel()

	log.Info().Msg("Server stopped")
}
