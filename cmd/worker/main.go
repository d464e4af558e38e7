package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/bet-tracker/internal/config"
	"github.com/dvloznov/bet-tracker/internal/jobs"
	"github.com/dvloznov/bet-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/bet-tracker/internal/ledger"
	"github.com/dvloznov/bet-tracker/internal/logger"
	"github.com/dvloznov/bet-tracker/internal/store/backend"
)

// The worker keeps the cached closing balance of every month fresh for
// ledgers written by processes that do not refresh it themselves.
func main() {
	interval := flag.Duration("interval", 15*time.Minute, "Time between final balance refreshes")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithLevel(cfg.LogLevel)

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	st, err := backend.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger store")
	}
	defer st.Close()

	// In production, this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(1, jobStore)

	svc := ledger.NewService(st, ledger.WithBank(cfg.BankAmount))

	log.Info().
		Str("backend", string(cfg.Backend)).
		Dur("interval", *interval).
		Msg("Starting worker service")

	if err := jobQueue.Start(ctx, svc.HandleJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	publish := func(reason string) {
		job := &jobs.RefreshFinalBalancesJob{Reason: reason}
		if err := jobQueue.PublishRefresh(ctx, job); err != nil {
			log.Warn().Err(err).Str("reason", reason).Msg("Failed to enqueue refresh job")
		}
	}
	publish("startup")

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for running := true; running; {
		select {
		case <-ticker.C:
			publish("schedule")
		case <-quit:
			running = false
		}
	}

	log.Info().Msg("Shutting down worker service...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	if counts, err := jobStore.Counts(shutdownCtx); err == nil {
		log.Info().
			Int("completed", counts[jobs.JobStatusCompleted]).
			Int("coalesced", counts[jobs.JobStatusCoalesced]).
			Int("failed", counts[jobs.JobStatusFailed]).
			Msg("Refresh jobs processed")
	}

	log.Info().Msg("Worker service exited")
}
