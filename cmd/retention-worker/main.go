package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-reservation-engine/internal/booking"
	"github.com/hackgods/clinic-reservation-engine/internal/config"
	"github.com/hackgods/clinic-reservation-engine/internal/db"
	"github.com/hackgods/clinic-reservation-engine/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger := zerolog.New(os.Stderr)
		logger.Fatal().Err(err).Msg("config load error")
	}

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	log.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Int("retention_days", cfg.RetentionDays).
		Msg("retention-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	repo := booking.NewPgRepository(pgPool)
	m := metrics.New("clinic_retention", nil)
	svc := booking.NewService(repo, nil, m, log, cfg.StorageTimeout)

	// Run once at startup
	runOnce(rootCtx, svc, cfg.RetentionDays, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping retention worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg.RetentionDays, log)
		}
	}
}

func runOnce(ctx context.Context, svc *booking.Service, retentionDays int, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	start := time.Now()
	deleted, err := svc.SweepStaleSlots(runCtx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("retention run error")
		return
	}
	log.Info().Int64("deleted", deleted).Dur("took", time.Since(start)).Msg("retention run complete")
}
