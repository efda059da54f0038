package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"trailpace/internal/config"
	"trailpace/internal/notify"
	"trailpace/internal/profile"
	"trailpace/internal/store"
	"trailpace/internal/strava"
	syncpkg "trailpace/internal/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "trailpaced: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := newLogger(cfg.Debug)

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if !cfg.HasStrava() {
		return errors.New("STRAVA_CLIENT_ID and STRAVA_CLIENT_SECRET are required")
	}

	var resolver *strava.Resolver
	if cfg.HasResolver() {
		resolver = strava.NewResolver(cfg.AydaRunAPIURL, cfg.CrossServiceAPIKey)
		log.Info().Str("url", cfg.AydaRunAPIURL).Msg("cross-service token resolver enabled")
	}

	vault := strava.NewVault(db, cfg.StravaClientID, cfg.StravaClientSecret, resolver, log)
	client := strava.NewClient(vault, strava.NewRateLimiter(), log)

	var pusher notify.Pusher
	if cfg.HasTelegram() {
		pusher = notify.NewTelegramPusher(cfg.TelegramBotToken)
		log.Info().Msg("telegram push enabled")
	}
	bus := notify.NewBus(db, pusher, log)

	builder := profile.NewBuilder(db, log)
	pipeline := syncpkg.NewPipeline(db, client, builder, bus, cfg.SyncBatchSize, log)
	scheduler := syncpkg.NewScheduler(pipeline, db,
		cfg.UsersPerBatch,
		time.Duration(cfg.MinSyncIntervalHours)*time.Hour,
		log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("db", cfg.DatabasePath).
		Int("batch_size", cfg.SyncBatchSize).
		Int("workers", cfg.UsersPerBatch).
		Msg("starting sync scheduler")

	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scheduler: %w", err)
	}
	log.Info().Msg("shutdown complete")
	return nil
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	var log zerolog.Logger
	if debug {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger()
}
