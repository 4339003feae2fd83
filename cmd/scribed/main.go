package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/scribed/internal/api"
	"github.com/snarg/scribed/internal/audio"
	"github.com/snarg/scribed/internal/config"
	"github.com/snarg/scribed/internal/queue"
	"github.com/snarg/scribed/internal/storage"
	"github.com/snarg/scribed/internal/transcribe"
)

var version = "dev"

func main() {
	startTime := time.Now()

	cfg, err := config.LoadServer()
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("scribed starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbLog := log.With().Str("component", "database").Logger()
	pg, err := queue.NewPostgres(ctx, cfg.DatabaseURL, cfg.UploadDir, dbLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	uploads, err := storage.New(cfg.S3, cfg.UploadDir, log.With().Str("component", "storage").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize upload store")
	}
	log.Info().Str("type", uploads.Type()).Msg("upload store ready")

	engineLog := log.With().Str("component", "engine").Logger()
	loader := transcribe.NewLoader(func() (transcribe.Engine, error) {
		engineLog.Info().
			Str("url", cfg.Whisper.URL).
			Str("model", cfg.Whisper.Model).
			Str("device", cfg.Whisper.Device).
			Str("compute_type", cfg.Whisper.ComputeType).
			Int("cpu_threads", cfg.Whisper.CPUThreads).
			Msg("initializing whisper engine")
		return transcribe.NewWhisperClient(transcribe.WhisperOptions{
			URL:         cfg.Whisper.URL,
			Model:       cfg.Whisper.Model,
			Device:      cfg.Whisper.Device,
			ComputeType: cfg.Whisper.ComputeType,
			CPUThreads:  cfg.Whisper.CPUThreads,
			Timeout:     cfg.Whisper.Timeout,
		}), nil
	})

	pipeline := transcribe.New(loader, audio.FFProbe{}, audio.FFmpeg{}, transcribe.Options{
		MaxSegmentSeconds: cfg.MaxSegmentDuration,
		Workers:           cfg.MaxConcurrentTasks,
	}, log.With().Str("component", "pipeline").Logger())

	// Pre-load the engine so the first request doesn't pay for it.
	if _, err := loader.Get(); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize engine")
	}

	srv := api.NewServer(cfg, pipeline, loader, pg, uploads, version, startTime, log.With().Str("component", "http").Logger())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("scribed stopped")
}
