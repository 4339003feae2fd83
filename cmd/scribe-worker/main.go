package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/snarg/scribed/internal/audio"
	"github.com/snarg/scribed/internal/config"
	"github.com/snarg/scribed/internal/queue"
	"github.com/snarg/scribed/internal/transcribe"
	"github.com/snarg/scribed/internal/worker"
)

var version = "dev"

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("scribe-worker starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.TempDir).Msg("failed to create temp dir")
	}

	// DATABASE_URL selects the direct Postgres queue; otherwise the worker
	// polls the HTTP task API.
	var q queue.Queue
	if cfg.DatabaseURL != "" {
		pg, err := queue.NewPostgres(ctx, cfg.DatabaseURL, cfg.UploadDir, log.With().Str("component", "database").Logger())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pg.Close()
		q = pg
		log.Info().Str("queue", "postgres").Str("upload_dir", cfg.UploadDir).Msg("queue transport selected")
	} else {
		q = queue.NewHTTPAPI(cfg.APIBaseURL, cfg.APIKey, cfg.TempDir, log.With().Str("component", "queue-api").Logger())
		log.Info().Str("queue", "http").Str("base_url", cfg.APIBaseURL).Msg("queue transport selected")
	}

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

	// Pre-load so the first claimed task doesn't pay for initialization.
	if _, err := loader.Get(); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize engine")
	}

	pipeline := transcribe.New(loader, audio.FFProbe{}, audio.FFmpeg{}, transcribe.Options{
		MaxSegmentSeconds: cfg.MaxSegmentDuration,
		Workers:           cfg.MaxConcurrentTasks,
		TempDir:           cfg.TempDir,
	}, log.With().Str("component", "pipeline").Logger())

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, log)
	}

	driver := worker.NewDriver(q, pipeline, log.With().Str("component", "driver").Logger())
	poller := worker.NewPoller(q, driver, cfg.PollInterval, log.With().Str("component", "poller").Logger())
	poller.Run(ctx)

	log.Info().Msg("scribe-worker stopped")
}

func serveMetrics(addr string, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	log.Info().Str("addr", addr).Msg("metrics listener starting")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("metrics listener error")
	}
}
