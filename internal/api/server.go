package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/snarg/scribed/internal/config"
	"github.com/snarg/scribed/internal/metrics"
	"github.com/snarg/scribed/internal/queue"
	"github.com/snarg/scribed/internal/storage"
	"github.com/snarg/scribed/internal/transcribe"
)

// Server is the scribed HTTP surface: synchronous transcription, async task
// intake, the worker task API, health and metrics.
type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// NewServer wires the router.
func NewServer(cfg *config.Server, pipeline Runner, loader *transcribe.Loader, pg *queue.Postgres, uploads storage.UploadStore, version string, startTime time.Time, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(CORS)
	r.Use(metrics.Middleware)

	health := NewHealthHandler(pg.Pool(), loader, version, startTime, cfg.MaxConcurrentTasks, cfg.MaxSegmentDuration)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	th := NewTranscribeHandler(pipeline, log)
	r.Post("/api/v1/transcribe", th.Transcribe)
	r.Post("/api/v1/transcribe-with-timestamps", th.TranscribeWithTimestamps)

	tasks := NewTaskHandler(pg, uploads, log)
	r.Post("/api/v1/tasks", tasks.Create)
	r.Get("/api/v1/tasks/{id}", tasks.Get)
	r.Post("/api/v1/tasks/{id}/cancel", tasks.Cancel)

	r.Route("/api/worker", func(r chi.Router) {
		r.Use(BearerAuth(cfg.WorkerAPIKey))
		NewWorkerHandler(pg, uploads, log).Routes(r)
	})

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
