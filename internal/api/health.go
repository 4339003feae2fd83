package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snarg/scribed/internal/transcribe"
)

// HealthResponse is the GET /api/v1/health body.
type HealthResponse struct {
	Status             string            `json:"status"`
	Version            string            `json:"version"`
	UptimeSeconds      int64             `json:"uptime_seconds"`
	ModelLoaded        bool              `json:"model_loaded"`
	MaxConcurrentTasks int               `json:"max_concurrent_tasks"`
	MaxSegmentDuration int               `json:"max_segment_duration"`
	Checks             map[string]string `json:"checks"`
}

// HealthHandler reports process liveness and dependency state.
type HealthHandler struct {
	pool               *pgxpool.Pool
	loader             *transcribe.Loader
	version            string
	startTime          time.Time
	maxConcurrentTasks int
	maxSegmentDuration int
}

// NewHealthHandler creates the handler. pool may be nil when the process has
// no database.
func NewHealthHandler(pool *pgxpool.Pool, loader *transcribe.Loader, version string, startTime time.Time, maxConcurrentTasks, maxSegmentDuration int) *HealthHandler {
	return &HealthHandler{
		pool:               pool,
		loader:             loader,
		version:            version,
		startTime:          startTime,
		maxConcurrentTasks: maxConcurrentTasks,
		maxSegmentDuration: maxSegmentDuration,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := map[string]string{}

	if h.pool != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pool.Ping(ctx); err != nil {
			checks["database"] = "fail: " + err.Error()
			status = "degraded"
		} else {
			checks["database"] = "ok"
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}

	WriteJSON(w, code, HealthResponse{
		Status:             status,
		Version:            h.version,
		UptimeSeconds:      int64(time.Since(h.startTime).Seconds()),
		ModelLoaded:        h.loader.Loaded(),
		MaxConcurrentTasks: h.maxConcurrentTasks,
		MaxSegmentDuration: h.maxSegmentDuration,
		Checks:             checks,
	})
}
