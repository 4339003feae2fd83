package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/scribed/internal/queue"
	"github.com/snarg/scribed/internal/storage"
)

// WorkerStore is the queue surface exposed to remote workers.
type WorkerStore interface {
	Claim(ctx context.Context) (*queue.Task, error)
	Get(ctx context.Context, taskID string) (*queue.Task, error)
	Progress(ctx context.Context, taskID string, progress int) error
	Succeed(ctx context.Context, taskID, result string) error
	Fail(ctx context.Context, taskID, message string) error
}

// WorkerHandler serves the worker task API consumed by HTTP-mode pollers.
type WorkerHandler struct {
	store   WorkerStore
	uploads storage.UploadStore
	log     zerolog.Logger
}

// NewWorkerHandler creates the handler.
func NewWorkerHandler(store WorkerStore, uploads storage.UploadStore, log zerolog.Logger) *WorkerHandler {
	return &WorkerHandler{
		store:   store,
		uploads: uploads,
		log:     log.With().Str("handler", "worker").Logger(),
	}
}

// Routes registers the worker endpoints on r.
func (h *WorkerHandler) Routes(r chi.Router) {
	r.Get("/tasks", h.Claim)
	r.Patch("/tasks", h.Update)
	r.Get("/tasks/{id}", h.Status)
	r.Get("/tasks/{id}/file", h.File)
	r.Delete("/tasks/{id}/file", h.DeleteFile)
}

// Claim handles GET /api/worker/tasks: atomically hand out one pending task.
// The task field is null when nothing is pending.
func (h *WorkerHandler) Claim(w http.ResponseWriter, r *http.Request) {
	task, err := h.store.Claim(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("claim failed")
		WriteError(w, http.StatusInternalServerError, "claim failed")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]*queue.Task{"task": task})
}

// updateRequest is the PATCH /api/worker/tasks body.
type updateRequest struct {
	TaskID   string  `json:"taskId"`
	Status   string  `json:"status"`
	Progress *int    `json:"progress"`
	Result   *string `json:"result"`
	Error    *string `json:"error"`
}

// Update handles PATCH /api/worker/tasks: progress-only updates while the
// job runs, or a terminal completed/failed report.
func (h *WorkerHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.TaskID == "" {
		WriteError(w, http.StatusBadRequest, "taskId is required")
		return
	}

	var err error
	switch req.Status {
	case "":
		if req.Progress == nil {
			WriteError(w, http.StatusBadRequest, "progress or status is required")
			return
		}
		err = h.store.Progress(r.Context(), req.TaskID, *req.Progress)
	case queue.StatusCompleted:
		result := ""
		if req.Result != nil {
			result = *req.Result
		}
		err = h.store.Succeed(r.Context(), req.TaskID, result)
	case queue.StatusFailed:
		message := ""
		if req.Error != nil {
			message = *req.Error
		}
		err = h.store.Fail(r.Context(), req.TaskID, message)
	default:
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("unsupported status %q", req.Status))
		return
	}

	if err != nil {
		h.log.Error().Err(err).Str("task_id", req.TaskID).Msg("task update failed")
		WriteError(w, http.StatusInternalServerError, "task update failed")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Status handles GET /api/worker/tasks/{id}, used for cancellation checks.
func (h *WorkerHandler) Status(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")
	task, err := h.store.Get(r.Context(), taskID)
	if errors.Is(err, queue.ErrTaskNotFound) {
		WriteError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("task_id", taskID).Msg("task lookup failed")
		WriteError(w, http.StatusInternalServerError, "task lookup failed")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"id":     task.ID,
		"status": task.Status,
	})
}

// File handles GET /api/worker/tasks/{id}/file: stream the task's audio to
// the worker.
func (h *WorkerHandler) File(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")

	key, err := h.uploads.Find(r.Context(), taskID)
	if errors.Is(err, storage.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("task_id", taskID).Msg("upload lookup failed")
		WriteError(w, http.StatusInternalServerError, "upload lookup failed")
		return
	}

	f, err := h.uploads.Open(r.Context(), key)
	if err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("upload open failed")
		WriteError(w, http.StatusInternalServerError, "upload open failed")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", key))
	if _, err := io.Copy(w, f); err != nil {
		h.log.Warn().Err(err).Str("key", key).Msg("file stream interrupted")
	}
}

// DeleteFile handles DELETE /api/worker/tasks/{id}/file: remove the upload
// once the worker is done with it.
func (h *WorkerHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")

	key, err := h.uploads.Find(r.Context(), taskID)
	if errors.Is(err, storage.ErrNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("task_id", taskID).Msg("upload lookup failed")
		WriteError(w, http.StatusInternalServerError, "upload lookup failed")
		return
	}

	if err := h.uploads.Delete(r.Context(), key); err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("upload delete failed")
		WriteError(w, http.StatusInternalServerError, "upload delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
