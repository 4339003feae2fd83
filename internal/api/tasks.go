package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/snarg/scribed/internal/audio"
	"github.com/snarg/scribed/internal/queue"
	"github.com/snarg/scribed/internal/storage"
)

// TaskStore is the task persistence the public task endpoints need.
type TaskStore interface {
	Create(ctx context.Context, taskID, fileName string) error
	Get(ctx context.Context, taskID string) (*queue.Task, error)
	Cancel(ctx context.Context, taskID string) (bool, error)
}

// TaskHandler serves the async task intake: upload now, poll for the result,
// cancel if it's no longer wanted.
type TaskHandler struct {
	store   TaskStore
	uploads storage.UploadStore
	log     zerolog.Logger
}

// NewTaskHandler creates the handler.
func NewTaskHandler(store TaskStore, uploads storage.UploadStore, log zerolog.Logger) *TaskHandler {
	return &TaskHandler{
		store:   store,
		uploads: uploads,
		log:     log.With().Str("handler", "tasks").Logger(),
	}
}

// Create handles POST /api/v1/tasks: store the upload, enqueue a pending
// task and return its ID for status polling.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing audio file field")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !audio.SupportedExtension(header.Filename) {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf(
			"unsupported file format: %s (supported: %s)",
			ext, strings.Join(audio.SupportedExtensions(), ", ")))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read audio file")
		return
	}

	taskID := uuid.NewString()
	key := taskID + ext
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := h.uploads.Save(r.Context(), key, data, contentType); err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("upload save failed")
		WriteError(w, http.StatusInternalServerError, "could not store upload")
		return
	}

	if err := h.store.Create(r.Context(), taskID, header.Filename); err != nil {
		h.log.Error().Err(err).Str("task_id", taskID).Msg("task create failed")
		// Don't leave an orphaned upload behind.
		if derr := h.uploads.Delete(r.Context(), key); derr != nil {
			h.log.Warn().Err(derr).Str("key", key).Msg("orphan upload cleanup failed")
		}
		WriteError(w, http.StatusInternalServerError, "could not create task")
		return
	}

	h.log.Info().Str("task_id", taskID).Str("file", header.Filename).Msg("task created")
	WriteJSON(w, http.StatusCreated, map[string]string{
		"id":     taskID,
		"status": queue.StatusPending,
	})
}

// Get handles GET /api/v1/tasks/{id}: the full task, including result or
// error once terminal.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
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
	WriteJSON(w, http.StatusOK, task)
}

// Cancel handles POST /api/v1/tasks/{id}/cancel. Only pending and processing
// tasks can be cancelled; a processing task stops at the worker's next
// cancellation check.
func (h *TaskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")

	cancelled, err := h.store.Cancel(r.Context(), taskID)
	if err != nil {
		h.log.Error().Err(err).Str("task_id", taskID).Msg("task cancel failed")
		WriteError(w, http.StatusInternalServerError, "task cancel failed")
		return
	}
	if !cancelled {
		if _, err := h.store.Get(r.Context(), taskID); errors.Is(err, queue.ErrTaskNotFound) {
			WriteError(w, http.StatusNotFound, "task not found")
			return
		}
		WriteError(w, http.StatusConflict, "task already finished")
		return
	}

	h.log.Info().Str("task_id", taskID).Msg("task cancelled")
	WriteJSON(w, http.StatusOK, map[string]string{
		"id":     taskID,
		"status": queue.StatusCancelled,
	})
}
