package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/scribed/internal/queue"
	"github.com/snarg/scribed/internal/storage"
)

type fakeTaskStore struct {
	tasks     map[string]*queue.Task
	createErr error
	created   []string
	cancelled map[string]bool
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: map[string]*queue.Task{}, cancelled: map[string]bool{}}
}

func (s *fakeTaskStore) Create(ctx context.Context, taskID, fileName string) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, taskID)
	s.tasks[taskID] = &queue.Task{ID: taskID, FileName: fileName, Status: queue.StatusPending}
	return nil
}

func (s *fakeTaskStore) Get(ctx context.Context, taskID string) (*queue.Task, error) {
	task, ok := s.tasks[taskID]
	if !ok {
		return nil, queue.ErrTaskNotFound
	}
	return task, nil
}

func (s *fakeTaskStore) Cancel(ctx context.Context, taskID string) (bool, error) {
	task, ok := s.tasks[taskID]
	if !ok {
		return false, nil
	}
	if task.Status != queue.StatusPending && task.Status != queue.StatusProcessing {
		return false, nil
	}
	task.Status = queue.StatusCancelled
	s.cancelled[taskID] = true
	return true, nil
}

func taskRouter(h *TaskHandler) chi.Router {
	r := chi.NewRouter()
	r.Post("/api/v1/tasks", h.Create)
	r.Get("/api/v1/tasks/{id}", h.Get)
	r.Post("/api/v1/tasks/{id}/cancel", h.Cancel)
	return r
}

func TestTaskHandler_Create(t *testing.T) {
	t.Run("stores_upload_and_enqueues", func(t *testing.T) {
		store := newFakeTaskStore()
		uploads := storage.NewLocalStore(t.TempDir())
		r := taskRouter(NewTaskHandler(store, uploads, zerolog.Nop()))

		body, contentType := multipartBody(t, "meeting.mp3", []byte("audio"), nil)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
		}
		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp["status"] != queue.StatusPending || resp["id"] == "" {
			t.Errorf("response = %v", resp)
		}
		if len(store.created) != 1 || store.created[0] != resp["id"] {
			t.Errorf("created tasks = %v", store.created)
		}
		key, err := uploads.Find(context.Background(), resp["id"])
		if err != nil {
			t.Fatalf("upload not stored: %v", err)
		}
		if key != resp["id"]+".mp3" {
			t.Errorf("upload key = %q, want id.mp3", key)
		}
	})

	t.Run("unsupported_extension_is_rejected", func(t *testing.T) {
		r := taskRouter(NewTaskHandler(newFakeTaskStore(), storage.NewLocalStore(t.TempDir()), zerolog.Nop()))

		body, contentType := multipartBody(t, "doc.pdf", []byte("x"), nil)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("enqueue_failure_removes_orphan_upload", func(t *testing.T) {
		store := newFakeTaskStore()
		store.createErr = errors.New("database down")
		uploads := storage.NewLocalStore(t.TempDir())
		r := taskRouter(NewTaskHandler(store, uploads, zerolog.Nop()))

		body, contentType := multipartBody(t, "a.mp3", []byte("audio"), nil)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rec.Code)
		}
	})
}

func TestTaskHandler_Get(t *testing.T) {
	store := newFakeTaskStore()
	store.tasks["t1"] = &queue.Task{ID: "t1", Status: queue.StatusCompleted, Result: "[00:00] hi", Progress: 100}
	r := taskRouter(NewTaskHandler(store, storage.NewLocalStore(t.TempDir()), zerolog.Nop()))

	t.Run("returns_full_task", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/t1", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var task queue.Task
		if err := json.Unmarshal(rec.Body.Bytes(), &task); err != nil {
			t.Fatal(err)
		}
		if task.Result != "[00:00] hi" || task.Progress != 100 {
			t.Errorf("task = %+v", task)
		}
	})

	t.Run("unknown_id_is_404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/nope", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})
}

func TestTaskHandler_Cancel(t *testing.T) {
	t.Run("cancels_pending_task", func(t *testing.T) {
		store := newFakeTaskStore()
		store.tasks["t1"] = &queue.Task{ID: "t1", Status: queue.StatusPending}
		r := taskRouter(NewTaskHandler(store, storage.NewLocalStore(t.TempDir()), zerolog.Nop()))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/t1/cancel", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
		}
		if !store.cancelled["t1"] {
			t.Error("task not cancelled in store")
		}
	})

	t.Run("finished_task_is_conflict", func(t *testing.T) {
		store := newFakeTaskStore()
		store.tasks["t1"] = &queue.Task{ID: "t1", Status: queue.StatusCompleted}
		r := taskRouter(NewTaskHandler(store, storage.NewLocalStore(t.TempDir()), zerolog.Nop()))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/t1/cancel", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("unknown_id_is_404", func(t *testing.T) {
		r := taskRouter(NewTaskHandler(newFakeTaskStore(), storage.NewLocalStore(t.TempDir()), zerolog.Nop()))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/nope/cancel", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})
}
