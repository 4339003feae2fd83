package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/scribed/internal/queue"
	"github.com/snarg/scribed/internal/storage"
)

type fakeWorkerStore struct {
	pending *queue.Task
	tasks   map[string]*queue.Task

	progress      map[string]int
	succeededWith map[string]string
	failedWith    map[string]string
}

func newFakeWorkerStore() *fakeWorkerStore {
	return &fakeWorkerStore{
		tasks:         map[string]*queue.Task{},
		progress:      map[string]int{},
		succeededWith: map[string]string{},
		failedWith:    map[string]string{},
	}
}

func (s *fakeWorkerStore) Claim(ctx context.Context) (*queue.Task, error) {
	t := s.pending
	s.pending = nil
	return t, nil
}

func (s *fakeWorkerStore) Get(ctx context.Context, taskID string) (*queue.Task, error) {
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, queue.ErrTaskNotFound
	}
	return t, nil
}

func (s *fakeWorkerStore) Progress(ctx context.Context, taskID string, progress int) error {
	s.progress[taskID] = progress
	return nil
}

func (s *fakeWorkerStore) Succeed(ctx context.Context, taskID, result string) error {
	s.succeededWith[taskID] = result
	return nil
}

func (s *fakeWorkerStore) Fail(ctx context.Context, taskID, message string) error {
	s.failedWith[taskID] = message
	return nil
}

func workerRouter(store *fakeWorkerStore, uploads storage.UploadStore) chi.Router {
	h := NewWorkerHandler(store, uploads, zerolog.Nop())
	r := chi.NewRouter()
	r.Route("/api/worker", h.Routes)
	return r
}

func TestWorkerHandler_Claim(t *testing.T) {
	t.Run("hands_out_pending_task", func(t *testing.T) {
		store := newFakeWorkerStore()
		store.pending = &queue.Task{ID: "t1", FileName: "a.mp3", Status: queue.StatusProcessing, Progress: 10}
		r := workerRouter(store, storage.NewLocalStore(t.TempDir()))

		req := httptest.NewRequest(http.MethodGet, "/api/worker/tasks", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		var resp struct {
			Task *queue.Task `json:"task"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Task == nil || resp.Task.ID != "t1" {
			t.Errorf("task = %+v", resp.Task)
		}
	})

	t.Run("null_when_queue_empty", func(t *testing.T) {
		r := workerRouter(newFakeWorkerStore(), storage.NewLocalStore(t.TempDir()))

		req := httptest.NewRequest(http.MethodGet, "/api/worker/tasks", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if got := strings.TrimSpace(rec.Body.String()); got != `{"task":null}` {
			t.Errorf("body = %s", got)
		}
	})
}

func TestWorkerHandler_Update(t *testing.T) {
	newReq := func(body string) *http.Request {
		req := httptest.NewRequest(http.MethodPatch, "/api/worker/tasks", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return req
	}

	t.Run("progress_only", func(t *testing.T) {
		store := newFakeWorkerStore()
		r := workerRouter(store, storage.NewLocalStore(t.TempDir()))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, newReq(`{"taskId":"t1","progress":30}`))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
		}
		if store.progress["t1"] != 30 {
			t.Errorf("progress = %v", store.progress)
		}
	})

	t.Run("completed_with_result", func(t *testing.T) {
		store := newFakeWorkerStore()
		r := workerRouter(store, storage.NewLocalStore(t.TempDir()))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, newReq(`{"taskId":"t1","status":"completed","result":"[00:00] hi"}`))

		if store.succeededWith["t1"] != "[00:00] hi" {
			t.Errorf("succeeded = %v", store.succeededWith)
		}
	})

	t.Run("failed_with_error", func(t *testing.T) {
		store := newFakeWorkerStore()
		r := workerRouter(store, storage.NewLocalStore(t.TempDir()))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, newReq(`{"taskId":"t1","status":"failed","error":"boom"}`))

		if store.failedWith["t1"] != "boom" {
			t.Errorf("failed = %v", store.failedWith)
		}
	})

	t.Run("unsupported_status_is_rejected", func(t *testing.T) {
		r := workerRouter(newFakeWorkerStore(), storage.NewLocalStore(t.TempDir()))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, newReq(`{"taskId":"t1","status":"paused"}`))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("missing_task_id_is_rejected", func(t *testing.T) {
		r := workerRouter(newFakeWorkerStore(), storage.NewLocalStore(t.TempDir()))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, newReq(`{"progress":30}`))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestWorkerHandler_Status(t *testing.T) {
	store := newFakeWorkerStore()
	store.tasks["t1"] = &queue.Task{ID: "t1", Status: queue.StatusCancelled}
	r := workerRouter(store, storage.NewLocalStore(t.TempDir()))

	req := httptest.NewRequest(http.MethodGet, "/api/worker/tasks/t1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["id"] != "t1" || resp["status"] != queue.StatusCancelled {
		t.Errorf("response = %v", resp)
	}
}

func TestWorkerHandler_File(t *testing.T) {
	t.Run("streams_upload_with_disposition", func(t *testing.T) {
		uploads := storage.NewLocalStore(t.TempDir())
		if err := uploads.Save(context.Background(), "t1.mp3", []byte("audio-bytes"), "audio/mpeg"); err != nil {
			t.Fatal(err)
		}
		r := workerRouter(newFakeWorkerStore(), uploads)

		req := httptest.NewRequest(http.MethodGet, "/api/worker/tasks/t1/file", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "t1.mp3") {
			t.Errorf("Content-Disposition = %q", cd)
		}
		data, _ := io.ReadAll(rec.Body)
		if string(data) != "audio-bytes" {
			t.Errorf("body = %q", data)
		}
	})

	t.Run("missing_file_is_404", func(t *testing.T) {
		r := workerRouter(newFakeWorkerStore(), storage.NewLocalStore(t.TempDir()))

		req := httptest.NewRequest(http.MethodGet, "/api/worker/tasks/nope/file", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})
}

func TestWorkerHandler_DeleteFile(t *testing.T) {
	t.Run("removes_upload", func(t *testing.T) {
		uploads := storage.NewLocalStore(t.TempDir())
		if err := uploads.Save(context.Background(), "t1.mp3", []byte("x"), "audio/mpeg"); err != nil {
			t.Fatal(err)
		}
		r := workerRouter(newFakeWorkerStore(), uploads)

		req := httptest.NewRequest(http.MethodDelete, "/api/worker/tasks/t1/file", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", rec.Code)
		}
		if _, err := uploads.Find(context.Background(), "t1"); err == nil {
			t.Error("upload still present after delete")
		}
	})

	t.Run("missing_file_is_still_204", func(t *testing.T) {
		r := workerRouter(newFakeWorkerStore(), storage.NewLocalStore(t.TempDir()))

		req := httptest.NewRequest(http.MethodDelete, "/api/worker/tasks/nope/file", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", rec.Code)
		}
	})
}

func TestBearerAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid_token_passes", func(t *testing.T) {
		h := BearerAuth("secret")(ok)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer secret")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("wrong_token_is_401", func(t *testing.T) {
		h := BearerAuth("secret")(ok)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("missing_header_is_401", func(t *testing.T) {
		h := BearerAuth("secret")(ok)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("empty_token_disables_auth", func(t *testing.T) {
		h := BearerAuth("")(ok)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})
}
