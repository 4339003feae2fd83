package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// HTTPAPI is the queue transport for workers without database access. It
// speaks the worker task API: claim and update via /api/worker/tasks, file
// transfer via /api/worker/tasks/{id}/file, bearer-authenticated.
type HTTPAPI struct {
	baseURL string
	apiKey  string
	tempDir string
	client  *http.Client
	// fileClient has a long timeout for large audio downloads.
	fileClient *http.Client
	log        zerolog.Logger
}

// NewHTTPAPI creates an HTTP queue client. Downloaded files land in tempDir.
func NewHTTPAPI(baseURL, apiKey, tempDir string, log zerolog.Logger) *HTTPAPI {
	return &HTTPAPI{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		tempDir:    tempDir,
		client:     &http.Client{Timeout: 30 * time.Second},
		fileClient: &http.Client{Timeout: 5 * time.Minute},
		log:        log,
	}
}

func (q *HTTPAPI) Claim(ctx context.Context) (*Task, error) {
	var payload struct {
		Task *Task `json:"task"`
	}
	if err := q.doJSON(ctx, http.MethodGet, "/api/worker/tasks", nil, &payload); err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}
	return payload.Task, nil
}

// taskUpdate is the PATCH body for /api/worker/tasks.
type taskUpdate struct {
	TaskID   string  `json:"taskId"`
	Status   string  `json:"status,omitempty"`
	Progress *int    `json:"progress,omitempty"`
	Result   *string `json:"result,omitempty"`
	Error    *string `json:"error,omitempty"`
}

func (q *HTTPAPI) Progress(ctx context.Context, taskID string, progress int) error {
	return q.patch(ctx, taskUpdate{TaskID: taskID, Progress: &progress})
}

func (q *HTTPAPI) Succeed(ctx context.Context, taskID, result string) error {
	progress := 100
	return q.patch(ctx, taskUpdate{
		TaskID:   taskID,
		Status:   StatusCompleted,
		Progress: &progress,
		Result:   &result,
	})
}

func (q *HTTPAPI) Fail(ctx context.Context, taskID, message string) error {
	progress := 0
	return q.patch(ctx, taskUpdate{
		TaskID:   taskID,
		Status:   StatusFailed,
		Progress: &progress,
		Error:    &message,
	})
}

func (q *HTTPAPI) Status(ctx context.Context, taskID string) (string, error) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := q.doJSON(ctx, http.MethodGet, "/api/worker/tasks/"+taskID, nil, &payload); err != nil {
		return "", fmt.Errorf("task status: %w", err)
	}
	return payload.Status, nil
}

// FetchFile downloads the task's audio into the temp directory. The file
// name comes from Content-Disposition, falling back to {id}.audio.
func (q *HTTPAPI) FetchFile(ctx context.Context, task *Task) (string, error) {
	req, err := q.newRequest(ctx, http.MethodGet, "/api/worker/tasks/"+task.ID+"/file", nil)
	if err != nil {
		return "", err
	}

	resp, err := q.fileClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrFileNotFound, resp.StatusCode)
	}

	name := dispositionFilename(resp.Header.Get("Content-Disposition"))
	if name == "" {
		name = task.ID + ".audio"
	}

	path := filepath.Join(q.tempDir, filepath.Base(name))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create local file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("download file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close local file: %w", err)
	}
	return path, nil
}

func (q *HTTPAPI) DeleteRemoteFile(ctx context.Context, taskID string) error {
	req, err := q.newRequest(ctx, http.MethodDelete, "/api/worker/tasks/"+taskID+"/file", nil)
	if err != nil {
		return err
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("delete remote file: status %d", resp.StatusCode)
	}
	return nil
}

func (q *HTTPAPI) patch(ctx context.Context, update taskUpdate) error {
	return q.doJSON(ctx, http.MethodPatch, "/api/worker/tasks", update, nil)
}

func (q *HTTPAPI) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := q.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (q *HTTPAPI) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if q.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+q.apiKey)
	}
	return req, nil
}

func dispositionFilename(header string) string {
	if header == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(header); err == nil {
		return params["filename"]
	}
	return ""
}
