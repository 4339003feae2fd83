// Package queue defines the task queue contract and its two transports: a
// Postgres table polled directly, and the worker HTTP API for deployments
// without database access.
package queue

import (
	"context"
	"errors"
	"time"
)

// Task status lifecycle: pending → processing → {completed, failed, cancelled}.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// ErrFileNotFound is returned by FetchFile when the task's audio cannot be
// located or retrieved.
var ErrFileNotFound = errors.New("upload file not found")

// ErrTaskNotFound is returned by lookups for a task ID that doesn't exist.
var ErrTaskNotFound = errors.New("task not found")

// Task is one unit of transcription work, owned by the queue. Workers hold a
// transient copy for the duration of one processing cycle and mutate state
// only through Queue operations.
type Task struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Queue is the system of record for task state. Both transports implement
// it; the driver never sees which one it's talking to.
type Queue interface {
	// Claim atomically takes the oldest pending task, marking it processing
	// with progress 10. Returns (nil, nil) when nothing is pending. At most
	// one worker can claim a given task.
	Claim(ctx context.Context) (*Task, error)

	// Progress updates the task's progress percentage (0–100).
	Progress(ctx context.Context, taskID string, progress int) error

	// Succeed marks the task completed with the formatted transcript,
	// setting progress 100 and clearing any error.
	Succeed(ctx context.Context, taskID, result string) error

	// Fail marks the task failed with the given message, resetting progress
	// to 0.
	Fail(ctx context.Context, taskID, message string) error

	// Status returns the task's current status, for cancellation checks.
	Status(ctx context.Context, taskID string) (string, error)

	// FetchFile makes the task's audio available on the local filesystem
	// and returns its path. Returns ErrFileNotFound (possibly wrapped) when
	// the file cannot be located or retrieved.
	FetchFile(ctx context.Context, task *Task) (string, error)

	// DeleteRemoteFile removes the task's audio from the remote store, if
	// this transport has one. Best-effort: callers log errors, never
	// escalate them.
	DeleteRemoteFile(ctx context.Context, taskID string) error
}
