// Package storage holds uploaded audio until a worker consumes it, either on
// the local filesystem or in an S3-compatible object store.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/scribed/internal/config"
)

// ErrNotFound is returned when no upload exists for a key or task.
var ErrNotFound = errors.New("upload not found")

// UploadStore abstracts where uploaded audio lives. Keys are {taskID}{ext}.
type UploadStore interface {
	// Save stores the upload under key.
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// Open returns a reader for the upload.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Find resolves a task ID to its upload key, whatever extension the
	// original file carried. Returns ErrNotFound if absent.
	Find(ctx context.Context, taskID string) (string, error)

	// Delete removes the upload. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Type returns "local" or "s3".
	Type() string
}

// New creates an upload store from config: S3 when a bucket is configured,
// the local upload directory otherwise. S3 credentials and bucket access are
// verified at startup so a bad deployment fails fast.
func New(cfg config.S3, uploadDir string, log zerolog.Logger) (UploadStore, error) {
	if !cfg.Enabled() {
		return NewLocalStore(uploadDir), nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, err
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")

	return s3store, nil
}
