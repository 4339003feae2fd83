package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore keeps uploads in a directory shared with database-mode workers.
type LocalStore struct {
	dir string
}

// NewLocalStore creates a filesystem upload store rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// Save writes atomically: temp file then rename, so workers globbing the
// directory never see a half-written upload.
func (s *LocalStore) Save(ctx context.Context, key string, data []byte, contentType string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", s.dir, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(s.dir, key)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.dir, key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return f, err
}

func (s *LocalStore) Find(ctx context.Context, taskID string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, taskID+".*"))
	if err == nil && len(matches) > 0 {
		return filepath.Base(matches[0]), nil
	}
	// Legacy extensionless uploads.
	if _, err := os.Stat(filepath.Join(s.dir, taskID)); err == nil {
		return taskID, nil
	}
	return "", ErrNotFound
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(filepath.Join(s.dir, key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *LocalStore) Type() string { return "local" }

// Dir returns the upload directory path.
func (s *LocalStore) Dir() string { return s.dir }
