package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)

// LocalStorage implements the Storage interface using local disk.
// Useful for development and tests where no object store is available.
type LocalStorage struct {
	rootDir string
}

// NewLocalStorage creates a new LocalStorage instance rooted at rootDir.
// If rootDir is empty, a directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(rootDir string) (*LocalStorage, error) {
	if rootDir == "" {
		rootDir = filepath.Join(os.TempDir(), "vidstitch-outputs")
	}

	if err := os.MkdirAll(rootDir, 0750); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	return &LocalStorage{rootDir: rootDir}, nil
}

// RootDir returns the storage root directory path.
func (s *LocalStorage) RootDir() string {
	return s.rootDir
}

// Upload writes data to a file under the root directory, overwriting any
// existing file at that key.
func (s *LocalStorage) Upload(ctx context.Context, key string, data io.Reader, _ string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	dest := filepath.Join(s.rootDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}

	f, err := os.Create(dest) // #nosec G304 - dest is derived from the storage root
	if err != nil {
		return fmt.Errorf("create object file: %w", err)
	}

	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return fmt.Errorf("write object file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(dest)
		return fmt.Errorf("close object file: %w", err)
	}

	return nil
}

// ObjectURL returns a file URL for the stored object.
func (s *LocalStorage) ObjectURL(_ context.Context, key string) (string, error) {
	dest := filepath.Join(s.rootDir, filepath.FromSlash(key))
	if _, err := os.Stat(dest); err != nil {
		return "", fmt.Errorf("stat object: %w", err)
	}
	return "file://" + dest, nil
}
