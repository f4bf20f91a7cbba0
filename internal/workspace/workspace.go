// Package workspace provides ephemeral per-job working directories.
// Every pipeline execution gets a directory that no other invocation can
// collide with, and removes it on every exit path.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Workspace is an ephemeral directory holding downloaded clips, the concat
// manifest, and the produced output of one pipeline execution.
type Workspace struct {
	dir string
}

// New creates a unique workspace directory under baseDir.
// The uuid suffix keeps concurrent executions for the same job apart.
// If baseDir is empty, os.TempDir() is used.
func New(baseDir, jobID string) (*Workspace, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}

	dir := filepath.Join(baseDir, fmt.Sprintf("job-%s-%s", jobID, uuid.NewString()))
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory path.
func (w *Workspace) Dir() string {
	return w.dir
}

// ClipPath returns the local path for the source clip at the given index.
func (w *Workspace) ClipPath(index int) string {
	return filepath.Join(w.dir, fmt.Sprintf("clip-%d.mp4", index))
}

// ManifestPath returns the path of the concat manifest file.
func (w *Workspace) ManifestPath() string {
	return filepath.Join(w.dir, "videos.txt")
}

// OutputPath returns the path of the produced output file.
func (w *Workspace) OutputPath() string {
	return filepath.Join(w.dir, "output.mp4")
}

// Remove deletes the workspace directory and everything in it.
// Safe to call multiple times.
func (w *Workspace) Remove() error {
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return nil
}
