// Package storage provides persistent blob storage for produced outputs.
// It defines the Storage interface (port) for hexagonal architecture and
// implementations for S3-compatible object stores and local disk.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
)

// Storage defines the interface for the output blob store.
type Storage interface {
	// Upload writes data to the store under key with the given content
	// type. An existing object under the same key is overwritten.
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error

	// ObjectURL returns a retrievable URL for an uploaded object: a
	// time-limited signed URL or a permanent public URL, depending on the
	// store's configuration.
	ObjectURL(ctx context.Context, key string) (string, error)
}

// OutputKey returns the object key for a job's produced output,
// namespaced by its owning user.
func OutputKey(userID, jobID string) string {
	return path.Join(userID, fmt.Sprintf("%s-final.mp4", jobID))
}
