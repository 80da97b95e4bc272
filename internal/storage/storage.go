// Package storage manages the files a generation run works with: fresh
// temporary paths per run, cleanup, and optional publishing of outputs to
// S3-compatible object storage.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for run-scoped file storage.
type Storage interface {
	// NewTempPath reserves a fresh, unique path in the temp directory. The
	// file is not created. name is a hint for the file name, ext includes
	// the leading dot.
	NewTempPath(name, ext string) (string, error)

	// SaveTemp saves data to a temporary file and returns the file path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp reads a temporary file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// Publish uploads the file at path under key and returns its URL.
	// Returns ErrS3NotConfigured if no object storage is configured.
	Publish(ctx context.Context, key, path string) (url string, err error)
}
