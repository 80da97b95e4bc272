package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/maauso/photoreel/internal/job/id"
)

var (
	// ErrS3NotConfigured is returned when S3 operations are attempted
	// without proper configuration.
	ErrS3NotConfigured = errors.New("S3 storage is not configured")
	// ErrOutsideTempDir is returned when LoadTemp is asked for a file that
	// does not live in the temp directory.
	ErrOutsideTempDir = errors.New("path is outside the temp directory")
)

// LocalStorage implements the Storage interface using local disk.
// It stores temporary files in a configurable directory and does not
// support publishing unless wrapped with S3Storage.
type LocalStorage struct {
	tempDir string
}

// NewLocalStorage creates a new LocalStorage instance.
// If tempDir is empty, a "photoreel" directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(tempDir string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "photoreel")
	}

	tempDir, err := filepath.Abs(tempDir)
	if err != nil {
		return nil, fmt.Errorf("resolve temp directory: %w", err)
	}
	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	return &LocalStorage{tempDir: tempDir}, nil
}

// TempDir returns the temporary directory path.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// NewTempPath returns <tempDir>/<name>-<unique><ext>. Names are unique per
// call, so concurrent runs never share an output path.
func (s *LocalStorage) NewTempPath(name, ext string) (string, error) {
	if name == "" {
		name = "file"
	}
	path := filepath.Join(s.tempDir, id.Generate(name)+ext)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("temp path already exists: %s", path)
	}
	return path, nil
}

// SaveTemp saves data to a temporary file and returns the file path.
// The name is used as a base for the filename with a unique suffix.
func (s *LocalStorage) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.CreateTemp(s.tempDir, name+"_*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	fileName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return fileName, nil
}

// LoadTemp opens a file in the temp directory. Job outputs are read back
// through it, so paths elsewhere on disk are refused with ErrOutsideTempDir.
// The caller is responsible for closing the returned ReadCloser.
func (s *LocalStorage) LoadTemp(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve temp file: %w", err)
	}
	rel, err := filepath.Rel(s.tempDir, abs)
	if err != nil || !filepath.IsLocal(rel) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideTempDir, path)
	}

	f, err := os.Open(abs) // #nosec G304 - confined to tempDir above
	if err != nil {
		return nil, fmt.Errorf("open temp file: %w", err)
	}

	return f, nil
}

// CleanupTemp removes the specified temporary files.
// It continues cleanup even if some files fail to delete,
// returning the first error encountered.
func (s *LocalStorage) CleanupTemp(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove temp file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// Publish is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) Publish(_ context.Context, _, _ string) (string, error) {
	return "", ErrS3NotConfigured
}
