// Package storage defines the file store abstraction writers are opened on.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// Store types
const (
	TypeMemory     = "memory"
	TypeFilesystem = "filesystem"
	TypeS3         = "s3"
)

// Common errors returned by Store implementations.
var (
	// ErrNotFound is returned when a path is not (yet) visible.
	ErrNotFound = errors.New("path not found")

	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrAlreadyOpen is returned when a path already has an open writer.
	ErrAlreadyOpen = errors.New("path already has an open writer")

	// ErrInvalidPath is returned for empty, absolute or escaping paths.
	ErrInvalidPath = errors.New("invalid path")
)

// Store is a flat namespace of files addressed by slash-separated paths.
//
// A Store may be eventually consistent: a file whose writer closed without
// error is not guaranteed to be returned by Exists, Open or List right away.
type Store interface {
	// Create opens a sequential write handle for path. The file is committed
	// when the handle is closed without error.
	Create(ctx context.Context, path string) (io.WriteCloser, error)

	// Open returns a reader for a visible file, or ErrNotFound.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Exists reports whether path is currently visible.
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes path. Deleting a missing path is not an error.
	Delete(ctx context.Context, path string) error

	// List returns the visible paths starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Type returns the backend type (memory, filesystem, s3).
	Type() string

	// HealthCheck verifies the store is accessible and operational.
	HealthCheck(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// Aborter is implemented by write handles that can discard their staged
// bytes without committing them. After Abort the handle accepts no further
// Write or Close.
type Aborter interface {
	Abort() error
}

// CleanPath normalizes p to a relative slash path and rejects paths that
// are empty or escape the store root.
func CleanPath(p string) (string, error) {
	p = strings.TrimLeft(strings.ReplaceAll(p, "\\", "/"), "/")
	if p == "" {
		return "", ErrInvalidPath
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}
