// Package storage defines the uniform file-like adapter contract that
// specification documents are persisted through, with local-filesystem
// and in-memory implementations.
package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a path does not exist in the backend.
// Callers distinguish it from generic I/O failure with errors.Is.
var ErrNotFound = errors.New("storage: file not found")

// FileMetadata describes one stored file
type FileMetadata struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// Adapter is the uniform storage capability. Paths are relative to the
// adapter's root. WriteFile must create missing parent directories.
// CreateDirectory may be a no-op for backends with implicit namespacing.
type Adapter interface {
	Exists(path string) (bool, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	DeleteFile(path string) error
	ListFiles(dir string) ([]string, error)
	CreateDirectory(path string) error
	CopyFile(src, dst string) error
	Metadata(path string) (*FileMetadata, error)
}
