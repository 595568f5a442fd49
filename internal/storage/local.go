package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStorage implements Adapter over the local filesystem, rooted at
// a base directory.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates a local adapter rooted at root, creating the
// directory if needed.
func NewLocalStorage(root string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", root, err)
	}
	return &LocalStorage{root: root}, nil
}

// Root returns the adapter's base directory
func (l *LocalStorage) Root() string {
	return l.root
}

func (l *LocalStorage) resolve(path string) string {
	return filepath.Join(l.root, filepath.FromSlash(path))
}

// Exists reports whether the path exists
func (l *LocalStorage) Exists(path string) (bool, error) {
	_, err := os.Stat(l.resolve(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// ReadFile reads the file at path
func (l *LocalStorage) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(l.resolve(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// WriteFile writes data to path, creating parent directories as needed
func (l *LocalStorage) WriteFile(path string, data []byte) error {
	full := l.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// DeleteFile removes the file at path
func (l *LocalStorage) DeleteFile(path string) error {
	if err := os.Remove(l.resolve(path)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// ListFiles returns the relative paths of regular files directly under dir
func (l *LocalStorage) ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(l.resolve(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}

// CreateDirectory creates the directory and any missing parents
func (l *LocalStorage) CreateDirectory(path string) error {
	if err := os.MkdirAll(l.resolve(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// CopyFile copies src to dst, creating dst's parent directories
func (l *LocalStorage) CopyFile(src, dst string) error {
	data, err := l.ReadFile(src)
	if err != nil {
		return err
	}
	return l.WriteFile(dst, data)
}

// Metadata returns size and modification time for path
func (l *LocalStorage) Metadata(path string) (*FileMetadata, error) {
	info, err := os.Stat(l.resolve(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return &FileMetadata{
		Path:         strings.TrimPrefix(path, "./"),
		Size:         info.Size(),
		LastModified: info.ModTime(),
	}, nil
}
