package storage

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStorage implements Adapter with an in-process map. Used by
// tests and as the reference backend with implicit namespacing, where
// CreateDirectory is a no-op.
type MemoryStorage struct {
	mu       sync.RWMutex
	files    map[string][]byte
	modified map[string]time.Time
}

// NewMemoryStorage creates an empty in-memory adapter
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		files:    make(map[string][]byte),
		modified: make(map[string]time.Time),
	}
}

func normalizeKey(p string) string {
	return strings.TrimPrefix(path.Clean(strings.ReplaceAll(p, "\\", "/")), "./")
}

// Exists reports whether the path exists
func (m *MemoryStorage) Exists(p string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.files[normalizeKey(p)]
	return ok, nil
}

// ReadFile reads the file at path
func (m *MemoryStorage) ReadFile(p string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.files[normalizeKey(p)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// WriteFile stores data at path
func (m *MemoryStorage) WriteFile(p string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)

	key := normalizeKey(p)
	m.files[key] = stored
	m.modified[key] = time.Now()
	return nil
}

// DeleteFile removes the file at path
func (m *MemoryStorage) DeleteFile(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := normalizeKey(p)
	if _, ok := m.files[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, p)
	}

	delete(m.files, key)
	delete(m.modified, key)
	return nil
}

// ListFiles returns the relative paths of files directly under dir
func (m *MemoryStorage) ListFiles(dir string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := normalizeKey(dir)
	if prefix == "." {
		prefix = ""
	}
	if prefix != "" {
		prefix += "/"
	}

	files := make([]string, 0)
	for key := range m.files {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rel := strings.TrimPrefix(key, prefix)
		if strings.Contains(rel, "/") {
			continue
		}
		files = append(files, rel)
	}
	sort.Strings(files)
	return files, nil
}

// CreateDirectory is a no-op, the namespace is implicit
func (m *MemoryStorage) CreateDirectory(string) error {
	return nil
}

// CopyFile copies src to dst
func (m *MemoryStorage) CopyFile(src, dst string) error {
	data, err := m.ReadFile(src)
	if err != nil {
		return err
	}
	return m.WriteFile(dst, data)
}

// Metadata returns size and modification time for path
func (m *MemoryStorage) Metadata(p string) (*FileMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := normalizeKey(p)
	data, ok := m.files[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return &FileMetadata{
		Path:         key,
		Size:         int64(len(data)),
		LastModified: m.modified[key],
	}, nil
}
