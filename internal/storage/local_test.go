package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestLocal(t *testing.T) *LocalStorage {
	t.Helper()
	l, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	return l
}

func TestLocalStorage_WriteReadRoundTrip(t *testing.T) {
	l := newTestLocal(t)

	if err := l.WriteFile("nested/dir/file.json", []byte("content")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := l.ReadFile("nested/dir/file.json")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "content" {
		t.Errorf("Unexpected content: %s", data)
	}
}

func TestLocalStorage_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "does", "not", "exist")

	l, err := NewLocalStorage(root)
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}

	info, err := os.Stat(l.Root())
	if err != nil || !info.IsDir() {
		t.Errorf("Expected root directory created, got %v", err)
	}
}

func TestLocalStorage_NotFound(t *testing.T) {
	l := newTestLocal(t)

	if _, err := l.ReadFile("missing.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound from ReadFile, got %v", err)
	}
	if err := l.DeleteFile("missing.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound from DeleteFile, got %v", err)
	}
	if _, err := l.Metadata("missing.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound from Metadata, got %v", err)
	}
	if _, err := l.ListFiles("missing-dir"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound from ListFiles, got %v", err)
	}
}

func TestLocalStorage_Exists(t *testing.T) {
	l := newTestLocal(t)
	l.WriteFile("here.json", []byte("x"))

	if ok, _ := l.Exists("here.json"); !ok {
		t.Error("Expected existing file to be reported")
	}
	if ok, _ := l.Exists("gone.json"); ok {
		t.Error("Expected missing file to be reported absent")
	}
}

func TestLocalStorage_ListFilesSkipsDirectories(t *testing.T) {
	l := newTestLocal(t)
	l.WriteFile("col/doc.json", []byte("1"))
	l.WriteFile("col/backups/b.json", []byte("2"))

	files, err := l.ListFiles("col")
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if len(files) != 1 || files[0] != "doc.json" {
		t.Errorf("Expected only direct files, got %v", files)
	}
}

func TestLocalStorage_CopyFile(t *testing.T) {
	l := newTestLocal(t)
	l.WriteFile("a.json", []byte("orig"))

	if err := l.CopyFile("a.json", "backups/a.json"); err != nil {
		t.Fatalf("CopyFile failed: %v", err)
	}

	data, err := l.ReadFile("backups/a.json")
	if err != nil || string(data) != "orig" {
		t.Errorf("Expected copy readable, got %s, %v", data, err)
	}
}
