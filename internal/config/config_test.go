package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Type != "local" {
		t.Errorf("Expected local storage, got %q", cfg.Storage.Type)
	}
	if cfg.Collections.Default != "API Documentation" {
		t.Errorf("Unexpected default collection: %q", cfg.Collections.Default)
	}
	if !cfg.Collections.ChangeDetection || !cfg.Collections.AutoSave {
		t.Error("Expected change detection and autosave on by default")
	}
	if cfg.Capture.MaxRecent != 1000 {
		t.Errorf("Expected feed window 1000, got %d", cfg.Capture.MaxRecent)
	}
}

func TestLoad_LayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9999
capture:
  sensitiveFields:
    - password
    - internal_token
collections:
  default: Custom
  pathBased: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Expected overridden port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected default host retained, got %q", cfg.Server.Host)
	}
	if len(cfg.Capture.SensitiveFields) != 2 || cfg.Capture.SensitiveFields[1] != "internal_token" {
		t.Errorf("Unexpected sensitive fields: %v", cfg.Capture.SensitiveFields)
	}
	if cfg.Collections.Default != "Custom" || !cfg.Collections.PathBased {
		t.Errorf("Unexpected collections config: %+v", cfg.Collections)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("server: [not a map"), 0644)

	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}
