package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/apitrail/apitrail/internal/filter"
)

// Config holds the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Capture     CaptureConfig     `yaml:"capture"`
	Collections CollectionsConfig `yaml:"collections"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig holds admin HTTP server configuration
type ServerConfig struct {
	Port int       `yaml:"port"`
	Host string    `yaml:"host"`
	TLS  TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS termination configuration. With AutoGenerate a
// self-signed certificate is created and cached when no pair is
// configured.
type TLSConfig struct {
	Enabled      bool   `yaml:"enabled"`
	CertFile     string `yaml:"certFile"`
	KeyFile      string `yaml:"keyFile"`
	AutoGenerate bool   `yaml:"autoGenerate"`
}

// StorageConfig holds storage adapter configuration
type StorageConfig struct {
	Type string `yaml:"type"` // "local" or "memory"
	Path string `yaml:"path"` // Base directory for local storage
}

// CaptureConfig holds redaction and feed configuration
type CaptureConfig struct {
	SensitiveFields  []string      `yaml:"sensitiveFields"`  // Substring match against body keys
	SensitiveHeaders []string      `yaml:"sensitiveHeaders"` // Exact match against header names
	MaxRecent        int           `yaml:"maxRecent"`        // Live feed window size
	Ignore           []filter.Rule `yaml:"ignore"`           // Matching exchanges are not captured
}

// CollectionsConfig holds document assignment configuration
type CollectionsConfig struct {
	Default         string `yaml:"default"`
	SingleFile      bool   `yaml:"singleFile"`
	AutoSave        bool   `yaml:"autoSave"`
	ChangeDetection bool   `yaml:"changeDetection"`
	GroupByPath     bool   `yaml:"groupByPath"`
	IncludeExamples bool   `yaml:"includeExamples"`
	IncludeSchemas  bool   `yaml:"includeSchemas"`
	VersionBased    bool   `yaml:"versionBased"`
	PathBased       bool   `yaml:"pathBased"`
	StatusBased     bool   `yaml:"statusBased"`
	Environment     string `yaml:"environment"`
	BackupOnWrite   bool   `yaml:"backupOnWrite"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
			TLS: TLSConfig{
				AutoGenerate: true,
			},
		},
		Storage: StorageConfig{
			Type: "local",
			Path: "./data",
		},
		Capture: CaptureConfig{
			MaxRecent: 1000,
		},
		Collections: CollectionsConfig{
			Default:         "API Documentation",
			SingleFile:      true,
			AutoSave:        true,
			ChangeDetection: true,
			GroupByPath:     true,
			IncludeExamples: true,
			IncludeSchemas:  true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from a YAML file, layered over defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
