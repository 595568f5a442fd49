package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize apitrail with default configuration and directory structure",
	Long: `Creates the default configuration file (config.yaml) and data directory
structure.

This command will:
  - Create config.yaml with default settings
  - Create data/ directory for the local storage backend
  - Create data/collections/ directory for specification documents
  - Create data/collections/backups/ and data/collections/versions/

If config.yaml already exists, it will not be overwritten unless --force
is used.`,
	RunE: runInit,
}

var (
	initForce bool
	initPath  string
)

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing config file")
	initCmd.Flags().StringVarP(&initPath, "path", "p", ".", "Path where to initialize (default: current directory)")
}

func runInit(cmd *cobra.Command, args []string) error {
	absPath, err := filepath.Abs(initPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	configFile := filepath.Join(absPath, "config.yaml")
	dataDir := filepath.Join(absPath, "data")

	if _, err := os.Stat(configFile); err == nil && !initForce {
		return fmt.Errorf("config.yaml already exists. Use --force to overwrite")
	}

	dirs := []string{
		dataDir,
		filepath.Join(dataDir, "collections"),
		filepath.Join(dataDir, "collections", "backups"),
		filepath.Join(dataDir, "collections", "versions"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		fmt.Printf("Created directory: %s\n", dir)
	}

	config := map[string]interface{}{
		"server": map[string]interface{}{
			"port": 8080,
			"host": "0.0.0.0",
			"tls": map[string]interface{}{
				"enabled":      false,
				"certFile":     "",
				"keyFile":      "",
				"autoGenerate": true,
			},
		},
		"storage": map[string]interface{}{
			"type": "local",
			"path": "./data",
		},
		"capture": map[string]interface{}{
			"sensitiveFields":  []string{},
			"sensitiveHeaders": []string{},
			"maxRecent":        1000,
			"ignore":           []interface{}{},
		},
		"collections": map[string]interface{}{
			"default":         "API Documentation",
			"singleFile":      true,
			"autoSave":        true,
			"changeDetection": true,
			"groupByPath":     true,
			"includeExamples": true,
			"includeSchemas":  true,
			"versionBased":    false,
			"pathBased":       false,
			"statusBased":     false,
			"environment":     "",
			"backupOnWrite":   false,
		},
		"logging": map[string]interface{}{
			"level":  "info",
			"format": "json",
		},
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}

	header := `# apitrail Configuration
# See documentation at https://github.com/apitrail/apitrail

`
	if err := os.WriteFile(configFile, []byte(header+string(data)), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	fmt.Printf("Created config file: %s\n", configFile)

	fmt.Println()
	fmt.Println("Initialization complete! You can now start the server with:")
	fmt.Println()
	fmt.Printf("  cd %s\n", absPath)
	fmt.Println("  apitrail serve")
	fmt.Println()

	return nil
}
