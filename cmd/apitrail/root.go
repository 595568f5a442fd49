package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/apitrail/apitrail/internal/collection"
	"github.com/apitrail/apitrail/internal/specstore"
	"github.com/apitrail/apitrail/internal/storage"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "apitrail",
		Short: "apitrail - API documentation synthesized from observed traffic",
		Long: `apitrail observes HTTP request/response pairs, sanitizes sensitive
values, and incrementally synthesizes OpenAPI-style documents from the
observed traffic. Documents are grouped into named collections persisted
through a pluggable storage backend.`,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringP("data", "d", "", "base directory of collection documents")
	viper.BindPFlag("storage.path", rootCmd.PersistentFlags().Lookup("data"))

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(proxyCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(backupCmd)
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			cwd = "."
		}

		viper.AddConfigPath(cwd)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("APITRAIL")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults sets the default configuration values
func setDefaults() {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	defaultDataPath := filepath.Join(cwd, "data")

	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.tls.enabled", false)
	viper.SetDefault("server.tls.certFile", "")
	viper.SetDefault("server.tls.keyFile", "")
	viper.SetDefault("server.tls.autoGenerate", true)

	// Storage defaults
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.path", defaultDataPath)

	// Capture defaults
	viper.SetDefault("capture.sensitiveFields", []string{})
	viper.SetDefault("capture.sensitiveHeaders", []string{})
	viper.SetDefault("capture.maxRecent", 1000)

	// Collection defaults
	viper.SetDefault("collections.default", "API Documentation")
	viper.SetDefault("collections.singleFile", true)
	viper.SetDefault("collections.autoSave", true)
	viper.SetDefault("collections.changeDetection", true)
	viper.SetDefault("collections.groupByPath", true)
	viper.SetDefault("collections.includeExamples", true)
	viper.SetDefault("collections.includeSchemas", true)
	viper.SetDefault("collections.versionBased", false)
	viper.SetDefault("collections.pathBased", false)
	viper.SetDefault("collections.statusBased", false)
	viper.SetDefault("collections.environment", "")
	viper.SetDefault("collections.backupOnWrite", false)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// newAdapter builds the configured storage adapter
func newAdapter() (storage.Adapter, error) {
	if viper.GetString("storage.type") == "memory" {
		return storage.NewMemoryStorage(), nil
	}

	path := viper.GetString("storage.path")
	if path != "" && !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err == nil {
			path = filepath.Join(cwd, path)
		}
	}
	return storage.NewLocalStorage(path)
}

// newManager builds a collection manager from the active configuration
func newManager() (*collection.Manager, error) {
	adapter, err := newAdapter()
	if err != nil {
		return nil, err
	}

	defaults := specstore.DefaultOptions()
	defaults.SingleFile = viper.GetBool("collections.singleFile")
	defaults.AutoSave = viper.GetBool("collections.autoSave")
	defaults.ChangeDetection = viper.GetBool("collections.changeDetection")
	defaults.Builder.GroupByPath = viper.GetBool("collections.groupByPath")
	defaults.Builder.IncludeExamples = viper.GetBool("collections.includeExamples")
	defaults.Builder.IncludeSchemas = viper.GetBool("collections.includeSchemas")

	return collection.NewManager(adapter, collection.ManagerOptions{
		BaseDir:       "collections",
		Defaults:      defaults,
		BackupOnWrite: viper.GetBool("collections.backupOnWrite"),
	}), nil
}
