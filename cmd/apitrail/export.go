package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/apitrail/apitrail/internal/specstore"
)

var exportCmd = &cobra.Command{
	Use:   "export <collection>",
	Short: "Export a collection document as JSON or YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var (
	exportFormat   string
	exportOutput   string
	exportValidate bool
)

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Output format: json or yaml")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to file instead of stdout")
	exportCmd.Flags().BoolVar(&exportValidate, "validate", false, "Run a best-effort OpenAPI 3 check on the exported document")
}

func runExport(cmd *cobra.Command, args []string) error {
	manager, err := newManager()
	if err != nil {
		return err
	}
	if _, err := manager.DiscoverCollections(); err != nil {
		return fmt.Errorf("failed to scan collections: %w", err)
	}

	store := manager.GetOrCreate(args[0])

	var data []byte
	switch exportFormat {
	case "yaml":
		data, err = store.ExportYAML()
	case "json":
		data, err = store.ExportJSON()
	default:
		return fmt.Errorf("unknown format %q, expected json or yaml", exportFormat)
	}
	if err != nil {
		return fmt.Errorf("failed to export %s: %w", args[0], err)
	}

	if exportValidate {
		jsonData := data
		if exportFormat == "yaml" {
			jsonData, err = store.ExportJSON()
			if err != nil {
				return err
			}
		}
		if err := specstore.Validate(jsonData); err != nil {
			fmt.Fprintf(os.Stderr, "Validation warning: %v\n", err)
		} else {
			fmt.Fprintln(os.Stderr, "Document passed OpenAPI 3 validation")
		}
	}

	if exportOutput != "" {
		if err := os.WriteFile(exportOutput, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", exportOutput, err)
		}
		fmt.Printf("Exported %s to %s\n", args[0], exportOutput)
		return nil
	}

	fmt.Println(string(data))
	return nil
}
