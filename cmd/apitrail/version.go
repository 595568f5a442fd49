package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version <collection> <version>",
	Short: "Snapshot a collection document under a version label",
	Args:  cobra.ExactArgs(2),
	RunE:  runVersion,
}

func runVersion(cmd *cobra.Command, args []string) error {
	manager, err := newManager()
	if err != nil {
		return err
	}
	if _, err := manager.DiscoverCollections(); err != nil {
		return fmt.Errorf("failed to scan collections: %w", err)
	}

	path, err := manager.CreateVersion(args[0], args[1])
	if err != nil {
		return err
	}

	fmt.Printf("Created version snapshot: %s\n", path)
	return nil
}
