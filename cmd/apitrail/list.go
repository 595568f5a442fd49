package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List collections in the data directory",
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := newManager()
	if err != nil {
		return err
	}

	names, err := manager.DiscoverCollections()
	if err != nil {
		return fmt.Errorf("failed to scan collections: %w", err)
	}

	if len(names) == 0 {
		fmt.Println("No collections found.")
		return nil
	}

	fmt.Printf("Found %d collection(s):\n", len(names))
	for _, name := range names {
		stats, err := manager.GetStats(name)
		if err != nil {
			fmt.Printf("  %s (unreadable: %v)\n", name, err)
			continue
		}
		fmt.Printf("  %s  v%s  %d path(s), %d operation(s)\n",
			stats.Name, stats.Version, stats.Paths, stats.Operations)
	}
	return nil
}
