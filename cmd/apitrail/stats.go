package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats [collection]",
	Short: "Show statistics for one or all collections",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	manager, err := newManager()
	if err != nil {
		return err
	}

	if _, err := manager.DiscoverCollections(); err != nil {
		return fmt.Errorf("failed to scan collections: %w", err)
	}

	if len(args) == 1 {
		stats, err := manager.GetStats(args[0])
		if err != nil {
			return err
		}
		data, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	data, _ := json.MarshalIndent(manager.GetAllStats(), "", "  ")
	fmt.Println(string(data))
	return nil
}
