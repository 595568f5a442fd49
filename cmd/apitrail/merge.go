package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/apitrail/apitrail/internal/collection"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <source>... --target <name>",
	Short: "Merge collections into a target collection",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMerge,
}

var (
	mergeTarget string
	mergePrefix bool
)

func init() {
	mergeCmd.Flags().StringVarP(&mergeTarget, "target", "t", "", "Target collection name (required)")
	mergeCmd.Flags().BoolVar(&mergePrefix, "prefix", false, "Prefix colliding paths with the source collection name")
	mergeCmd.MarkFlagRequired("target")
}

func runMerge(cmd *cobra.Command, args []string) error {
	manager, err := newManager()
	if err != nil {
		return err
	}
	if _, err := manager.DiscoverCollections(); err != nil {
		return fmt.Errorf("failed to scan collections: %w", err)
	}

	store, err := manager.MergeCollections(args, mergeTarget, collection.MergeOptions{
		PrefixWithCollectionName: mergePrefix,
	})
	if err != nil {
		return err
	}

	stats := store.Stats()
	fmt.Printf("Merged %d collection(s) into %s: %d path(s), %d operation(s)\n",
		len(args), mergeTarget, stats.Paths, stats.Operations)
	return nil
}
