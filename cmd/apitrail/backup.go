package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup <collection>",
	Short: "Create and manage timestamped backups of a collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackup,
}

var (
	backupList  bool
	backupPrune int
)

func init() {
	backupCmd.Flags().BoolVarP(&backupList, "list", "l", false, "List existing backups instead of creating one")
	backupCmd.Flags().IntVar(&backupPrune, "prune", -1, "Delete all but the newest N backups")
}

func runBackup(cmd *cobra.Command, args []string) error {
	manager, err := newManager()
	if err != nil {
		return err
	}
	if _, err := manager.DiscoverCollections(); err != nil {
		return fmt.Errorf("failed to scan collections: %w", err)
	}

	name := args[0]

	if backupList {
		backups, err := manager.ListBackups(name)
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			fmt.Println("No backups found.")
			return nil
		}
		for _, b := range backups {
			fmt.Println(b)
		}
		return nil
	}

	if backupPrune >= 0 {
		removed, err := manager.PruneBackups(name, backupPrune)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d backup(s)\n", removed)
		return nil
	}

	path, err := manager.CreateBackup(name)
	if err != nil {
		return err
	}
	fmt.Printf("Created backup: %s\n", path)
	return nil
}
