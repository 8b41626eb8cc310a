package cmd

import (
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage working-tree snapshots",
	Long: `Inspect, restore, delete and bundle snapshots.

Snapshots are created automatically by 'aictx task start'. Each one is
immutable once written and addressable by its time-ordered identifier.`,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
}
