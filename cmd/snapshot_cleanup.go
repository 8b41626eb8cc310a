package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aictx/aictx/internal/config"
	"github.com/aictx/aictx/internal/output"
)

var (
	cleanupKeep  int
	cleanupForce bool
)

var snapshotCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove old snapshots beyond the retention count",
	Long: `Delete the oldest snapshots, keeping the most recent N.

Without --force this only shows what would be deleted.

Examples:
  aictx snapshot cleanup              # Show what would be deleted
  aictx snapshot cleanup --keep 5     # Keep only the 5 newest
  aictx snapshot cleanup --force      # Actually delete`,
	Args: cobra.NoArgs,
	RunE: runSnapshotCleanup,
}

func init() {
	snapshotCmd.AddCommand(snapshotCleanupCmd)

	snapshotCleanupCmd.Flags().IntVar(&cleanupKeep, "keep", -1, "Number of snapshots to keep (default from config)")
	snapshotCleanupCmd.Flags().BoolVar(&cleanupForce, "force", false, "Actually delete instead of previewing")
}

func runSnapshotCleanup(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}

	keep := cleanupKeep
	if keep < 0 {
		keep = config.GetRetentionKeep()
	}

	if !cleanupForce {
		metas, err := app.snapshots.List()
		if err != nil {
			return output.NewSystemError("failed to list snapshots", err)
		}
		if len(metas) <= keep {
			app.printer.Printf("Nothing to clean up: %d snapshot(s), keeping %d\n", len(metas), keep)
			return nil
		}
		app.printer.Printf("Keeping %d, would delete %d snapshot(s):\n", keep, len(metas)-keep)
		for _, meta := range metas[keep:] {
			app.printer.Printf("  - %s (%s)\n", meta.ID, meta.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		app.printer.Dimf("\nRun again with --force to delete")
		return nil
	}

	deleted, err := app.snapshots.Cleanup(keep)
	if err != nil {
		return output.NewSystemError("cleanup failed", err)
	}
	if len(deleted) == 0 {
		app.printer.Println("Nothing to clean up")
		return nil
	}
	for _, id := range deleted {
		app.printer.Successf("deleted %s", id)
	}
	app.printer.Printf("\nDeleted %d snapshot(s), kept the %d newest\n", len(deleted), keep)
	return nil
}
