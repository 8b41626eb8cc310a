package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aictx/aictx/internal/output"
)

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete <snapshot-id>",
	Short: "Delete a snapshot",
	Long: `Remove a snapshot's storage. Deleting a snapshot that does not exist
succeeds without doing anything, so retried scripts stay clean.`,
	Args: cobra.ExactArgs(1),
	RunE: runSnapshotDelete,
}

func init() {
	snapshotCmd.AddCommand(snapshotDeleteCmd)
}

func runSnapshotDelete(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	if err := app.snapshots.Delete(args[0]); err != nil {
		return output.NewSystemError("failed to delete snapshot", err)
	}
	app.printer.Successf("deleted %s", args[0])
	return nil
}
