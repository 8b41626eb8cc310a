package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aictx/aictx/internal/output"
)

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all snapshots, newest first",
	Long: `List all snapshots with their identifier, creation time, capture mode,
file count and label.

Examples:
  aictx snapshot list
  aictx snapshot list --json
  aictx snapshot list --toon`,
	Args: cobra.NoArgs,
	RunE: runSnapshotList,
}

func init() {
	snapshotCmd.AddCommand(snapshotListCmd)
}

func runSnapshotList(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}

	metas, err := app.snapshots.List()
	if err != nil {
		return output.NewSystemError("failed to list snapshots", err)
	}

	if done, err := machineEncode(metas); done {
		return err
	}

	if len(metas) == 0 {
		app.printer.Println("No snapshots found")
		return nil
	}

	app.printer.Header("Snapshots")
	for _, meta := range metas {
		app.printer.Boldf("%s", meta.ID)
		app.printer.Printf("  created: %s  mode: %s  files: %d\n",
			meta.CreatedAt.Format("2006-01-02 15:04:05"), meta.Mode, len(meta.Files))
		if meta.Label != "" {
			app.printer.Printf("  label:   %s\n", meta.Label)
		}
		if meta.Agent != "" {
			app.printer.Printf("  agent:   %s\n", meta.Agent)
		}
	}
	app.printer.Printf("\n%d snapshot(s)\n", len(metas))
	return nil
}
