package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aictx/aictx/internal/diffengine"
	"github.com/aictx/aictx/internal/output"
	"github.com/aictx/aictx/internal/rollback"
	"github.com/aictx/aictx/internal/snapshot"
)

var (
	rollbackLatest bool
	rollbackID     string
	rollbackFiles  []string
	rollbackDryRun bool
	rollbackYes    bool
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Restore working-tree files from a snapshot",
	Long: `Restore files to the state captured in a snapshot.

Each file is written atomically. Files already matching the snapshot are
left alone, requested paths the snapshot does not contain are skipped,
and files that exist only on disk are never deleted.

Examples:
  aictx snapshot rollback --latest
  aictx snapshot rollback --id snap_20260830T120000_a1b2c3
  aictx snapshot rollback --latest --files src/main.go --dry-run
  aictx snapshot rollback --latest --yes`,
	Args: cobra.NoArgs,
	RunE: runRollback,
}

func init() {
	snapshotCmd.AddCommand(rollbackCmd)

	rollbackCmd.Flags().BoolVar(&rollbackLatest, "latest", false, "Roll back to the most recent snapshot")
	rollbackCmd.Flags().StringVar(&rollbackID, "id", "", "Roll back to a specific snapshot")
	rollbackCmd.Flags().StringSliceVar(&rollbackFiles, "files", nil, "Restrict the restore to these paths")
	rollbackCmd.Flags().BoolVar(&rollbackDryRun, "dry-run", false, "Preview the restore without writing anything")
	rollbackCmd.Flags().BoolVar(&rollbackYes, "yes", false, "Skip the confirmation prompt")
}

func runRollback(cmd *cobra.Command, args []string) error {
	if rollbackLatest == (rollbackID != "") {
		return output.NewUserError("pass exactly one of --latest or --id")
	}

	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}

	meta, err := resolveSnapshot(app, rollbackID, rollbackLatest)
	if err != nil {
		return err
	}

	if !rollbackDryRun && !rollbackYes {
		scope := "all files"
		if len(rollbackFiles) > 0 {
			scope = strings.Join(rollbackFiles, ", ")
		}
		if !confirm(fmt.Sprintf("Restore %s from %s?", scope, meta.ID)) {
			app.printer.Println("Aborted")
			return nil
		}
	}

	result, err := app.rollback.Rollback(cmd.Context(), rollback.Request{
		SnapshotID: meta.ID,
		Paths:      rollbackFiles,
		DryRun:     rollbackDryRun,
	})
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			return output.NewUserError(err.Error())
		}
		return output.NewSystemError("rollback failed", err)
	}

	if done, err := machineEncode(result); done {
		return err
	}

	if rollbackDryRun {
		printRollbackPreview(app, result.Diff)
		return nil
	}

	for _, rel := range result.Restored {
		app.printer.Successf("restored %s", rel)
	}
	for _, rel := range result.Unchanged {
		app.printer.Dimf("  unchanged %s", rel)
	}
	for _, rel := range result.Skipped {
		app.printer.Warnf("skipped %s (not in snapshot)", rel)
	}
	for _, failure := range result.Failures {
		app.printer.Errorf("failed %s", failure.Error())
	}

	if rollbackErr := result.Err(); rollbackErr != nil {
		return output.NewSystemError("rollback incomplete", rollbackErr)
	}
	app.printer.Printf("\nRestored %d file(s) from %s\n", len(result.Restored), meta.ID)
	return nil
}

func printRollbackPreview(app *app, diff *diffengine.Result) {
	restorable := diff.Restorable()
	if len(restorable) == 0 {
		app.printer.Println("Nothing to restore: working tree already matches the snapshot")
		return
	}
	app.printer.Header("Dry run: " + diff.SnapshotID)
	for _, fd := range diff.Files {
		switch fd.Status {
		case diffengine.StatusModified:
			app.printer.Printf("  would rewrite  %s\n", fd.Path)
		case diffengine.StatusDeleted:
			app.printer.Printf("  would recreate %s\n", fd.Path)
		}
	}
	counts := diff.Counts()
	if n := counts[diffengine.StatusUntracked]; n > 0 {
		app.printer.Dimf("  %d file(s) exist only on disk and will not be deleted", n)
	}
	app.printer.Printf("\n%d file(s) would be written\n", len(restorable))
}

// resolveSnapshot maps --latest / --id to snapshot metadata, with
// not-found surfaced as a user error.
func resolveSnapshot(app *app, id string, latest bool) (*snapshot.Metadata, error) {
	var meta *snapshot.Metadata
	var err error
	if latest {
		meta, err = app.snapshots.Latest()
	} else {
		meta, err = app.snapshots.Get(id)
	}
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			return nil, output.NewUserError(err.Error())
		}
		return nil, output.NewSystemError("failed to resolve snapshot", err)
	}
	return meta, nil
}
