package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aictx/aictx/internal/diffengine"
	"github.com/aictx/aictx/internal/output"
	"github.com/aictx/aictx/internal/snapshot"
)

var diffFiles []string

var diffCmd = &cobra.Command{
	Use:   "diff <snapshot-id> [other-snapshot-id]",
	Short: "Preview what a rollback would change",
	Long: `Compare a snapshot against the current working tree without touching
any file, or compare two snapshots when a second id is given.

Against the working tree, modified and deleted files are the ones a
rollback would write. Files that exist only on disk are reported but
never deleted.

Examples:
  aictx snapshot diff snap_20260830T120000_a1b2c3
  aictx snapshot diff snap_20260830T120000_a1b2c3 --files src/
  aictx snapshot diff snap_20260830T120000_a1b2c3 snap_20260830T130000_d4e5f6
  aictx snapshot diff snap_20260830T120000_a1b2c3 --json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDiff,
}

func init() {
	snapshotCmd.AddCommand(diffCmd)

	diffCmd.Flags().StringSliceVar(&diffFiles, "files", nil, "Restrict the comparison to these paths")
}

func runDiff(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}

	meta, err := app.snapshots.Get(args[0])
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			return output.NewUserError(err.Error())
		}
		return output.NewSystemError("failed to load snapshot", err)
	}

	var diff *diffengine.Result
	if len(args) == 2 {
		other, err := app.snapshots.Get(args[1])
		if err != nil {
			if errors.Is(err, snapshot.ErrNotFound) {
				return output.NewUserError(err.Error())
			}
			return output.NewSystemError("failed to load snapshot", err)
		}
		diff, err = app.diff.DiffSnapshots(cmd.Context(), meta, other, diffFiles)
		if err != nil {
			if errors.Is(err, snapshot.ErrNotFound) {
				return output.NewUserError(err.Error())
			}
			return output.NewSystemError("failed to compute diff", err)
		}
	} else {
		var err error
		diff, err = app.diff.Diff(cmd.Context(), meta, diffFiles)
		if err != nil {
			if errors.Is(err, snapshot.ErrNotFound) {
				return output.NewUserError(err.Error())
			}
			return output.NewSystemError("failed to compute diff", err)
		}
	}

	if done, err := machineEncode(diff); done {
		return err
	}

	counts := diff.Counts()
	changed := counts[diffengine.StatusModified] + counts[diffengine.StatusDeleted] +
		counts[diffengine.StatusAdded]
	if changed == 0 {
		if len(args) == 2 {
			app.printer.Successf("snapshots %s and %s are identical", meta.ID, args[1])
		} else {
			app.printer.Successf("working tree matches snapshot %s", meta.ID)
			if n := counts[diffengine.StatusUntracked]; n > 0 {
				app.printer.Dimf("%d file(s) exist only on disk and would be left alone", n)
			}
		}
		return nil
	}

	if len(args) == 2 {
		app.printer.Header("Diff " + meta.ID + " -> " + args[1])
	} else {
		app.printer.Header("Diff against " + meta.ID)
	}
	for _, fd := range diff.Files {
		switch fd.Status {
		case diffengine.StatusModified:
			app.printer.Boldf("modified: %s", fd.Path)
		case diffengine.StatusDeleted:
			if len(args) == 2 {
				app.printer.Boldf("deleted: %s", fd.Path)
			} else {
				app.printer.Boldf("deleted on disk (rollback recreates): %s", fd.Path)
			}
		case diffengine.StatusAdded:
			app.printer.Boldf("added: %s", fd.Path)
		case diffengine.StatusUntracked:
			app.printer.Dimf("only on disk (left alone): %s", fd.Path)
			continue
		default:
			continue
		}
		if fd.Binary {
			app.printer.Dimf("  binary file, no line diff")
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(fd.Unified, "\n"), "\n") {
			app.printer.DiffLine(line)
		}
	}
	if len(args) == 2 {
		app.printer.Printf("\n%d modified, %d added, %d deleted, %d unchanged\n",
			counts[diffengine.StatusModified], counts[diffengine.StatusAdded],
			counts[diffengine.StatusDeleted], counts[diffengine.StatusUnchanged])
	} else {
		app.printer.Printf("\n%d modified, %d deleted, %d only on disk, %d unchanged\n",
			counts[diffengine.StatusModified], counts[diffengine.StatusDeleted],
			counts[diffengine.StatusUntracked], counts[diffengine.StatusUnchanged])
	}
	return nil
}
