package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aictx/aictx/internal/config"
	"github.com/aictx/aictx/internal/output"
	"github.com/aictx/aictx/internal/snapshot"
	"github.com/aictx/aictx/internal/task"
)

var (
	taskStartTitle string
	taskStartType  string
	taskStartAgent string
	taskStartFiles []string
	taskStartForce bool
)

var taskStartCmd = &cobra.Command{
	Use:   "start <description>",
	Short: "Start a task with a safety snapshot",
	Long: `Capture a snapshot of the working tree, record the task and write the
task brief.

If snapshot creation fails the task is not recorded, so there is never
a task without a rollback point.

Examples:
  aictx task start "add retry logic to the uploader"
  aictx task start "fix flaky websocket test" --type fix
  aictx task start "refactor config loading" --files internal/config --agent claude`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTaskStart,
}

func init() {
	taskCmd.AddCommand(taskStartCmd)

	taskStartCmd.Flags().StringVar(&taskStartTitle, "title", "", "Short title (default: derived from the description)")
	taskStartCmd.Flags().StringVar(&taskStartType, "type", "feature", "Task type: feature, fix, refactor, test, docs, chore")
	taskStartCmd.Flags().StringVar(&taskStartAgent, "agent", "", "Name of the AI agent doing the edits")
	taskStartCmd.Flags().StringSliceVar(&taskStartFiles, "files", nil, "Restrict the snapshot to these paths")
	taskStartCmd.Flags().BoolVar(&taskStartForce, "force", false, "Overwrite an existing task brief")
}

func runTaskStart(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}

	result, err := app.coordinator.Start(cmd.Context(), task.StartOptions{
		Description: strings.Join(args, " "),
		Title:       taskStartTitle,
		Type:        taskStartType,
		Agent:       taskStartAgent,
		Files:       taskStartFiles,
		Force:       taskStartForce,
		StrictDirty: config.GetStrictDirty(),
		Mode:        snapshot.CaptureMode(config.GetCaptureMode()),
	})
	if err != nil {
		switch {
		case errors.Is(err, snapshot.ErrDirtyTree):
			return output.NewUserError("working tree has uncommitted changes; commit or stash them, or disable snapshot.strict_dirty")
		case errors.Is(err, task.ErrBriefExists):
			return output.NewUserError(err.Error())
		}
		return output.NewSystemError("failed to start task", err)
	}

	if done, err := machineEncode(result); done {
		return err
	}

	app.printer.Header("Task started")
	app.printer.Successf("task     %s", result.Record.ID)
	app.printer.Successf("snapshot %s (%s, %d files)",
		result.Snapshot.ID, result.Snapshot.Mode, len(result.Snapshot.Files))
	if result.BriefPath != "" {
		app.printer.Successf("brief    %s", result.BriefPath)
	}
	if result.Warning != "" {
		app.printer.Warnf("%s", result.Warning)
	}
	app.printer.Dimf("\nRoll back anytime: aictx snapshot rollback --id %s", result.Snapshot.ID)
	return nil
}
