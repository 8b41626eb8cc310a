package cmd

import (
	"errors"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/aictx/aictx/internal/config"
	"github.com/aictx/aictx/internal/output"
	"github.com/aictx/aictx/internal/task"
)

var (
	taskFinishCommit     bool
	taskFinishMessage    string
	taskFinishNoArchive  bool
	taskFinishNoValidate bool
	taskFinishDryRun     bool
)

var taskFinishCmd = &cobra.Command{
	Use:   "finish [task-id]",
	Short: "Validate and complete a task",
	Long: `Run the configured validation checks and mark the task complete.

On success the task brief is archived and an optional commit is
created. On validation failure the task is marked failed and can be
finished again after fixing the findings, or rolled back.

Without a task id the single unfinished task is used.

Examples:
  aictx task finish
  aictx task finish task_feature_20260830T120000_a1b2c3 --commit
  aictx task finish --commit --message "feat: add retry logic"
  aictx task finish --dry-run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTaskFinish,
}

func init() {
	taskCmd.AddCommand(taskFinishCmd)

	taskFinishCmd.Flags().BoolVar(&taskFinishCommit, "commit", false, "Create a git commit after validation passes")
	taskFinishCmd.Flags().StringVar(&taskFinishMessage, "message", "", "Commit message (default: generated from the task)")
	taskFinishCmd.Flags().BoolVar(&taskFinishNoArchive, "no-archive", false, "Leave the task brief in place")
	taskFinishCmd.Flags().BoolVar(&taskFinishNoValidate, "no-validate", false, "Skip the validation checks")
	taskFinishCmd.Flags().BoolVar(&taskFinishDryRun, "dry-run", false, "Show what finishing would do without changing anything")
}

func runTaskFinish(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}

	id := ""
	if len(args) == 1 {
		id = args[0]
	}
	rec, err := resolveTaskRecord(app.tasks, id)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			return output.NewUserError(err.Error())
		}
		return err
	}

	if taskFinishDryRun {
		printFinishPlan(app, rec)
		return nil
	}

	result, err := app.coordinator.Finish(cmd.Context(), rec, task.FinishOptions{
		Commit:       taskFinishCommit,
		Message:      taskFinishMessage,
		SkipArchive:  taskFinishNoArchive,
		SkipValidate: taskFinishNoValidate,
	})
	if err != nil {
		if errors.Is(err, task.ErrValidationFailed) {
			if done, encErr := machineEncode(result); done {
				return errors.Join(encErr, output.NewUserError("validation failed"))
			}
			app.printer.Errorf("validation failed for %s", rec.ID)
			for _, finding := range result.Report.Findings {
				app.printer.Errorf("  %s: %s", finding.Check, finding.Message)
			}
			app.printer.Dimf("\nFix the findings and finish again, or roll back: aictx snapshot rollback --id %s", rec.SnapshotID)
			return output.NewUserError("validation failed; task left in failed state for retry")
		}
		return output.NewSystemError("failed to finish task", err)
	}

	if done, err := machineEncode(result); done {
		return err
	}

	app.printer.Header("Task complete")
	app.printer.Successf("%s (%s)", rec.ID, rec.Title)
	if result.ArchivedTo != "" {
		app.printer.Successf("brief archived to %s", result.ArchivedTo)
	}
	if result.Committed {
		app.printer.Successf("committed: %s", firstLine(result.CommitMessage))
	}
	return nil
}

func printFinishPlan(app *app, rec *task.Record) {
	app.printer.Header("Dry run: finish " + rec.ID)
	app.printer.Printf("  task:     %s (%s, state %s)\n", rec.Title, rec.Type, rec.State)
	app.printer.Printf("  snapshot: %s\n", rec.SnapshotID)

	checksPath := filepath.Join(app.snapshots.Dir(), config.GetChecksFile())
	if taskFinishNoValidate {
		app.printer.Printf("  validation: skipped (--no-validate)\n")
	} else if exists, _ := afero.Exists(app.fs, checksPath); exists {
		app.printer.Printf("  validation: would run checks from %s\n", checksPath)
	} else {
		app.printer.Printf("  validation: no checks file at %s, would pass\n", checksPath)
	}

	if taskFinishNoArchive {
		app.printer.Printf("  brief: left in place (--no-archive)\n")
	} else {
		app.printer.Printf("  brief: would be archived under %s\n", filepath.Join(app.snapshots.Dir(), "history"))
	}

	if taskFinishCommit {
		message := taskFinishMessage
		if message == "" {
			message = task.CommitMessage(rec, nil)
		}
		app.printer.Printf("  commit: %s\n", firstLine(message))
	} else {
		app.printer.Printf("  commit: none\n")
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
