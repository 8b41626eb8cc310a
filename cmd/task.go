package cmd

import (
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage AI-assisted task lifecycles",
	Long: `Start and finish tasks.

Starting a task captures a safety snapshot, writes a task brief and
records the task. Finishing a task runs the configured validation
checks, archives the brief and can create a commit.`,
}

func init() {
	rootCmd.AddCommand(taskCmd)
}
