package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/aictx/aictx/internal/config"
	"github.com/aictx/aictx/internal/output"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize aictx in the current project",
	Long: `Create the snapshot storage layout and seed configuration.

This command:
  - creates the storage directory with its .gitignore
  - writes a sample validation checks file if none exists
  - writes a default config file if none exists

Run this once per project.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

const sampleChecks = `# Validation checks run by 'aictx task finish'.
# Every command runs from the project root; a non-zero exit is a finding.
checks:
  # - name: tests
  #   command: go test ./...
  # - name: vet
  #   command: go vet ./...
`

const defaultConfig = `[storage]
dir = ".ai-context"

[snapshot]
mode = "auto"
strict_dirty = false

[retention]
keep = 10

[task]
brief_dir = "docs/task-briefs"
checks_file = "checks.yaml"
`

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}

	if err := app.snapshots.Init(); err != nil {
		return output.NewSystemError("failed to create storage layout", err)
	}
	app.printer.Successf("storage ready at %s", app.snapshots.Dir())

	checksPath := filepath.Join(app.snapshots.Dir(), config.GetChecksFile())
	if exists, _ := afero.Exists(app.fs, checksPath); !exists {
		if err := afero.WriteFile(app.fs, checksPath, []byte(sampleChecks), 0o644); err != nil {
			return output.NewSystemError("failed to write checks file", err)
		}
		app.printer.Successf("sample checks at %s", checksPath)
	} else {
		app.printer.Dimf("checks file already exists at %s", checksPath)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return output.NewSystemError("cannot determine home directory", err)
	}
	configDir := filepath.Join(home, ".config", "aictx")
	configPath := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			return output.NewSystemError("failed to create config directory", err)
		}
		if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
			return output.NewSystemError("failed to write config file", err)
		}
		app.printer.Successf("config at %s", configPath)
	} else {
		app.printer.Dimf("config already exists at %s", configPath)
	}

	if !app.worktree.IsRepo(cmd.Context()) {
		app.printer.Warnf("not a git repository: snapshots will use file-copy mode")
	}
	return nil
}
