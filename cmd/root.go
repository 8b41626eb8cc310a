// Package cmd implements the aictx command tree.
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aictx/aictx/internal/config"
	"github.com/aictx/aictx/internal/diffengine"
	"github.com/aictx/aictx/internal/git"
	"github.com/aictx/aictx/internal/output"
	"github.com/aictx/aictx/internal/rollback"
	"github.com/aictx/aictx/internal/snapshot"
	"github.com/aictx/aictx/internal/task"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	cfgFile     string
	projectRoot string
	jsonOutput  bool
	toonOutput  bool
)

var rootCmd = &cobra.Command{
	Use:   "aictx",
	Short: "Snapshot and rollback manager for AI-assisted edits",
	Long: `aictx captures the state of your working tree before an AI agent
edits it, and restores that state when the edits go wrong.

Snapshots are immutable and cheap: inside a git checkout they are stash
commits that never touch the working tree, elsewhere they are plain file
copies. Rollbacks are previewed with a diff, restored file by file, and
never delete files the snapshot does not know about.`,
	SilenceUsage: true,
}

// Execute runs the command tree and exits with the mapped code.
func Execute() {
	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		os.Exit(output.GetExitCode(err))
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/aictx/config.toml)")
	rootCmd.PersistentFlags().StringVar(&projectRoot, "project-root", "", "project root (default is the current directory)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "machine-readable JSON output")
	rootCmd.PersistentFlags().BoolVar(&toonOutput, "toon", false, "LLM-friendly toon output")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(output.ExitSystemError)
		}
		viper.AddConfigPath(filepath.Join(home, ".config", "aictx"))
		viper.SetConfigType("toml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("AICTX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	config.SetDefaults()

	_ = viper.ReadInConfig()
}

// app holds the wired components every command operates on.
type app struct {
	fs          afero.Fs
	root        string
	printer     *output.Printer
	worktree    git.WorkTree
	snapshots   *snapshot.Store
	diff        *diffengine.Engine
	rollback    *rollback.Executor
	tasks       *task.Store
	coordinator *task.Coordinator
}

// newApp wires the stores and engines against the real filesystem and
// the configured project root.
func newApp(ctx context.Context) (*app, error) {
	root := projectRoot
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, output.NewSystemError("cannot determine working directory", err)
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, output.NewSystemError("cannot resolve project root", err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return nil, output.NewUserError(fmt.Sprintf("project root %s is not a directory", abs))
	}

	appfs := afero.NewOsFs()
	wt := git.WorkTree{Dir: abs}
	store := snapshot.NewStore(appfs, abs, config.GetStorageDir(), wt)
	engine := diffengine.New(appfs, abs, store)
	executor := rollback.New(appfs, abs, store, engine)
	tasks := task.NewStore(appfs, filepath.Join(store.Dir(), "tasks"))

	coordinator := task.NewCoordinator(task.Config{
		FS:        appfs,
		Root:      abs,
		Snapshots: store,
		Tasks:     tasks,
		Validator: task.NewCheckRunner(appfs, abs, filepath.Join(store.Dir(), config.GetChecksFile())),
		Committer: gitCommitter{wt: wt},
		Archiver:  task.NewFileArchiver(appfs, filepath.Join(store.Dir(), "history")),
		BriefDir:  config.GetBriefDir(),
		Branch: func(ctx context.Context) string {
			branch, _ := wt.CurrentBranch(ctx)
			return branch
		},
		Changed: func(ctx context.Context) []string {
			files, _ := wt.ChangedFiles(ctx)
			return files
		},
	})

	return &app{
		fs:          appfs,
		root:        abs,
		printer:     output.NewPrinter(os.Stdout, stdoutIsTTY()),
		worktree:    wt,
		snapshots:   store,
		diff:        engine,
		rollback:    executor,
		tasks:       tasks,
		coordinator: coordinator,
	}, nil
}

// gitCommitter stages everything and commits, matching the finish
// workflow's "commit what the task changed" semantics.
type gitCommitter struct {
	wt git.WorkTree
}

func (c gitCommitter) Commit(ctx context.Context, message string) error {
	if err := c.wt.AddAll(ctx); err != nil {
		return err
	}
	return c.wt.Commit(ctx, message)
}

// machineEncode writes v in the requested machine format. Returns true
// when a machine format was requested, so callers skip human output.
func machineEncode(v any) (bool, error) {
	switch {
	case toonOutput:
		return true, output.EncodeToon(os.Stdout, v)
	case jsonOutput:
		return true, output.EncodeJSON(os.Stdout, v)
	}
	return false, nil
}

func stdoutIsTTY() bool {
	stat, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// confirm prompts for a y/N answer. A non-interactive stdin declines,
// so scripted callers must pass --yes.
func confirm(prompt string) bool {
	stat, err := os.Stdin.Stat()
	if err != nil || (stat.Mode()&os.ModeCharDevice) == 0 {
		return false
	}
	fmt.Printf("%s [y/N]: ", prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// resolveTaskRecord loads an explicit task id, or the single unfinished
// record when none is given.
func resolveTaskRecord(tasks *task.Store, id string) (*task.Record, error) {
	if id != "" {
		return tasks.Get(id)
	}
	open, err := tasks.Unfinished()
	if err != nil {
		return nil, err
	}
	switch len(open) {
	case 0:
		return nil, output.NewUserError("no unfinished task; start one with 'aictx task start'")
	case 1:
		return open[0], nil
	default:
		ids := make([]string, 0, len(open))
		for _, rec := range open {
			ids = append(ids, rec.ID)
		}
		return nil, output.NewUserError(fmt.Sprintf("%d unfinished tasks (%s); pass a task id", len(open), strings.Join(ids, ", ")))
	}
}
