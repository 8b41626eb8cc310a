package task

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/aictx/aictx/internal/snapshot"
)

// ErrValidationFailed signals a failed validation run. It is an expected
// outcome: the record is left FAILED and the caller decides whether to
// retry, fix issues, or roll back.
var ErrValidationFailed = errors.New("validation failed")

// Committer is the injected commit capability.
type Committer interface {
	Commit(ctx context.Context, message string) error
}

// Config wires a Coordinator.
type Config struct {
	FS        afero.Fs
	Root      string
	Snapshots *snapshot.Store
	Tasks     *Store
	Validator Validator
	Committer Committer
	Archiver  Archiver
	// BriefDir holds the active task brief, relative to Root unless
	// absolute.
	BriefDir string
	// Branch returns the current VCS branch, or "" when unavailable.
	Branch func(ctx context.Context) string
	// Changed returns the currently modified files for commit-message
	// generation, or nil when unavailable.
	Changed func(ctx context.Context) []string
}

// Coordinator ties snapshot creation to task start and validation,
// archival and commit to task completion.
type Coordinator struct {
	cfg Config
	now func() time.Time
}

// NewCoordinator creates a coordinator from cfg.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Branch == nil {
		cfg.Branch = func(context.Context) string { return "" }
	}
	if cfg.Changed == nil {
		cfg.Changed = func(context.Context) []string { return nil }
	}
	briefDir := cfg.BriefDir
	if briefDir != "" && !filepath.IsAbs(briefDir) {
		cfg.BriefDir = filepath.Join(cfg.Root, briefDir)
	}
	return &Coordinator{cfg: cfg, now: time.Now}
}

// StartOptions configures Start.
type StartOptions struct {
	Description string
	Title       string
	Type        string
	Agent       string
	Files       []string
	// Force overwrites an existing active task brief.
	Force bool
	// StrictDirty escalates the dirty-tree warning at snapshot time.
	StrictDirty bool
	// Mode forces the snapshot capture mode.
	Mode snapshot.CaptureMode
}

// StartResult is the outcome of Start.
type StartResult struct {
	Record    *Record            `json:"record"`
	Snapshot  *snapshot.Metadata `json:"snapshot"`
	Warning   string             `json:"warning,omitempty"`
	BriefPath string             `json:"brief_path,omitempty"`
}

// Start creates a snapshot labeled with the description, persists a task
// record and writes the task brief. It fails only when snapshot creation
// fails; no record is left behind in that case.
func (c *Coordinator) Start(ctx context.Context, opts StartOptions) (*StartResult, error) {
	if strings.TrimSpace(opts.Description) == "" {
		return nil, errors.New("task description is required")
	}
	taskType := opts.Type
	if taskType == "" {
		taskType = "feature"
	}
	title := opts.Title
	if title == "" {
		title = truncate(opts.Description, 50)
	}

	created, err := c.cfg.Snapshots.Create(ctx, snapshot.CreateOptions{
		Label:       title,
		Paths:       opts.Files,
		Mode:        opts.Mode,
		Agent:       opts.Agent,
		StrictDirty: opts.StrictDirty,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot creation failed: %w", err)
	}

	now := c.now()
	rec := &Record{
		SchemaVersion: SchemaVersion,
		ID:            newTaskID(taskType, now),
		Title:         title,
		Description:   opts.Description,
		Type:          taskType,
		Agent:         opts.Agent,
		Branch:        c.cfg.Branch(ctx),
		Files:         opts.Files,
		SnapshotID:    created.Snapshot.ID,
		State:         StateOpen,
		CreatedAt:     now.UTC(),
	}
	if err := c.cfg.Tasks.Save(rec); err != nil {
		return nil, err
	}

	result := &StartResult{Record: rec, Snapshot: created.Snapshot, Warning: created.Warning}

	if c.cfg.BriefDir != "" {
		brief, err := RenderBrief(rec, now)
		if err != nil {
			return nil, err
		}
		path, err := writeBrief(c.cfg.FS, c.cfg.BriefDir, brief, opts.Force)
		if err != nil {
			return nil, err
		}
		result.BriefPath = path
	}
	return result, nil
}

// FinishOptions configures Finish.
type FinishOptions struct {
	Commit       bool
	Message      string
	SkipArchive  bool
	SkipValidate bool
}

// FinishResult is the outcome of Finish.
type FinishResult struct {
	Record        *Record `json:"record"`
	Report        *Report `json:"report,omitempty"`
	ArchivedTo    string  `json:"archived_to,omitempty"`
	Committed     bool    `json:"committed"`
	CommitMessage string  `json:"commit_message,omitempty"`
}

// Finish validates the task. On success the record is marked complete,
// the brief is archived and an optional commit is created. On validation
// failure the record is left FAILED and ErrValidationFailed is returned
// alongside the report.
func (c *Coordinator) Finish(ctx context.Context, rec *Record, opts FinishOptions) (*FinishResult, error) {
	if rec.State == StateComplete {
		return nil, fmt.Errorf("task %s is already complete", rec.ID)
	}

	result := &FinishResult{Record: rec}

	prev := rec.State
	if err := rec.transition(StateValidating); err != nil {
		return nil, err
	}
	if err := c.cfg.Tasks.Save(rec); err != nil {
		return nil, err
	}

	report := &Report{Passed: true}
	if !opts.SkipValidate && c.cfg.Validator != nil {
		var err error
		report, err = c.cfg.Validator.Validate(ctx)
		if err != nil {
			// Validation never ran, so the record reverts to its prior
			// state instead of being stranded in validating.
			rec.State = prev
			if saveErr := c.cfg.Tasks.Save(rec); saveErr != nil {
				return nil, errors.Join(fmt.Errorf("validation could not run: %w", err), saveErr)
			}
			return nil, fmt.Errorf("validation could not run: %w", err)
		}
	}
	result.Report = report

	if !report.Passed {
		rec.Findings = rec.Findings[:0]
		for _, f := range report.Findings {
			rec.Findings = append(rec.Findings, fmt.Sprintf("%s: %s", f.Check, f.Message))
		}
		if err := rec.transition(StateFailed); err != nil {
			return nil, err
		}
		if err := c.cfg.Tasks.Save(rec); err != nil {
			return nil, err
		}
		return result, ErrValidationFailed
	}

	if err := rec.transition(StateComplete); err != nil {
		return nil, err
	}
	completed := c.now().UTC()
	rec.CompletedAt = &completed
	rec.Findings = nil
	if err := c.cfg.Tasks.Save(rec); err != nil {
		return nil, err
	}

	if !opts.SkipArchive && c.cfg.Archiver != nil && c.cfg.BriefDir != "" {
		briefPath := filepath.Join(c.cfg.BriefDir, BriefFileName)
		if brief, err := afero.ReadFile(c.cfg.FS, briefPath); err == nil {
			archived, err := c.cfg.Archiver.Archive(ctx, rec, brief)
			if err != nil {
				return nil, err
			}
			result.ArchivedTo = archived
			_ = c.cfg.FS.Remove(briefPath)
		}
	}

	if opts.Commit && c.cfg.Committer != nil {
		message := opts.Message
		if message == "" {
			message = CommitMessage(rec, c.cfg.Changed(ctx))
		}
		if err := c.cfg.Committer.Commit(ctx, message); err != nil {
			return nil, err
		}
		result.Committed = true
		result.CommitMessage = message
	}

	return result, nil
}

// CommitMessage generates a conventional-commit message from a task
// record and the changed file list.
func CommitMessage(rec *Record, files []string) string {
	typeMap := map[string]string{
		"feature":  "feat",
		"fix":      "fix",
		"refactor": "refactor",
		"test":     "test",
		"docs":     "docs",
		"chore":    "chore",
	}
	commitType, ok := typeMap[rec.Type]
	if !ok {
		commitType = "chore"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", commitType, rec.Title)

	if desc := strings.TrimSpace(rec.Description); desc != "" && desc != rec.Title {
		fmt.Fprintf(&b, "\n\n%s", truncate(desc, 197))
	}

	if len(files) > 0 {
		fmt.Fprintf(&b, "\n\nFiles changed (%d):", len(files))
		for i, f := range files {
			if i == 10 {
				fmt.Fprintf(&b, "\n... and %d more", len(files)-10)
				break
			}
			fmt.Fprintf(&b, "\n- %s", f)
		}
	}
	return b.String()
}
