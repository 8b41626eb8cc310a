package task

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/aictx/aictx/internal/snapshot"
)

type stubValidator struct {
	report *Report
	err    error
	calls  int
}

func (s *stubValidator) Validate(context.Context) (*Report, error) {
	s.calls++
	return s.report, s.err
}

type stubCommitter struct {
	messages []string
}

func (s *stubCommitter) Commit(_ context.Context, message string) error {
	s.messages = append(s.messages, message)
	return nil
}

type env struct {
	fs          afero.Fs
	coordinator *Coordinator
	tasks       *Store
	validator   *stubValidator
	committer   *stubCommitter
}

func newEnv(t *testing.T) *env {
	t.Helper()
	appfs := afero.NewMemMapFs()
	root := "/project"
	if err := afero.WriteFile(appfs, filepath.Join(root, "a.txt"), []byte("content\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	snaps := snapshot.NewStore(appfs, root, ".ai-context", nil)
	tasks := NewStore(appfs, "/project/.ai-context/tasks")
	validator := &stubValidator{report: &Report{Passed: true}}
	committer := &stubCommitter{}

	coordinator := NewCoordinator(Config{
		FS:        appfs,
		Root:      root,
		Snapshots: snaps,
		Tasks:     tasks,
		Validator: validator,
		Committer: committer,
		Archiver:  NewFileArchiver(appfs, "/project/.ai-context/history"),
		BriefDir:  "docs/task-briefs",
		Branch:    func(context.Context) string { return "main" },
		Changed:   func(context.Context) []string { return []string{"a.txt"} },
	})
	return &env{fs: appfs, coordinator: coordinator, tasks: tasks, validator: validator, committer: committer}
}

func TestStartCreatesSnapshotRecordAndBrief(t *testing.T) {
	e := newEnv(t)

	result, err := e.coordinator.Start(context.Background(), StartOptions{
		Description: "add retry logic to the uploader",
		Agent:       "claude",
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	rec := result.Record
	if rec.State != StateOpen {
		t.Errorf("state = %s, want %s", rec.State, StateOpen)
	}
	if rec.Type != "feature" {
		t.Errorf("default type = %s, want feature", rec.Type)
	}
	if rec.SnapshotID != result.Snapshot.ID {
		t.Errorf("record snapshot id = %s, snapshot id = %s", rec.SnapshotID, result.Snapshot.ID)
	}
	if rec.Branch != "main" {
		t.Errorf("branch = %s, want main", rec.Branch)
	}

	saved, err := e.tasks.Get(rec.ID)
	if err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
	if saved.Description != rec.Description {
		t.Errorf("persisted description = %q", saved.Description)
	}

	brief, err := afero.ReadFile(e.fs, result.BriefPath)
	if err != nil {
		t.Fatalf("brief not written: %v", err)
	}
	if !strings.Contains(string(brief), rec.SnapshotID) {
		t.Error("brief does not mention the snapshot id")
	}
}

func TestStartRequiresDescription(t *testing.T) {
	e := newEnv(t)
	if _, err := e.coordinator.Start(context.Background(), StartOptions{Description: "  "}); err == nil {
		t.Error("Start without description should fail")
	}
}

func TestStartTruncatesLongTitle(t *testing.T) {
	e := newEnv(t)
	long := strings.Repeat("describe the work in great detail ", 5)
	result, err := e.coordinator.Start(context.Background(), StartOptions{Description: long})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if len(result.Record.Title) != 53 || !strings.HasSuffix(result.Record.Title, "...") {
		t.Errorf("title = %q (len %d)", result.Record.Title, len(result.Record.Title))
	}
}

func TestStartRefusesSecondBriefWithoutForce(t *testing.T) {
	e := newEnv(t)
	if _, err := e.coordinator.Start(context.Background(), StartOptions{Description: "first task"}); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	_, err := e.coordinator.Start(context.Background(), StartOptions{Description: "second task"})
	if !errors.Is(err, ErrBriefExists) {
		t.Errorf("second Start = %v, want ErrBriefExists", err)
	}
	if _, err := e.coordinator.Start(context.Background(), StartOptions{Description: "second task", Force: true}); err != nil {
		t.Errorf("Start with Force failed: %v", err)
	}
}

func TestFinishHappyPath(t *testing.T) {
	e := newEnv(t)
	started, err := e.coordinator.Start(context.Background(), StartOptions{Description: "add retry logic"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	result, err := e.coordinator.Finish(context.Background(), started.Record, FinishOptions{Commit: true})
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	if started.Record.State != StateComplete {
		t.Errorf("state = %s, want %s", started.Record.State, StateComplete)
	}
	if started.Record.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
	if e.validator.calls != 1 {
		t.Errorf("validator called %d times, want 1", e.validator.calls)
	}

	if result.ArchivedTo == "" {
		t.Fatal("brief not archived")
	}
	if exists, _ := afero.Exists(e.fs, "/project/docs/task-briefs/latest.md"); exists {
		t.Error("active brief still present after archive")
	}
	archived, err := afero.ReadFile(e.fs, result.ArchivedTo)
	if err != nil {
		t.Fatalf("archived brief unreadable: %v", err)
	}
	if !strings.Contains(string(archived), "add retry logic") {
		t.Error("archived brief lost its content")
	}

	if !result.Committed || len(e.committer.messages) != 1 {
		t.Fatalf("committed = %v, messages = %v", result.Committed, e.committer.messages)
	}
	if !strings.HasPrefix(e.committer.messages[0], "feat: ") {
		t.Errorf("commit message = %q, want feat prefix", e.committer.messages[0])
	}
}

func TestFinishValidationFailure(t *testing.T) {
	e := newEnv(t)
	e.validator.report = &Report{
		Passed:   false,
		Findings: []Finding{{Check: "tests", Message: "2 tests failed"}},
	}

	started, err := e.coordinator.Start(context.Background(), StartOptions{Description: "risky change"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	result, err := e.coordinator.Finish(context.Background(), started.Record, FinishOptions{Commit: true})
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("Finish = %v, want ErrValidationFailed", err)
	}

	if started.Record.State != StateFailed {
		t.Errorf("state = %s, want %s", started.Record.State, StateFailed)
	}
	if len(started.Record.Findings) != 1 || !strings.Contains(started.Record.Findings[0], "2 tests failed") {
		t.Errorf("findings = %v", started.Record.Findings)
	}
	if result.Committed {
		t.Error("failed validation must not commit")
	}
	if exists, _ := afero.Exists(e.fs, "/project/docs/task-briefs/latest.md"); !exists {
		t.Error("failed validation must not archive the brief")
	}

	// Fix and retry: FAILED goes back through VALIDATING to COMPLETE.
	e.validator.report = &Report{Passed: true}
	if _, err := e.coordinator.Finish(context.Background(), started.Record, FinishOptions{}); err != nil {
		t.Fatalf("retry Finish failed: %v", err)
	}
	if started.Record.State != StateComplete {
		t.Errorf("state after retry = %s, want %s", started.Record.State, StateComplete)
	}
}

func TestFinishValidatorErrorIsRetryable(t *testing.T) {
	e := newEnv(t)
	e.validator.err = errors.New("checks file is malformed")

	started, err := e.coordinator.Start(context.Background(), StartOptions{Description: "careful change"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := e.coordinator.Finish(context.Background(), started.Record, FinishOptions{}); err == nil {
		t.Fatal("Finish with a broken validator should fail")
	}
	if started.Record.State != StateOpen {
		t.Errorf("state = %s, want %s", started.Record.State, StateOpen)
	}
	saved, err := e.tasks.Get(started.Record.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if saved.State != StateOpen {
		t.Errorf("persisted state = %s, want %s", saved.State, StateOpen)
	}

	// Once the validator works again, the same record finishes normally.
	e.validator.err = nil
	if _, err := e.coordinator.Finish(context.Background(), started.Record, FinishOptions{}); err != nil {
		t.Fatalf("retry Finish failed: %v", err)
	}
	if started.Record.State != StateComplete {
		t.Errorf("state after retry = %s, want %s", started.Record.State, StateComplete)
	}
}

func TestFinishRecoversRecordStuckValidating(t *testing.T) {
	e := newEnv(t)
	started, err := e.coordinator.Start(context.Background(), StartOptions{Description: "interrupted change"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// A crash between the validating save and the terminal save leaves the
	// record persisted as validating. Finishing it again must work.
	started.Record.State = StateValidating
	if err := e.tasks.Save(started.Record); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := e.coordinator.Finish(context.Background(), started.Record, FinishOptions{}); err != nil {
		t.Fatalf("Finish on a validating record failed: %v", err)
	}
	if started.Record.State != StateComplete {
		t.Errorf("state = %s, want %s", started.Record.State, StateComplete)
	}
}

func TestFinishCompleteTaskRejected(t *testing.T) {
	e := newEnv(t)
	started, err := e.coordinator.Start(context.Background(), StartOptions{Description: "one-shot task"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := e.coordinator.Finish(context.Background(), started.Record, FinishOptions{}); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if _, err := e.coordinator.Finish(context.Background(), started.Record, FinishOptions{}); err == nil {
		t.Error("finishing a complete task should fail")
	}
}

func TestFinishSkipValidate(t *testing.T) {
	e := newEnv(t)
	e.validator.report = &Report{Passed: false, Findings: []Finding{{Check: "x", Message: "boom"}}}

	started, err := e.coordinator.Start(context.Background(), StartOptions{Description: "trusted change"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := e.coordinator.Finish(context.Background(), started.Record, FinishOptions{SkipValidate: true}); err != nil {
		t.Fatalf("Finish with SkipValidate failed: %v", err)
	}
	if e.validator.calls != 0 {
		t.Errorf("validator called %d times, want 0", e.validator.calls)
	}
	if started.Record.State != StateComplete {
		t.Errorf("state = %s, want %s", started.Record.State, StateComplete)
	}
}

func TestCommitMessage(t *testing.T) {
	created := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		rec     *Record
		files   []string
		prefix  string
		contain []string
	}{
		{
			name:   "feature maps to feat",
			rec:    &Record{Type: "feature", Title: "add retries", Description: "add retries", CreatedAt: created},
			prefix: "feat: add retries",
		},
		{
			name:   "unknown type maps to chore",
			rec:    &Record{Type: "mystery", Title: "tidy up", Description: "tidy up", CreatedAt: created},
			prefix: "chore: tidy up",
		},
		{
			name: "description and files included",
			rec: &Record{
				Type:        "fix",
				Title:       "fix flaky test",
				Description: "the websocket test raced on shutdown",
				CreatedAt:   created,
			},
			files:   []string{"ws_test.go", "conn.go"},
			prefix:  "fix: fix flaky test",
			contain: []string{"the websocket test raced on shutdown", "Files changed (2):", "- ws_test.go"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			message := CommitMessage(tt.rec, tt.files)
			if !strings.HasPrefix(message, tt.prefix) {
				t.Errorf("message = %q, want prefix %q", message, tt.prefix)
			}
			for _, want := range tt.contain {
				if !strings.Contains(message, want) {
					t.Errorf("message missing %q:\n%s", want, message)
				}
			}
		})
	}
}

func TestCommitMessageCapsFileList(t *testing.T) {
	files := make([]string, 15)
	for i := range files {
		files[i] = strings.Repeat("f", 3)
	}
	message := CommitMessage(&Record{Type: "chore", Title: "bulk edit"}, files)
	if !strings.Contains(message, "... and 5 more") {
		t.Errorf("message does not cap the file list:\n%s", message)
	}
}
