package task

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func writeChecks(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "checks.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write checks: %v", err)
	}
	return path
}

func TestCheckRunnerMissingFilePasses(t *testing.T) {
	dir := t.TempDir()
	runner := NewCheckRunner(afero.NewOsFs(), dir, filepath.Join(dir, "checks.yaml"))

	report, err := runner.Validate(context.Background())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !report.Passed {
		t.Error("missing checks file should pass")
	}
}

func TestCheckRunnerAllPass(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()
	path := writeChecks(t, dir, `checks:
  - name: ok
    command: "true"
  - name: also-ok
    command: "exit 0"
`)
	runner := NewCheckRunner(afero.NewOsFs(), dir, path)

	report, err := runner.Validate(context.Background())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !report.Passed || len(report.Findings) != 0 {
		t.Errorf("report = %+v, want clean pass", report)
	}
}

func TestCheckRunnerCollectsFailures(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()
	path := writeChecks(t, dir, `checks:
  - name: ok
    command: "true"
  - name: broken
    command: "echo something went wrong; exit 1"
  - name: also-broken
    command: "exit 2"
`)
	runner := NewCheckRunner(afero.NewOsFs(), dir, path)

	report, err := runner.Validate(context.Background())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if report.Passed {
		t.Fatal("report should fail")
	}
	if len(report.Findings) != 2 {
		t.Fatalf("findings = %+v, want 2", report.Findings)
	}
	if report.Findings[0].Check != "broken" {
		t.Errorf("first finding check = %s", report.Findings[0].Check)
	}
	if !strings.Contains(report.Findings[0].Message, "something went wrong") {
		t.Errorf("finding message = %q, want command output", report.Findings[0].Message)
	}
}

func TestCheckRunnerRunsFromRoot(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	path := writeChecks(t, dir, `checks:
  - name: marker-present
    command: "test -f marker.txt"
`)
	runner := NewCheckRunner(afero.NewOsFs(), dir, path)

	report, err := runner.Validate(context.Background())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !report.Passed {
		t.Errorf("check did not run from the project root: %+v", report.Findings)
	}
}

func TestCheckRunnerBadYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeChecks(t, dir, "checks: [not: valid: yaml")
	runner := NewCheckRunner(afero.NewOsFs(), dir, path)

	if _, err := runner.Validate(context.Background()); err == nil {
		t.Error("invalid yaml should error, not silently pass")
	}
}

func TestSummarizeTruncates(t *testing.T) {
	long := strings.Repeat("x", 500)
	got := summarize(long, nil)
	if len(got) != 403 || !strings.HasSuffix(got, "...") {
		t.Errorf("summarize length = %d", len(got))
	}
	if summarize("  trimmed  ", nil) != "trimmed" {
		t.Error("summarize should trim whitespace")
	}
}
