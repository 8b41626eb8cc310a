// Package testutil provides a temporary git repository helper for tests
// that exercise native capture and commit behavior.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// TempGitRepo is a throwaway git repository for testing.
type TempGitRepo struct {
	Path string
	T    *testing.T
}

// NewTempGitRepo creates an initialized git repository with one commit.
// The directory is removed automatically when the test finishes.
func NewTempGitRepo(t *testing.T) *TempGitRepo {
	t.Helper()

	tmpDir := t.TempDir()
	repo := &TempGitRepo{Path: tmpDir, T: t}

	repo.git("init")
	repo.git("config", "user.name", "Test User")
	repo.git("config", "user.email", "test@example.com")
	repo.git("config", "commit.gpgsign", "false")

	repo.CreateFile("README.md", "# Test Repository\n")
	repo.Commit("Initial commit")
	return repo
}

// CreateFile writes a file in the repository, creating parent directories.
func (r *TempGitRepo) CreateFile(name, content string) {
	r.T.Helper()
	path := filepath.Join(r.Path, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		r.T.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		r.T.Fatalf("failed to create file: %v", err)
	}
}

// RemoveFile deletes a file from the working tree.
func (r *TempGitRepo) RemoveFile(name string) {
	r.T.Helper()
	if err := os.Remove(filepath.Join(r.Path, filepath.FromSlash(name))); err != nil {
		r.T.Fatalf("failed to remove file: %v", err)
	}
}

// ReadFile returns the content of a file in the working tree.
func (r *TempGitRepo) ReadFile(name string) string {
	r.T.Helper()
	data, err := os.ReadFile(filepath.Join(r.Path, filepath.FromSlash(name)))
	if err != nil {
		r.T.Fatalf("failed to read file: %v", err)
	}
	return string(data)
}

// Commit stages and commits all changes.
func (r *TempGitRepo) Commit(message string) {
	r.T.Helper()
	r.git("add", ".")
	r.git("commit", "-m", message)
}

// CurrentBranch returns the checked-out branch name.
func (r *TempGitRepo) CurrentBranch() string {
	r.T.Helper()
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = r.Path
	out, err := cmd.Output()
	if err != nil {
		r.T.Fatalf("failed to get branch: %v", err)
	}
	return strings.TrimSpace(string(out))
}

func (r *TempGitRepo) git(args ...string) {
	r.T.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = r.Path
	if out, err := cmd.CombinedOutput(); err != nil {
		r.T.Fatalf("git %s failed: %v: %s", strings.Join(args, " "), err, out)
	}
}
