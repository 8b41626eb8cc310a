// Package git wraps the git binary for the version-control capability:
// repository probing, dirty-tree detection, stash-based capture and
// content retrieval from stash commits.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// WorkTree is a version-controlled checkout rooted at Dir. The zero Dir
// means the current working directory.
type WorkTree struct {
	Dir string
}

func (w WorkTree) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = w.Dir
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s failed: %w", args[0], err)
	}
	return strings.TrimSpace(string(output)), nil
}

// IsRepo checks whether Dir is inside a git repository.
func (w WorkTree) IsRepo(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--git-dir")
	cmd.Dir = w.Dir
	return cmd.Run() == nil
}

// IsDirty reports whether the working tree has uncommitted changes,
// including untracked files.
func (w WorkTree) IsDirty(ctx context.Context) (bool, error) {
	out, err := w.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("failed to check git status: %w", err)
	}
	return out != "", nil
}

// CurrentBranch returns the current branch name.
func (w WorkTree) CurrentBranch(ctx context.Context) (string, error) {
	out, err := w.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}
	return out, nil
}

// StashCreate writes the working tree state into a stash commit without
// touching the working tree. Returns the empty string when there is
// nothing to stash.
func (w WorkTree) StashCreate(ctx context.Context, message string) (string, error) {
	out, err := w.run(ctx, "stash", "create", message)
	if err != nil {
		return "", fmt.Errorf("failed to create stash: %w", err)
	}
	return out, nil
}

// StashStore registers a stash commit in the stash reflog so it survives
// garbage collection. Without this a commit from StashCreate is unreferenced.
func (w WorkTree) StashStore(ctx context.Context, sha, message string) error {
	cmd := exec.CommandContext(ctx, "git", "stash", "store", "-m", message, sha)
	cmd.Dir = w.Dir
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to store stash %s: %s: %w", sha, string(output), err)
	}
	return nil
}

// UntrackedFiles lists files present in the working tree but unknown to
// git. Ignored files are excluded.
func (w WorkTree) UntrackedFiles(ctx context.Context) ([]string, error) {
	out, err := w.run(ctx, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, fmt.Errorf("failed to list untracked files: %w", err)
	}
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

// CommitExists checks whether a commit object is still present. A stash
// commit dropped outside this tool fails this probe.
func (w WorkTree) CommitExists(ctx context.Context, sha string) bool {
	cmd := exec.CommandContext(ctx, "git", "cat-file", "-e", sha+"^{commit}")
	cmd.Dir = w.Dir
	return cmd.Run() == nil
}

// ListTree returns every file path recorded in a commit's tree.
func (w WorkTree) ListTree(ctx context.Context, sha string) ([]string, error) {
	out, err := w.run(ctx, "ls-tree", "-r", "--name-only", sha)
	if err != nil {
		return nil, fmt.Errorf("failed to list tree of %s: %w", sha, err)
	}
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

// ReadFile returns the content of path as captured in a commit.
func (w WorkTree) ReadFile(ctx context.Context, sha, path string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", "show", sha+":"+path)
	cmd.Dir = w.Dir
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from %s: %w", path, sha, err)
	}
	return output, nil
}

// ChangedFiles returns the paths reported by git status, with rename
// targets resolved.
func (w WorkTree) ChangedFiles(ctx context.Context) ([]string, error) {
	out, err := w.run(ctx, "status", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("failed to check git status: %w", err)
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		name := strings.TrimSpace(line[3:])
		if idx := strings.Index(name, " -> "); idx >= 0 {
			name = name[idx+4:]
		}
		if name != "" {
			files = append(files, name)
		}
	}
	return files, nil
}

// AddAll stages all changes.
func (w WorkTree) AddAll(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "git", "add", "-A")
	cmd.Dir = w.Dir
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to stage changes: %w", err)
	}
	return nil
}

// Commit creates a commit with the given message.
func (w WorkTree) Commit(ctx context.Context, message string) error {
	cmd := exec.CommandContext(ctx, "git", "commit", "-m", message)
	cmd.Dir = w.Dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(output), "nothing to commit") {
			return nil
		}
		return fmt.Errorf("failed to commit: %s: %w", string(output), err)
	}
	return nil
}
