package task

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Archiver persists a completed task brief into durable history.
type Archiver interface {
	Archive(ctx context.Context, rec *Record, brief []byte) (string, error)
}

// FileArchiver stores briefs in a path-structured history keyed by branch
// and title: <dir>/<branch>/<timestamp>_<title-slug>.md.
type FileArchiver struct {
	fs  afero.Fs
	dir string
}

// NewFileArchiver creates an archiver rooted at dir.
func NewFileArchiver(appfs afero.Fs, dir string) *FileArchiver {
	return &FileArchiver{fs: appfs, dir: dir}
}

// Archive writes the brief and returns the archive path.
func (a *FileArchiver) Archive(_ context.Context, rec *Record, brief []byte) (string, error) {
	branch := rec.Branch
	if branch == "" {
		branch = "no-branch"
	}
	branch = strings.ReplaceAll(branch, "/", "-")

	slug := Slugify(rec.Title)
	if slug == "" {
		slug = "task"
	}
	name := fmt.Sprintf("%s_%s.md", rec.CreatedAt.UTC().Format("20060102T150405"), slug)
	dir := filepath.Join(a.dir, branch)
	if err := a.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := afero.WriteFile(a.fs, path, brief, 0o644); err != nil {
		return "", fmt.Errorf("failed to archive task brief: %w", err)
	}
	return path, nil
}
