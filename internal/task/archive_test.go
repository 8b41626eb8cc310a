package task

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestFileArchiver(t *testing.T) {
	appfs := afero.NewMemMapFs()
	archiver := NewFileArchiver(appfs, "/history")
	rec := &Record{
		Title:     "Add Retry Logic",
		Branch:    "feature/retries",
		CreatedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}

	path, err := archiver.Archive(context.Background(), rec, []byte("brief body\n"))
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	want := "/history/feature-retries/20260830T120000_add-retry-logic.md"
	if path != want {
		t.Errorf("path = %s, want %s", path, want)
	}
	content, err := afero.ReadFile(appfs, path)
	if err != nil {
		t.Fatalf("archived file unreadable: %v", err)
	}
	if string(content) != "brief body\n" {
		t.Errorf("content = %q", content)
	}
}

func TestFileArchiverFallbacks(t *testing.T) {
	appfs := afero.NewMemMapFs()
	archiver := NewFileArchiver(appfs, "/history")
	rec := &Record{
		Title:     "!!!",
		CreatedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}

	path, err := archiver.Archive(context.Background(), rec, []byte("body"))
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if !strings.Contains(path, "/no-branch/") {
		t.Errorf("path = %s, want no-branch segment", path)
	}
	if !strings.HasSuffix(path, "_task.md") {
		t.Errorf("path = %s, want task slug fallback", path)
	}
}
