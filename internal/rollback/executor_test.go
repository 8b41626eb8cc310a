package rollback

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/aictx/aictx/internal/diffengine"
	"github.com/aictx/aictx/internal/snapshot"
)

type fixture struct {
	fs    afero.Fs
	root  string
	store *snapshot.Store
	exec  *Executor
	meta  *snapshot.Metadata
}

func newFixture(t *testing.T, tree map[string]string) *fixture {
	t.Helper()
	appfs := afero.NewMemMapFs()
	root := "/project"
	fx := &fixture{fs: appfs, root: root}
	for name, content := range tree {
		fx.write(t, name, content)
	}
	fx.store = snapshot.NewStore(appfs, root, ".ai-context", nil)
	result, err := fx.store.Create(context.Background(), snapshot.CreateOptions{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	fx.meta = result.Snapshot
	engine := diffengine.New(appfs, root, fx.store)
	fx.exec = New(appfs, root, fx.store, engine)
	return fx
}

func (fx *fixture) write(t *testing.T, name, content string) {
	t.Helper()
	path := filepath.Join(fx.root, filepath.FromSlash(name))
	if err := fx.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := afero.WriteFile(fx.fs, path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func (fx *fixture) read(t *testing.T, name string) string {
	t.Helper()
	content, err := afero.ReadFile(fx.fs, filepath.Join(fx.root, filepath.FromSlash(name)))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(content)
}

func (fx *fixture) remove(t *testing.T, name string) {
	t.Helper()
	if err := fx.fs.Remove(filepath.Join(fx.root, filepath.FromSlash(name))); err != nil {
		t.Fatalf("remove %s: %v", name, err)
	}
}

func TestRollbackRestoresBytes(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"a.txt": "original a\n",
		"b.txt": "original b\n",
	})
	fx.write(t, "a.txt", "agent broke this\n")
	fx.remove(t, "b.txt")

	result, err := fx.exec.Rollback(context.Background(), Request{SnapshotID: fx.meta.ID})
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if len(result.Restored) != 2 {
		t.Errorf("restored = %v, want both files", result.Restored)
	}
	if got := fx.read(t, "a.txt"); got != "original a\n" {
		t.Errorf("a.txt = %q, want original", got)
	}
	if got := fx.read(t, "b.txt"); got != "original b\n" {
		t.Errorf("b.txt = %q, want recreated original", got)
	}
}

func TestRollbackIsIdempotent(t *testing.T) {
	fx := newFixture(t, map[string]string{"a.txt": "original\n"})
	fx.write(t, "a.txt", "changed\n")

	first, err := fx.exec.Rollback(context.Background(), Request{SnapshotID: fx.meta.ID})
	if err != nil {
		t.Fatalf("first Rollback failed: %v", err)
	}
	if len(first.Restored) != 1 {
		t.Fatalf("first restored = %v, want [a.txt]", first.Restored)
	}

	second, err := fx.exec.Rollback(context.Background(), Request{SnapshotID: fx.meta.ID})
	if err != nil {
		t.Fatalf("second Rollback failed: %v", err)
	}
	if len(second.Restored) != 0 {
		t.Errorf("second restored = %v, want none", second.Restored)
	}
	if len(second.Unchanged) != 1 {
		t.Errorf("second unchanged = %v, want [a.txt]", second.Unchanged)
	}
}

func TestRollbackNeverDeletesUntracked(t *testing.T) {
	fx := newFixture(t, map[string]string{"a.txt": "original\n"})
	fx.write(t, "new.txt", "created after snapshot\n")

	if _, err := fx.exec.Rollback(context.Background(), Request{SnapshotID: fx.meta.ID}); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if got := fx.read(t, "new.txt"); got != "created after snapshot\n" {
		t.Errorf("untracked file touched: %q", got)
	}
}

func TestRollbackPathSubset(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"a.txt": "original a\n",
		"b.txt": "original b\n",
	})
	fx.write(t, "a.txt", "broken a\n")
	fx.write(t, "b.txt", "broken b\n")

	result, err := fx.exec.Rollback(context.Background(), Request{
		SnapshotID: fx.meta.ID,
		Paths:      []string{"a.txt", "c.txt"},
	})
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	if len(result.Restored) != 1 || result.Restored[0] != "a.txt" {
		t.Errorf("restored = %v, want [a.txt]", result.Restored)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "c.txt" {
		t.Errorf("skipped = %v, want [c.txt]", result.Skipped)
	}
	// The unrequested file keeps its broken content.
	if got := fx.read(t, "b.txt"); got != "broken b\n" {
		t.Errorf("b.txt = %q, should be untouched", got)
	}
}

func TestRollbackDirectoryFilter(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"src/a.txt":  "original\n",
		"docs/b.txt": "original\n",
	})
	fx.write(t, "src/a.txt", "broken\n")
	fx.write(t, "docs/b.txt", "broken\n")

	result, err := fx.exec.Rollback(context.Background(), Request{
		SnapshotID: fx.meta.ID,
		Paths:      []string{"src"},
	})
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if len(result.Restored) != 1 || result.Restored[0] != "src/a.txt" {
		t.Errorf("restored = %v, want [src/a.txt]", result.Restored)
	}
	if got := fx.read(t, "docs/b.txt"); got != "broken\n" {
		t.Errorf("docs/b.txt = %q, should be untouched", got)
	}
}

func TestRollbackUnknownSnapshot(t *testing.T) {
	fx := newFixture(t, map[string]string{"a.txt": "original\n"})
	fx.write(t, "a.txt", "changed\n")

	_, err := fx.exec.Rollback(context.Background(), Request{SnapshotID: "snap_nope"})
	if !errors.Is(err, snapshot.ErrNotFound) {
		t.Fatalf("Rollback = %v, want ErrNotFound", err)
	}
	// Nothing was written before the failure.
	if got := fx.read(t, "a.txt"); got != "changed\n" {
		t.Errorf("a.txt = %q, should be untouched", got)
	}
}

func TestRollbackDryRun(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"a.txt": "original\n",
		"b.txt": "original\n",
	})
	fx.write(t, "a.txt", "changed\n")
	fx.remove(t, "b.txt")

	result, err := fx.exec.Rollback(context.Background(), Request{SnapshotID: fx.meta.ID, DryRun: true})
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if result.Diff == nil {
		t.Fatal("dry run returned no diff")
	}
	if len(result.Restored) != 0 {
		t.Errorf("dry run restored files: %v", result.Restored)
	}

	restorable := result.Diff.Restorable()
	if len(restorable) != 2 {
		t.Errorf("restorable = %v, want a.txt and b.txt", restorable)
	}
	// No side effects.
	if got := fx.read(t, "a.txt"); got != "changed\n" {
		t.Errorf("a.txt = %q, dry run must not write", got)
	}
	if exists, _ := afero.Exists(fx.fs, "/project/b.txt"); exists {
		t.Error("dry run recreated b.txt")
	}
}

func TestRollbackCreatesParentDirectories(t *testing.T) {
	fx := newFixture(t, map[string]string{"deep/nested/file.txt": "original\n"})
	if err := fx.fs.RemoveAll("/project/deep"); err != nil {
		t.Fatalf("remove tree: %v", err)
	}

	result, err := fx.exec.Rollback(context.Background(), Request{SnapshotID: fx.meta.ID})
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if len(result.Restored) != 1 {
		t.Fatalf("restored = %v", result.Restored)
	}
	if got := fx.read(t, "deep/nested/file.txt"); got != "original\n" {
		t.Errorf("content = %q, want original", got)
	}
}

func TestRollbackReleasesLock(t *testing.T) {
	fx := newFixture(t, map[string]string{"a.txt": "original\n"})
	fx.write(t, "a.txt", "changed\n")

	if _, err := fx.exec.Rollback(context.Background(), Request{SnapshotID: fx.meta.ID}); err != nil {
		t.Fatalf("first Rollback failed: %v", err)
	}
	// The lock must be gone so a second run can take it.
	if _, err := fx.exec.Rollback(context.Background(), Request{SnapshotID: fx.meta.ID}); err != nil {
		t.Fatalf("second Rollback failed: %v", err)
	}
}

func TestResultErrAggregatesFailures(t *testing.T) {
	result := &Result{
		SnapshotID: "snap_x",
		Restored:   []string{"ok.txt"},
		Failures: []FileError{
			{Path: "bad.txt", Err: errors.New("permission denied")},
		},
	}
	err := result.Err()
	if err == nil {
		t.Fatal("Err() = nil with failures present")
	}
	var fileErr FileError
	if !errors.As(err, &fileErr) {
		t.Errorf("aggregated error does not expose FileError: %v", err)
	}

	if (&Result{}).Err() != nil {
		t.Error("Err() should be nil without failures")
	}
}
