// Package rollback restores working-tree files from a snapshot with
// per-file atomicity and aggregated partial-failure reporting.
package rollback

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/aictx/aictx/internal/diffengine"
	"github.com/aictx/aictx/internal/snapshot"
)

// Request describes one rollback invocation.
type Request struct {
	SnapshotID string
	// Paths restricts the restore to a subset. Requested paths not in
	// the snapshot are reported as skipped, never written or deleted.
	Paths  []string
	DryRun bool
}

// FileError is a single failed file write during rollback.
type FileError struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

func (f FileError) Error() string {
	return fmt.Sprintf("%s: %v", f.Path, f.Err)
}

// Result accumulates the outcome of a rollback. A per-file failure does
// not abort the remaining files.
type Result struct {
	SnapshotID string      `json:"snapshot_id"`
	Restored   []string    `json:"restored,omitempty"`
	Unchanged  []string    `json:"unchanged,omitempty"`
	Skipped    []string    `json:"skipped,omitempty"`
	Failures   []FileError `json:"failures,omitempty"`

	// Diff carries the preview for dry runs.
	Diff *diffengine.Result `json:"diff,omitempty"`
}

// Err aggregates the per-file failures, or nil when every write succeeded.
func (r *Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	return fmt.Errorf("%d of %d files failed to restore: %w",
		len(r.Failures), len(r.Failures)+len(r.Restored)+len(r.Unchanged), errors.Join(errs...))
}

// Executor applies snapshots back onto the working tree.
type Executor struct {
	fs     afero.Fs
	root   string
	store  *snapshot.Store
	engine *diffengine.Engine
}

// New creates an executor over the given store.
func New(appfs afero.Fs, projectRoot string, store *snapshot.Store, engine *diffengine.Engine) *Executor {
	return &Executor{fs: appfs, root: projectRoot, store: store, engine: engine}
}

// Rollback restores files from a snapshot. The snapshot is resolved
// before any file is touched; an unknown identifier fails with
// snapshot.ErrNotFound. Files whose on-disk content already matches the
// snapshot are left alone, which makes re-running a rollback idempotent.
func (x *Executor) Rollback(ctx context.Context, req Request) (*Result, error) {
	meta, err := x.store.Get(req.SnapshotID)
	if err != nil {
		return nil, err
	}

	snapFiles, err := x.store.Files(ctx, meta)
	if err != nil {
		return nil, err
	}

	result := &Result{SnapshotID: meta.ID}
	effective, skipped := intersect(snapFiles, req.Paths)
	result.Skipped = skipped

	if req.DryRun {
		diff, err := x.engine.Diff(ctx, meta, req.Paths)
		if err != nil {
			return nil, err
		}
		result.Diff = diff
		return result, nil
	}

	release, err := x.store.AcquireLock()
	if err != nil {
		return nil, err
	}
	defer release()

	for _, rel := range effective {
		restored, err := x.restoreFile(ctx, meta, rel)
		if err != nil {
			result.Failures = append(result.Failures, FileError{Path: rel, Err: err})
			continue
		}
		if restored {
			result.Restored = append(result.Restored, rel)
		} else {
			result.Unchanged = append(result.Unchanged, rel)
		}
	}

	_ = x.store.AppendHistory("rollback", meta.ID, map[string]any{
		"restored": len(result.Restored),
		"failed":   len(result.Failures),
		"full":     len(req.Paths) == 0,
	})

	return result, nil
}

// restoreFile writes snapshot content for one path. The write goes to a
// temporary file in the target directory followed by a rename, so a
// crash mid-rollback never leaves a half-written file. Returns false when
// the on-disk content already matched.
func (x *Executor) restoreFile(ctx context.Context, meta *snapshot.Metadata, rel string) (bool, error) {
	content, err := x.store.ReadFile(ctx, meta, rel)
	if err != nil {
		return false, err
	}

	target := filepath.Join(x.root, filepath.FromSlash(rel))
	if current, readErr := afero.ReadFile(x.fs, target); readErr == nil && string(current) == string(content) {
		return false, nil
	}

	dir := filepath.Dir(target)
	if err := x.fs.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := afero.TempFile(x.fs, dir, ".aictx-restore-*")
	if err != nil {
		return false, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = x.fs.Remove(tmpName)
		return false, fmt.Errorf("failed to write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = x.fs.Remove(tmpName)
		return false, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := x.fs.Rename(tmpName, target); err != nil {
		_ = x.fs.Remove(tmpName)
		return false, fmt.Errorf("failed to move into place: %w", err)
	}
	return true, nil
}

// intersect splits requested paths into those the snapshot can serve and
// those it cannot. With no filter, every snapshot file is effective.
func intersect(snapFiles, filters []string) (effective, skipped []string) {
	if len(filters) == 0 {
		return append([]string(nil), snapFiles...), nil
	}

	inSnapshot := make(map[string]bool, len(snapFiles))
	for _, f := range snapFiles {
		inSnapshot[f] = true
	}

	seen := map[string]bool{}
	for _, raw := range filters {
		f := filepath.ToSlash(filepath.Clean(raw))
		matched := false
		for _, sf := range snapFiles {
			if sf == f || len(sf) > len(f) && sf[:len(f)] == f && sf[len(f)] == '/' {
				if !seen[sf] {
					seen[sf] = true
					effective = append(effective, sf)
				}
				matched = true
			}
		}
		if !matched {
			skipped = append(skipped, f)
		}
	}
	return effective, skipped
}
