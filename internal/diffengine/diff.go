// Package diffengine computes read-only differences between a snapshot
// and the live working tree.
package diffengine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/afero"

	"github.com/aictx/aictx/internal/snapshot"
)

// Status classifies one file in a snapshot-vs-worktree comparison.
type Status string

const (
	// StatusModified: content differs; rollback would rewrite the file.
	StatusModified Status = "modified"
	// StatusDeleted: present only in the snapshot; rollback would
	// recreate it.
	StatusDeleted Status = "deleted"
	// StatusUntracked: present only on disk. Rollback never deletes
	// files absent from the snapshot; these are left untouched.
	StatusUntracked Status = "untracked"
	// StatusUnchanged: byte-identical in snapshot and working tree.
	StatusUnchanged Status = "unchanged"
	// StatusAdded: present only in the newer side of a snapshot-to-
	// snapshot comparison.
	StatusAdded Status = "added"
)

// FileDiff is the comparison result for a single path.
type FileDiff struct {
	Path    string `json:"path"`
	Status  Status `json:"status"`
	Binary  bool   `json:"binary,omitempty"`
	Unified string `json:"unified,omitempty"`
}

// Result is a full snapshot-vs-worktree comparison.
type Result struct {
	SnapshotID string     `json:"snapshot_id"`
	Files      []FileDiff `json:"files"`
}

// Restorable returns the paths a non-dry-run rollback of the same
// snapshot and filter would actually write.
func (r *Result) Restorable() []string {
	var paths []string
	for _, f := range r.Files {
		if f.Status == StatusModified || f.Status == StatusDeleted {
			paths = append(paths, f.Path)
		}
	}
	return paths
}

// Counts returns the number of files per status.
func (r *Result) Counts() map[Status]int {
	counts := map[Status]int{}
	for _, f := range r.Files {
		counts[f.Status]++
	}
	return counts
}

// Engine reads from the snapshot store and the working tree. It never
// writes to either.
type Engine struct {
	fs    afero.Fs
	root  string
	store *snapshot.Store
}

// New creates a diff engine over the given store and project root.
func New(appfs afero.Fs, projectRoot string, store *snapshot.Store) *Engine {
	return &Engine{fs: appfs, root: projectRoot, store: store}
}

// Diff compares a snapshot against the current working tree. The
// comparison covers the union of the snapshot's files and the files
// currently on disk, restricted to paths when given.
func (e *Engine) Diff(ctx context.Context, meta *snapshot.Metadata, paths []string) (*Result, error) {
	snapFiles, err := e.store.Files(ctx, meta)
	if err != nil {
		return nil, err
	}

	inSnapshot := map[string]bool{}
	union := map[string]bool{}
	for _, f := range filterPaths(snapFiles, paths) {
		inSnapshot[f] = true
		union[f] = true
	}

	diskFiles, err := e.store.ScanTree()
	if err != nil {
		return nil, err
	}
	for _, f := range filterPaths(diskFiles, paths) {
		union[f] = true
	}

	sorted := make([]string, 0, len(union))
	for f := range union {
		sorted = append(sorted, f)
	}
	sort.Strings(sorted)

	result := &Result{SnapshotID: meta.ID}
	for _, rel := range sorted {
		fd, err := e.diffFile(ctx, meta, rel, inSnapshot[rel])
		if err != nil {
			return nil, err
		}
		result.Files = append(result.Files, fd)
	}
	return result, nil
}

func (e *Engine) diffFile(ctx context.Context, meta *snapshot.Metadata, rel string, inSnapshot bool) (FileDiff, error) {
	fd := FileDiff{Path: rel}

	var snapContent []byte
	if inSnapshot {
		data, err := e.store.ReadFile(ctx, meta, rel)
		if err != nil {
			return fd, err
		}
		snapContent = data
	}

	diskPath := filepath.Join(e.root, filepath.FromSlash(rel))
	diskContent, diskErr := afero.ReadFile(e.fs, diskPath)
	onDisk := diskErr == nil
	if diskErr != nil && !os.IsNotExist(diskErr) {
		return fd, fmt.Errorf("failed to read %s: %w", rel, diskErr)
	}

	switch {
	case inSnapshot && !onDisk:
		fd.Status = StatusDeleted
		fd.Binary = isBinary(snapContent)
		if !fd.Binary {
			fd.Unified = unified("snapshot/"+rel, "worktree/"+rel, snapContent, nil)
		}
	case !inSnapshot && onDisk:
		fd.Status = StatusUntracked
	case bytes.Equal(snapContent, diskContent):
		fd.Status = StatusUnchanged
	default:
		fd.Status = StatusModified
		fd.Binary = isBinary(snapContent) || isBinary(diskContent)
		if !fd.Binary {
			fd.Unified = unified("snapshot/"+rel, "worktree/"+rel, snapContent, diskContent)
		}
	}
	return fd, nil
}

// DiffSnapshots compares two snapshots, treating from as the baseline.
// Files only in from are reported deleted, files only in to are
// reported added. Read-only, like Diff.
func (e *Engine) DiffSnapshots(ctx context.Context, from, to *snapshot.Metadata, paths []string) (*Result, error) {
	fromFiles, err := e.store.Files(ctx, from)
	if err != nil {
		return nil, err
	}
	toFiles, err := e.store.Files(ctx, to)
	if err != nil {
		return nil, err
	}

	inFrom := map[string]bool{}
	union := map[string]bool{}
	for _, f := range filterPaths(fromFiles, paths) {
		inFrom[f] = true
		union[f] = true
	}
	inTo := map[string]bool{}
	for _, f := range filterPaths(toFiles, paths) {
		inTo[f] = true
		union[f] = true
	}

	sorted := make([]string, 0, len(union))
	for f := range union {
		sorted = append(sorted, f)
	}
	sort.Strings(sorted)

	result := &Result{SnapshotID: to.ID}
	for _, rel := range sorted {
		var fromContent, toContent []byte
		if inFrom[rel] {
			if fromContent, err = e.store.ReadFile(ctx, from, rel); err != nil {
				return nil, err
			}
		}
		if inTo[rel] {
			if toContent, err = e.store.ReadFile(ctx, to, rel); err != nil {
				return nil, err
			}
		}

		fd := FileDiff{Path: rel}
		switch {
		case inFrom[rel] && !inTo[rel]:
			fd.Status = StatusDeleted
			fd.Binary = isBinary(fromContent)
		case !inFrom[rel] && inTo[rel]:
			fd.Status = StatusAdded
			fd.Binary = isBinary(toContent)
		case bytes.Equal(fromContent, toContent):
			fd.Status = StatusUnchanged
		default:
			fd.Status = StatusModified
			fd.Binary = isBinary(fromContent) || isBinary(toContent)
		}
		if fd.Status != StatusUnchanged && !fd.Binary {
			fd.Unified = unified(from.ID+"/"+rel, to.ID+"/"+rel, fromContent, toContent)
		}
		result.Files = append(result.Files, fd)
	}
	return result, nil
}

// unified renders a line-level unified diff between two labeled contents.
func unified(fromFile, toFile string, a, b []byte) string {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: fromFile,
		ToFile:   toFile,
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return text
}

func isBinary(data []byte) bool {
	probe := data
	if len(probe) > 8000 {
		probe = probe[:8000]
	}
	return bytes.IndexByte(probe, 0) >= 0
}

func filterPaths(candidates, filters []string) []string {
	if len(filters) == 0 {
		return candidates
	}
	cleaned := make([]string, 0, len(filters))
	for _, f := range filters {
		cleaned = append(cleaned, filepath.ToSlash(filepath.Clean(f)))
	}
	var kept []string
	for _, c := range candidates {
		for _, f := range cleaned {
			if c == f || len(c) > len(f) && c[:len(f)] == f && c[len(f)] == '/' {
				kept = append(kept, c)
				break
			}
		}
	}
	return kept
}
