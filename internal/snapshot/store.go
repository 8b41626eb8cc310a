package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const (
	snapshotsDirName = "snapshots"
	logsDirName      = "logs"
	filesDirName     = "files"
	metadataFile     = "meta.json"
	stagingSuffix    = ".tmp"
)

// Store persists snapshots under a dedicated storage directory inside the
// project root. All mutating operations are confined to that directory;
// the live working tree is never touched.
type Store struct {
	fs   afero.Fs
	root string
	dir  string
	vcs  VCS

	now    func() time.Time
	suffix func() string
}

// NewStore creates a store rooted at projectRoot with snapshots kept in
// storageDir (joined to the root unless absolute). vcs may be nil for
// trees without version control.
func NewStore(appfs afero.Fs, projectRoot, storageDir string, vcs VCS) *Store {
	dir := storageDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(projectRoot, dir)
	}
	return &Store{
		fs:     appfs,
		root:   projectRoot,
		dir:    dir,
		vcs:    vcs,
		now:    time.Now,
		suffix: randomSuffix,
	}
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// Init prepares the storage layout without capturing anything.
func (s *Store) Init() error {
	return s.ensureLayout()
}

// CreateOptions controls snapshot capture.
type CreateOptions struct {
	Label string
	// Paths restricts capture to these files or directories (relative to
	// the project root). Empty means the whole tree. Nonexistent paths
	// are skipped, not errored.
	Paths []string
	// Mode forces a capture mode. Empty or "auto" probes: native when the
	// tree is a git checkout with something to stash, filecopy otherwise.
	Mode CaptureMode
	// Agent optionally records which AI agent is about to edit the tree.
	Agent string
	// StrictDirty escalates the dirty-tree warning to ErrDirtyTree.
	StrictDirty bool
}

// CreateResult is the outcome of a successful capture.
type CreateResult struct {
	Snapshot *Metadata
	// Warning is a non-fatal advisory, e.g. the tree already had
	// uncommitted changes when the snapshot was taken.
	Warning string
}

// Create captures the current content of every existing file under the
// requested paths. Creation is atomic: the snapshot is staged in a
// temporary directory and renamed into place, so a failed capture leaves
// nothing registered.
func (s *Store) Create(ctx context.Context, opts CreateOptions) (*CreateResult, error) {
	if err := s.ensureLayout(); err != nil {
		return nil, err
	}

	warning := ""
	if s.vcs != nil && s.vcs.IsRepo(ctx) {
		dirty, err := s.vcs.IsDirty(ctx)
		if err == nil && dirty {
			if opts.StrictDirty {
				return nil, ErrDirtyTree
			}
			warning = "working tree already has uncommitted changes; they will be part of this snapshot"
		}
	}

	now := s.now()
	meta := &Metadata{
		SchemaVersion: SchemaVersion,
		ID:            newID(now, s.suffix()),
		CreatedAt:     now.UTC(),
		Label:         opts.Label,
		Agent:         opts.Agent,
	}

	mode := opts.Mode
	if mode == "" || mode == "auto" {
		mode = ModeFileCopy
		if s.vcs != nil && s.vcs.IsRepo(ctx) {
			mode = ModeNative
		}
	}

	if mode == ModeNative {
		captured, err := s.captureNative(ctx, meta, opts.Paths)
		if err != nil {
			return nil, fmt.Errorf("native capture failed: %w", err)
		}
		if !captured {
			mode = ModeFileCopy
		}
	}
	if mode == ModeFileCopy {
		if err := s.captureFileCopy(meta, opts.Paths); err != nil {
			return nil, err
		}
	}

	s.appendHistory("create", meta.ID, map[string]any{
		"label": meta.Label,
		"mode":  string(meta.Mode),
		"files": len(meta.Files),
	})

	return &CreateResult{Snapshot: meta, Warning: warning}, nil
}

// captureNative stores the working tree as a stash commit. git stash
// create records only tracked content, so untracked files present at
// snapshot time are captured as byte copies next to the stash ref.
// Returns false when the VCS cannot serve the capture (not a repo,
// nothing to stash), signaling the caller to fall back to file-copy mode.
func (s *Store) captureNative(ctx context.Context, meta *Metadata, paths []string) (bool, error) {
	if s.vcs == nil || !s.vcs.IsRepo(ctx) {
		return false, nil
	}

	sha, err := s.vcs.StashCreate(ctx, "aictx: "+meta.ID)
	if err != nil || sha == "" {
		// Clean tree or stash unavailable: fall back gracefully.
		return false, nil
	}
	if err := s.vcs.StashStore(ctx, sha, fmt.Sprintf("aictx: %s %s", meta.ID, meta.Label)); err != nil {
		return false, err
	}

	tree, err := s.vcs.ListTree(ctx, sha)
	if err != nil {
		return false, err
	}
	untracked, err := s.untrackedForCapture(ctx, paths)
	if err != nil {
		return false, err
	}

	meta.Mode = ModeNative
	meta.StashRef = sha
	meta.Untracked = untracked
	meta.Files = append(filterPaths(tree, paths), untracked...)
	sort.Strings(meta.Files)

	staging := s.snapshotPath(meta.ID) + stagingSuffix
	for _, rel := range untracked {
		src := filepath.Join(s.root, filepath.FromSlash(rel))
		dst := filepath.Join(staging, filesDirName, filepath.FromSlash(rel))
		if err := s.copyFile(src, dst); err != nil {
			_ = s.fs.RemoveAll(staging)
			return false, fmt.Errorf("failed to capture untracked %s: %w", rel, err)
		}
	}
	if err := s.writeMetadata(staging, meta); err != nil {
		_ = s.fs.RemoveAll(staging)
		return false, err
	}
	if err := afero.WriteFile(s.fs, filepath.Join(staging, "stash_ref"), []byte(sha+"\n"), 0o644); err != nil {
		_ = s.fs.RemoveAll(staging)
		return false, err
	}
	if err := s.fs.Rename(staging, s.snapshotPath(meta.ID)); err != nil {
		_ = s.fs.RemoveAll(staging)
		return false, err
	}
	return true, nil
}

// untrackedForCapture lists the untracked files a native capture must
// copy, restricted to the requested paths and excluding the storage
// directory itself.
func (s *Store) untrackedForCapture(ctx context.Context, paths []string) ([]string, error) {
	untracked, err := s.vcs.UntrackedFiles(ctx)
	if err != nil {
		return nil, err
	}
	storageRel := ""
	if rel, err := filepath.Rel(s.root, s.dir); err == nil {
		storageRel = filepath.ToSlash(rel)
	}
	var kept []string
	for _, f := range filterPaths(untracked, paths) {
		if storageRel != "" && (f == storageRel || strings.HasPrefix(f, storageRel+"/")) {
			continue
		}
		kept = append(kept, f)
	}
	sort.Strings(kept)
	return kept, nil
}

// captureFileCopy copies raw bytes into <id>.tmp/files/ mirroring relative
// paths, then renames the staging directory into place.
func (s *Store) captureFileCopy(meta *Metadata, paths []string) error {
	files, err := s.resolvePaths(paths)
	if err != nil {
		return err
	}

	meta.Mode = ModeFileCopy
	meta.Files = files

	staging := s.snapshotPath(meta.ID) + stagingSuffix
	for _, rel := range files {
		src := filepath.Join(s.root, filepath.FromSlash(rel))
		dst := filepath.Join(staging, filesDirName, filepath.FromSlash(rel))
		if err := s.copyFile(src, dst); err != nil {
			_ = s.fs.RemoveAll(staging)
			return fmt.Errorf("failed to capture %s: %w", rel, err)
		}
	}
	if err := s.writeMetadata(staging, meta); err != nil {
		_ = s.fs.RemoveAll(staging)
		return err
	}
	if err := s.fs.Rename(staging, s.snapshotPath(meta.ID)); err != nil {
		_ = s.fs.RemoveAll(staging)
		return fmt.Errorf("failed to register snapshot: %w", err)
	}
	return nil
}

func (s *Store) copyFile(src, dst string) error {
	data, err := afero.ReadFile(s.fs, src)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, dst, data, 0o644)
}

func (s *Store) writeMetadata(snapDir string, meta *Metadata) error {
	if err := s.fs.MkdirAll(snapDir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := afero.WriteFile(s.fs, filepath.Join(snapDir, metadataFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// List returns metadata for all snapshots, newest first.
func (s *Store) List() ([]*Metadata, error) {
	snapsDir := filepath.Join(s.dir, snapshotsDirName)
	entries, err := afero.ReadDir(s.fs, snapsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var metas []*Metadata
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasSuffix(entry.Name(), stagingSuffix) {
			continue
		}
		meta, err := s.Get(entry.Name())
		if err != nil {
			// Broken snapshots are skipped, not fatal for listing.
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		if !metas[i].CreatedAt.Equal(metas[j].CreatedAt) {
			return metas[i].CreatedAt.After(metas[j].CreatedAt)
		}
		return metas[i].ID > metas[j].ID
	})
	return metas, nil
}

// Get returns metadata for one snapshot or ErrNotFound.
func (s *Store) Get(id string) (*Metadata, error) {
	data, err := afero.ReadFile(s.fs, filepath.Join(s.snapshotPath(id), metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read snapshot %s: %w", id, err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata for %s: %w", id, err)
	}
	if meta.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("snapshot %s has schema version %d, this build understands %d",
			id, meta.SchemaVersion, SchemaVersion)
	}
	return &meta, nil
}

// Latest returns the most recent snapshot or ErrNotFound when none exist.
func (s *Store) Latest() (*Metadata, error) {
	metas, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(metas) == 0 {
		return nil, fmt.Errorf("no snapshots exist: %w", ErrNotFound)
	}
	return metas[0], nil
}

// Delete removes a snapshot's storage. Deleting an absent snapshot is a
// no-op.
func (s *Store) Delete(id string) error {
	snapDir := s.snapshotPath(id)
	exists, err := afero.DirExists(s.fs, snapDir)
	if err != nil {
		return fmt.Errorf("failed to check snapshot %s: %w", id, err)
	}
	if !exists {
		return nil
	}
	if err := s.fs.RemoveAll(snapDir); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", id, err)
	}
	s.appendHistory("delete", id, nil)
	return nil
}

// Cleanup deletes the oldest snapshots beyond keep, returning the deleted
// identifiers.
func (s *Store) Cleanup(keep int) ([]string, error) {
	metas, err := s.List()
	if err != nil {
		return nil, err
	}
	if keep < 0 {
		keep = 0
	}
	var deleted []string
	for _, meta := range metas[min(keep, len(metas)):] {
		if err := s.Delete(meta.ID); err != nil {
			return deleted, err
		}
		deleted = append(deleted, meta.ID)
	}
	return deleted, nil
}

// Files returns the captured file list for a snapshot. For native
// snapshots the underlying stash commit is probed first; a stash dropped
// outside this tool yields ErrNotFound.
func (s *Store) Files(ctx context.Context, meta *Metadata) ([]string, error) {
	if meta.Mode == ModeNative {
		if s.vcs == nil || !s.vcs.CommitExists(ctx, meta.StashRef) {
			return nil, fmt.Errorf("stash commit %s for snapshot %s is gone: %w",
				meta.StashRef, meta.ID, ErrNotFound)
		}
	}
	return append([]string(nil), meta.Files...), nil
}

// ReadFile returns the captured content of one file. For native
// snapshots, untracked files come from their byte copies and everything
// else from the stash commit.
func (s *Store) ReadFile(ctx context.Context, meta *Metadata, rel string) ([]byte, error) {
	if meta.Mode == ModeNative {
		if s.vcs == nil || !s.vcs.CommitExists(ctx, meta.StashRef) {
			return nil, fmt.Errorf("stash commit %s for snapshot %s is gone: %w",
				meta.StashRef, meta.ID, ErrNotFound)
		}
		copied := false
		for _, u := range meta.Untracked {
			if u == rel {
				copied = true
				break
			}
		}
		if !copied {
			return s.vcs.ReadFile(ctx, meta.StashRef, rel)
		}
	}
	data, err := afero.ReadFile(s.fs, filepath.Join(s.snapshotPath(meta.ID), filesDirName, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from snapshot %s: %w", rel, meta.ID, err)
	}
	return data, nil
}

// ScanTree lists every file in the working tree (relative, slash-separated),
// excluding the storage directory and version-control internals.
func (s *Store) ScanTree() ([]string, error) {
	var paths []string
	err := afero.Walk(s.fs, s.root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(s.root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			// Skips nested .git directories too (submodules, vendored
			// checkouts).
			if p == s.dir || (info.Name() == ".git" && rel != ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan working tree: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// resolvePaths expands requested paths into existing files. Directories
// are walked recursively; nonexistent entries are skipped.
func (s *Store) resolvePaths(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return s.ScanTree()
	}

	seen := map[string]bool{}
	var files []string
	for _, p := range paths {
		rel := filepath.ToSlash(filepath.Clean(p))
		if rel == ".." || strings.HasPrefix(rel, "../") || filepath.IsAbs(p) {
			return nil, fmt.Errorf("path %q is outside the project root", p)
		}
		full := filepath.Join(s.root, filepath.FromSlash(rel))
		info, err := s.fs.Stat(full)
		if err != nil {
			continue // skipped, not errored
		}
		if !info.IsDir() {
			if !seen[rel] {
				seen[rel] = true
				files = append(files, rel)
			}
			continue
		}
		err = afero.Walk(s.fs, full, func(sub string, si fs.FileInfo, werr error) error {
			if werr != nil {
				return werr
			}
			if si.IsDir() {
				if si.Name() == ".git" && sub != full {
					return filepath.SkipDir
				}
				return nil
			}
			if !si.Mode().IsRegular() {
				return nil
			}
			subRel, rerr := filepath.Rel(s.root, sub)
			if rerr != nil {
				return rerr
			}
			subRel = filepath.ToSlash(subRel)
			if !seen[subRel] {
				seen[subRel] = true
				files = append(files, subRel)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", rel, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// filterPaths restricts candidates to the requested files or directory
// prefixes. Empty filters keep everything.
func filterPaths(candidates, filters []string) []string {
	if len(filters) == 0 {
		return candidates
	}
	cleaned := make([]string, 0, len(filters))
	for _, f := range filters {
		cleaned = append(cleaned, path.Clean(filepath.ToSlash(f)))
	}
	var kept []string
	for _, c := range candidates {
		for _, f := range cleaned {
			if c == f || strings.HasPrefix(c, f+"/") {
				kept = append(kept, c)
				break
			}
		}
	}
	return kept
}

func (s *Store) snapshotPath(id string) string {
	return filepath.Join(s.dir, snapshotsDirName, id)
}

func (s *Store) ensureLayout() error {
	for _, d := range []string{
		filepath.Join(s.dir, snapshotsDirName),
		filepath.Join(s.dir, logsDirName),
	} {
		if err := s.fs.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	gitignore := filepath.Join(s.dir, ".gitignore")
	if exists, _ := afero.Exists(s.fs, gitignore); !exists {
		content := "# aictx storage\nsnapshots/\ntasks/\nlogs/\n"
		if err := afero.WriteFile(s.fs, gitignore, []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write storage .gitignore: %w", err)
		}
	}
	return nil
}
