// Package snapshot implements the snapshot store: durable point-in-time
// captures of a file set, addressable by time-ordered identifiers.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is written into every meta.json so future format changes
// can be detected and migrated.
const SchemaVersion = 1

// CaptureMode selects how a snapshot stores file content.
type CaptureMode string

const (
	// ModeNative delegates capture to git's stash facility. The working
	// tree is never touched: the state is written as a stash commit.
	ModeNative CaptureMode = "native"
	// ModeFileCopy copies raw bytes into the snapshot directory,
	// preserving relative paths.
	ModeFileCopy CaptureMode = "filecopy"
)

// ErrNotFound is returned when a snapshot identifier is unknown, or when a
// native snapshot's stash commit was dropped outside this tool.
var ErrNotFound = errors.New("snapshot not found")

// ErrDirtyTree is returned from Create in strict mode when the working
// tree already has uncommitted changes.
var ErrDirtyTree = errors.New("working tree has uncommitted changes")

// Metadata is the persisted meta.json record for a snapshot. Immutable
// once written.
type Metadata struct {
	SchemaVersion int         `json:"schema_version"`
	ID            string      `json:"id"`
	CreatedAt     time.Time   `json:"created_at"`
	Label         string      `json:"label,omitempty"`
	Mode          CaptureMode `json:"mode"`
	Files         []string    `json:"files"`
	StashRef      string      `json:"stash_ref,omitempty"`
	// Untracked lists files captured as byte copies alongside the stash
	// commit of a native snapshot. git stash create records only tracked
	// content, so these are stored the file-copy way.
	Untracked []string `json:"untracked,omitempty"`
	Agent     string   `json:"agent,omitempty"`
}

// VCS is the version-control capability consumed by the store. A nil VCS
// disables native capture and dirty-tree detection.
type VCS interface {
	IsRepo(ctx context.Context) bool
	IsDirty(ctx context.Context) (bool, error)
	StashCreate(ctx context.Context, message string) (string, error)
	StashStore(ctx context.Context, sha, message string) error
	UntrackedFiles(ctx context.Context) ([]string, error)
	CommitExists(ctx context.Context, sha string) bool
	ListTree(ctx context.Context, sha string) ([]string, error)
	ReadFile(ctx context.Context, sha, path string) ([]byte, error)
}

// newID generates a time-ordered snapshot identifier:
// snap_<UTC timestamp>_<random suffix>.
func newID(now time.Time, suffix string) string {
	return fmt.Sprintf("snap_%s_%s", now.UTC().Format("20060102T150405"), suffix)
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}
