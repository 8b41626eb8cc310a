// Package task binds snapshot creation and retention to the task
// workflow: records, briefs, validation and archival.
package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// SchemaVersion is written into every task record file.
const SchemaVersion = 1

// State is the lifecycle state of a task record.
type State string

const (
	StateOpen       State = "open"
	StateValidating State = "validating"
	StateComplete   State = "complete"
	StateFailed     State = "failed"
)

// ErrNotFound is returned when a task identifier is unknown.
var ErrNotFound = errors.New("task not found")

// Record associates a snapshot with task metadata for audit purposes.
// After completion only the completion timestamp is ever appended.
type Record struct {
	SchemaVersion int        `json:"schema_version"`
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Type          string     `json:"type"`
	Agent         string     `json:"agent,omitempty"`
	Branch        string     `json:"branch,omitempty"`
	Files         []string   `json:"files,omitempty"`
	SnapshotID    string     `json:"snapshot_id"`
	State         State      `json:"state"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Findings      []string   `json:"findings,omitempty"`
}

// transition enforces the state machine:
// OPEN -> VALIDATING -> {COMPLETE, FAILED}; FAILED -> VALIDATING on
// retry; no transition out of COMPLETE. VALIDATING may re-enter itself
// so a record persisted mid-validation by a crashed run stays finishable.
func (r *Record) transition(to State) error {
	allowed := map[State][]State{
		StateOpen:       {StateValidating},
		StateValidating: {StateValidating, StateComplete, StateFailed},
		StateFailed:     {StateValidating},
	}
	for _, next := range allowed[r.State] {
		if next == to {
			r.State = to
			return nil
		}
	}
	return fmt.Errorf("task %s: cannot transition from %s to %s", r.ID, r.State, to)
}

// truncate shortens s to at most n runes, cutting on a rune boundary and
// appending an ellipsis when shortened.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// newTaskID generates task_<type>_<UTC timestamp>_<random suffix>.
func newTaskID(taskType string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("task_%s_%s_%s", taskType, now.UTC().Format("20060102T150405"), suffix)
}

// Store keeps one JSON file per task record.
type Store struct {
	fs  afero.Fs
	dir string
}

// NewStore creates a task store over dir.
func NewStore(appfs afero.Fs, dir string) *Store {
	return &Store{fs: appfs, dir: dir}
}

// Save writes a record, creating the tasks directory as needed.
func (st *Store) Save(rec *Record) error {
	if err := st.fs.MkdirAll(st.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create tasks directory: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal task record: %w", err)
	}
	if err := afero.WriteFile(st.fs, st.path(rec.ID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write task record: %w", err)
	}
	return nil
}

// Get returns one record or ErrNotFound.
func (st *Store) Get(id string) (*Record, error) {
	data, err := afero.ReadFile(st.fs, st.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read task record %s: %w", id, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse task record %s: %w", id, err)
	}
	return &rec, nil
}

// List returns all records, newest first. Unparseable files are skipped.
func (st *Store) List() ([]*Record, error) {
	entries, err := afero.ReadDir(st.fs, st.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read tasks directory: %w", err)
	}
	var records []*Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		rec, err := st.Get(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID > records[j].ID
	})
	return records, nil
}

// Unfinished returns records not yet complete, newest first.
func (st *Store) Unfinished() ([]*Record, error) {
	records, err := st.List()
	if err != nil {
		return nil, err
	}
	var open []*Record
	for _, rec := range records {
		if rec.State != StateComplete {
			open = append(open, rec)
		}
	}
	return open, nil
}

func (st *Store) path(id string) string {
	return filepath.Join(st.dir, id+".json")
}
