package snapshot

import (
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

const historyFile = "history.json"

// HistoryEntry is one line of the append-only audit log.
type HistoryEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Action     string         `json:"action"`
	SnapshotID string         `json:"snapshot_id"`
	Details    map[string]any `json:"details,omitempty"`
}

// History returns the audit log, oldest first.
func (s *Store) History() ([]HistoryEntry, error) {
	data, err := afero.ReadFile(s.fs, s.historyPath())
	if err != nil {
		return nil, nil
	}
	var entries []HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, nil
	}
	return entries, nil
}

// AppendHistory records an action against a snapshot. The audit log is
// best-effort: callers treat failures as non-fatal.
func (s *Store) AppendHistory(action, snapshotID string, details map[string]any) error {
	entries, _ := s.History()
	entries = append(entries, HistoryEntry{
		Timestamp:  s.now().UTC(),
		Action:     action,
		SnapshotID: snapshotID,
		Details:    details,
	})
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(filepath.Join(s.dir, logsDirName), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, s.historyPath(), data, 0o644)
}

// appendHistory is the internal best-effort variant.
func (s *Store) appendHistory(action, snapshotID string, details map[string]any) {
	_ = s.AppendHistory(action, snapshotID, details)
}

func (s *Store) historyPath() string {
	return filepath.Join(s.dir, logsDirName, historyFile)
}
