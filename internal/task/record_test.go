package task

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/spf13/afero"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		from State
		to   State
		ok   bool
	}{
		{StateOpen, StateValidating, true},
		{StateValidating, StateComplete, true},
		{StateValidating, StateFailed, true},
		{StateValidating, StateValidating, true},
		{StateFailed, StateValidating, true},
		{StateOpen, StateComplete, false},
		{StateOpen, StateFailed, false},
		{StateComplete, StateValidating, false},
		{StateComplete, StateOpen, false},
		{StateFailed, StateComplete, false},
	}
	for _, tt := range tests {
		rec := &Record{ID: "task_x", State: tt.from}
		err := rec.transition(tt.to)
		if tt.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tt.from, tt.to, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("%s -> %s: should be rejected", tt.from, tt.to)
		}
		if tt.ok && rec.State != tt.to {
			t.Errorf("%s -> %s: state = %s", tt.from, tt.to, rec.State)
		}
		if !tt.ok && rec.State != tt.from {
			t.Errorf("%s -> %s: rejected transition changed state to %s", tt.from, tt.to, rec.State)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 50, "short"},
		{strings.Repeat("a", 50), 50, strings.Repeat("a", 50)},
		{strings.Repeat("a", 51), 50, strings.Repeat("a", 50) + "..."},
		{strings.Repeat("é", 51), 50, strings.Repeat("é", 50) + "..."},
		{"", 10, ""},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.n)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) produced invalid UTF-8", tt.in, tt.n)
		}
	}
}

func TestNewTaskID(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 15, 42, 0, time.UTC)
	id := newTaskID("fix", now)
	if !strings.HasPrefix(id, "task_fix_20260830T091542_") {
		t.Errorf("id = %s", id)
	}
	if len(id) != len("task_fix_20260830T091542_")+6 {
		t.Errorf("suffix length wrong in %s", id)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(afero.NewMemMapFs(), "/tasks")
	rec := &Record{
		SchemaVersion: SchemaVersion,
		ID:            "task_feature_20260830T120000_abc123",
		Title:         "add retries",
		Description:   "add retry logic to the uploader",
		Type:          "feature",
		SnapshotID:    "snap_20260830T120000_abc123",
		State:         StateOpen,
		CreatedAt:     time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
	if err := store.Save(rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != rec.Title || got.State != StateOpen || got.SnapshotID != rec.SnapshotID {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestStoreGetUnknown(t *testing.T) {
	store := NewStore(afero.NewMemMapFs(), "/tasks")
	if _, err := store.Get("task_nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get = %v, want ErrNotFound", err)
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	store := NewStore(afero.NewMemMapFs(), "/tasks")
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"task_a", "task_b", "task_c"} {
		rec := &Record{ID: id, State: StateOpen, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := store.Save(rec); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	records, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"task_c", "task_b", "task_a"}
	if len(records) != len(want) {
		t.Fatalf("listed %d records, want %d", len(records), len(want))
	}
	for i, id := range want {
		if records[i].ID != id {
			t.Errorf("records[%d].ID = %s, want %s", i, records[i].ID, id)
		}
	}
}

func TestStoreUnfinished(t *testing.T) {
	store := NewStore(afero.NewMemMapFs(), "/tasks")
	now := time.Now()
	for _, rec := range []*Record{
		{ID: "task_done", State: StateComplete, CreatedAt: now},
		{ID: "task_open", State: StateOpen, CreatedAt: now.Add(time.Second)},
		{ID: "task_failed", State: StateFailed, CreatedAt: now.Add(2 * time.Second)},
	} {
		if err := store.Save(rec); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	open, err := store.Unfinished()
	if err != nil {
		t.Fatalf("Unfinished failed: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("unfinished = %d records, want 2", len(open))
	}
	for _, rec := range open {
		if rec.State == StateComplete {
			t.Errorf("complete record %s in unfinished list", rec.ID)
		}
	}
}
