package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/aictx/aictx/internal/rollback"
	"github.com/aictx/aictx/internal/snapshot"
	"github.com/aictx/aictx/internal/task"
)

// SnapshotSummary is a snapshot reference for tool output.
type SnapshotSummary struct {
	ID        string `json:"id"         jsonschema:"snapshot identifier"`
	CreatedAt string `json:"created_at" jsonschema:"creation time, RFC3339"`
	Label     string `json:"label,omitempty" jsonschema:"human-readable label"`
	Mode      string `json:"mode"       jsonschema:"capture mode: native or filecopy"`
	Files     int    `json:"files"      jsonschema:"number of captured files"`
}

func toSummary(m *snapshot.Metadata) SnapshotSummary {
	return SnapshotSummary{
		ID:        m.ID,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
		Label:     m.Label,
		Mode:      string(m.Mode),
		Files:     len(m.Files),
	}
}

// --- snapshot_list ---

// SnapshotListInput is the input for snapshot_list (no parameters).
type SnapshotListInput struct{}

// SnapshotListOutput is the output for snapshot_list.
type SnapshotListOutput struct {
	Count     int               `json:"count"               jsonschema:"number of snapshots"`
	Snapshots []SnapshotSummary `json:"snapshots,omitempty" jsonschema:"snapshots, newest first"`
}

func handleSnapshotList(deps Deps) mcp.ToolHandlerFor[SnapshotListInput, SnapshotListOutput] {
	return func(_ context.Context, _ *mcp.CallToolRequest, _ SnapshotListInput) (*mcp.CallToolResult, SnapshotListOutput, error) {
		metas, err := deps.Snapshots.List()
		if err != nil {
			return nil, SnapshotListOutput{}, fmt.Errorf("listing snapshots: %w", err)
		}
		out := SnapshotListOutput{Count: len(metas)}
		for _, m := range metas {
			out.Snapshots = append(out.Snapshots, toSummary(m))
		}
		return nil, out, nil
	}
}

// --- snapshot_diff ---

// SnapshotDiffInput is the input for snapshot_diff.
type SnapshotDiffInput struct {
	SnapshotID string   `json:"snapshot_id"     jsonschema:"snapshot to compare against"`
	Paths      []string `json:"paths,omitempty" jsonschema:"optional path filter"`
}

// FileChange is one changed file in a diff preview.
type FileChange struct {
	Path   string `json:"path"   jsonschema:"relative file path"`
	Status string `json:"status" jsonschema:"modified, deleted (would be restored), untracked (left alone) or unchanged"`
}

// SnapshotDiffOutput is the output for snapshot_diff.
type SnapshotDiffOutput struct {
	SnapshotID string       `json:"snapshot_id"`
	Changes    []FileChange `json:"changes,omitempty" jsonschema:"per-file comparison, omitting unchanged files"`
	Restorable []string     `json:"restorable,omitempty" jsonschema:"paths a rollback would actually write"`
	Note       string       `json:"note,omitempty" jsonschema:"asymmetry note about untracked files"`
}

func handleSnapshotDiff(deps Deps) mcp.ToolHandlerFor[SnapshotDiffInput, SnapshotDiffOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in SnapshotDiffInput) (*mcp.CallToolResult, SnapshotDiffOutput, error) {
		meta, err := deps.Snapshots.Get(in.SnapshotID)
		if err != nil {
			return nil, SnapshotDiffOutput{}, err
		}
		diff, err := deps.Diff.Diff(ctx, meta, in.Paths)
		if err != nil {
			return nil, SnapshotDiffOutput{}, fmt.Errorf("computing diff: %w", err)
		}
		out := SnapshotDiffOutput{SnapshotID: meta.ID, Restorable: diff.Restorable()}
		untracked := 0
		for _, f := range diff.Files {
			if f.Status == "unchanged" {
				continue
			}
			if f.Status == "untracked" {
				untracked++
			}
			out.Changes = append(out.Changes, FileChange{Path: f.Path, Status: string(f.Status)})
		}
		if untracked > 0 {
			out.Note = fmt.Sprintf("%d file(s) exist on disk but not in the snapshot; rollback will not delete them", untracked)
		}
		return nil, out, nil
	}
}

// --- snapshot_rollback ---

// SnapshotRollbackInput is the input for snapshot_rollback.
type SnapshotRollbackInput struct {
	SnapshotID string   `json:"snapshot_id"      jsonschema:"snapshot to restore from"`
	Paths      []string `json:"paths,omitempty"  jsonschema:"restrict restore to these paths"`
	DryRun     bool     `json:"dry_run,omitempty" jsonschema:"preview only, write nothing"`
}

// SnapshotRollbackOutput is the output for snapshot_rollback.
type SnapshotRollbackOutput struct {
	SnapshotID string   `json:"snapshot_id"`
	Restored   []string `json:"restored,omitempty"  jsonschema:"files written"`
	Unchanged  []string `json:"unchanged,omitempty" jsonschema:"files already matching the snapshot"`
	Skipped    []string `json:"skipped,omitempty"   jsonschema:"requested paths not in the snapshot"`
	Failed     []string `json:"failed,omitempty"    jsonschema:"files that could not be written"`
	WouldWrite []string `json:"would_write,omitempty" jsonschema:"dry run: paths a real rollback would write"`
}

func handleSnapshotRollback(deps Deps) mcp.ToolHandlerFor[SnapshotRollbackInput, SnapshotRollbackOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in SnapshotRollbackInput) (*mcp.CallToolResult, SnapshotRollbackOutput, error) {
		result, err := deps.Rollback.Rollback(ctx, rollback.Request{
			SnapshotID: in.SnapshotID,
			Paths:      in.Paths,
			DryRun:     in.DryRun,
		})
		if err != nil {
			return nil, SnapshotRollbackOutput{}, err
		}
		out := SnapshotRollbackOutput{
			SnapshotID: result.SnapshotID,
			Restored:   result.Restored,
			Unchanged:  result.Unchanged,
			Skipped:    result.Skipped,
		}
		for _, f := range result.Failures {
			out.Failed = append(out.Failed, f.Error())
		}
		if result.Diff != nil {
			out.WouldWrite = result.Diff.Restorable()
		}
		return nil, out, result.Err()
	}
}

// --- task_start ---

// TaskStartInput is the input for task_start.
type TaskStartInput struct {
	Description string   `json:"description"      jsonschema:"what the task will do"`
	Type        string   `json:"type,omitempty"   jsonschema:"feature, fix, refactor, test, docs or chore"`
	Agent       string   `json:"agent,omitempty"  jsonschema:"name of the agent doing the edits"`
	Files       []string `json:"files,omitempty"  jsonschema:"restrict the snapshot to these paths"`
	Force       bool     `json:"force,omitempty"  jsonschema:"overwrite an existing task brief"`
}

// TaskStartOutput is the output for task_start.
type TaskStartOutput struct {
	TaskID     string `json:"task_id"`
	SnapshotID string `json:"snapshot_id"`
	BriefPath  string `json:"brief_path,omitempty"`
	Warning    string `json:"warning,omitempty" jsonschema:"non-fatal advisory, e.g. dirty working tree"`
}

func handleTaskStart(deps Deps) mcp.ToolHandlerFor[TaskStartInput, TaskStartOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in TaskStartInput) (*mcp.CallToolResult, TaskStartOutput, error) {
		result, err := deps.Coordinator.Start(ctx, task.StartOptions{
			Description: in.Description,
			Type:        in.Type,
			Agent:       in.Agent,
			Files:       in.Files,
			Force:       in.Force,
		})
		if err != nil {
			return nil, TaskStartOutput{}, err
		}
		return nil, TaskStartOutput{
			TaskID:     result.Record.ID,
			SnapshotID: result.Snapshot.ID,
			BriefPath:  result.BriefPath,
			Warning:    result.Warning,
		}, nil
	}
}

// --- task_finish ---

// TaskFinishInput is the input for task_finish.
type TaskFinishInput struct {
	TaskID  string `json:"task_id,omitempty" jsonschema:"task to finish; defaults to the single unfinished task"`
	Commit  bool   `json:"commit,omitempty"  jsonschema:"create a git commit after validation passes"`
	Message string `json:"message,omitempty" jsonschema:"custom commit message"`
}

// TaskFinishOutput is the output for task_finish.
type TaskFinishOutput struct {
	TaskID     string   `json:"task_id"`
	State      string   `json:"state"      jsonschema:"complete or failed"`
	Findings   []string `json:"findings,omitempty" jsonschema:"validation failures, when any"`
	ArchivedTo string   `json:"archived_to,omitempty"`
	Committed  bool     `json:"committed"`
}

func handleTaskFinish(deps Deps) mcp.ToolHandlerFor[TaskFinishInput, TaskFinishOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in TaskFinishInput) (*mcp.CallToolResult, TaskFinishOutput, error) {
		rec, err := resolveTask(deps.Tasks, in.TaskID)
		if err != nil {
			return nil, TaskFinishOutput{}, err
		}
		result, err := deps.Coordinator.Finish(ctx, rec, task.FinishOptions{
			Commit:  in.Commit,
			Message: in.Message,
		})
		if err != nil && !errors.Is(err, task.ErrValidationFailed) {
			return nil, TaskFinishOutput{}, err
		}
		out := TaskFinishOutput{
			TaskID:    rec.ID,
			State:     string(rec.State),
			Findings:  rec.Findings,
			Committed: result.Committed,
		}
		if result.ArchivedTo != "" {
			out.ArchivedTo = result.ArchivedTo
		}
		return nil, out, nil
	}
}

// resolveTask loads an explicit task id, or the single unfinished task
// when none is given.
func resolveTask(tasks *task.Store, id string) (*task.Record, error) {
	if id != "" {
		return tasks.Get(id)
	}
	open, err := tasks.Unfinished()
	if err != nil {
		return nil, err
	}
	switch len(open) {
	case 0:
		return nil, errors.New("no unfinished task; start one with task_start")
	case 1:
		return open[0], nil
	default:
		return nil, fmt.Errorf("%d unfinished tasks; pass task_id to pick one", len(open))
	}
}
