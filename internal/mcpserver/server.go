// Package mcpserver exposes snapshot and task operations as Model
// Context Protocol tools, so the coding agents whose edits the snapshots
// protect can drive the workflow themselves.
package mcpserver

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/aictx/aictx/internal/diffengine"
	"github.com/aictx/aictx/internal/rollback"
	"github.com/aictx/aictx/internal/snapshot"
	"github.com/aictx/aictx/internal/task"
)

// Deps carries the wired components the tools operate on.
type Deps struct {
	Snapshots   *snapshot.Store
	Diff        *diffengine.Engine
	Rollback    *rollback.Executor
	Coordinator *task.Coordinator
	Tasks       *task.Store
}

// NewServer creates an MCP server with all aictx tools registered.
func NewServer(version string, deps Deps) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "aictx",
		Version: version,
	}, nil)
	registerTools(server, deps)
	return server
}

func boolPtr(b bool) *bool {
	return &b
}

func readOnlyAnnotations() *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		ReadOnlyHint:   true,
		IdempotentHint: true,
		OpenWorldHint:  boolPtr(false),
	}
}

func writeAnnotations() *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		DestructiveHint: boolPtr(false),
		OpenWorldHint:   boolPtr(false),
	}
}

func registerTools(server *mcp.Server, deps Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "snapshot_list",
		Description: "List all snapshots, newest first, with id, label, mode and file count.",
		Annotations: readOnlyAnnotations(),
	}, handleSnapshotList(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "snapshot_diff",
		Description: "Preview what a rollback to a snapshot would change, without touching any file. Reports modified files, files that would be recreated, and files left untouched.",
		Annotations: readOnlyAnnotations(),
	}, handleSnapshotDiff(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "snapshot_rollback",
		Description: "Restore working-tree files from a snapshot, fully or for a subset of paths. Files absent from the snapshot are never deleted.",
		Annotations: &mcp.ToolAnnotations{
			DestructiveHint: boolPtr(true),
			IdempotentHint:  true,
			OpenWorldHint:   boolPtr(false),
		},
	}, handleSnapshotRollback(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "task_start",
		Description: "Start an AI-assisted task: captures a safety snapshot, records the task and writes a task brief. Returns the task and snapshot ids needed later.",
		Annotations: writeAnnotations(),
	}, handleTaskStart(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "task_finish",
		Description: "Finish a task: runs the configured validation checks, archives the brief and marks the task complete. On validation failure the task stays open for retry.",
		Annotations: writeAnnotations(),
	}, handleTaskFinish(deps))
}
