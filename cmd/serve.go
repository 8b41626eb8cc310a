package cmd

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/aictx/aictx/internal/mcpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server over stdio",
	Long: `Expose snapshot and task operations as Model Context Protocol tools,
so AI agents can snapshot before editing and roll back on their own.

Register with an MCP client using the command 'aictx serve'.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}

	server := mcpserver.NewServer(version, mcpserver.Deps{
		Snapshots:   app.snapshots,
		Diff:        app.diff,
		Rollback:    app.rollback,
		Coordinator: app.coordinator,
		Tasks:       app.tasks,
	})
	return server.Run(cmd.Context(), &mcp.StdioTransport{})
}
