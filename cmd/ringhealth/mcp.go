// ABOUTME: CLI command for starting the MCP server.
// ABOUTME: Runs a stdio MCP server; sync and narrative tools appear when configured.
package main

import (
	"github.com/spf13/cobra"

	"github.com/harperreed/ringhealth/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server",
	Long: `Start the Model Context Protocol (MCP) server for AI assistant integration.

MCP allows AI assistants like Claude to read your ring data and journal
through a standardized protocol. The server communicates via stdin/stdout;
logs go to stderr.

CLAUDE DESKTOP CONFIGURATION:

  {
    "mcpServers": {
      "ringhealth": {
        "command": "ringhealth",
        "args": ["mcp"]
      }
    }
  }

AVAILABLE TOOLS:

  list_records        Newest synced records for a stream
  get_workout         One workout by ID
  add_note            Add a journal note
  list_notes          List notes
  delete_note         Delete a note
  add_goal            Create a goal
  list_goals          List goals
  update_goal         Change a goal's status or current value
  delete_goal         Delete a goal
  add_meal            Log a meal
  list_meals          List meals
  delete_meal         Delete a meal
  sync_now            Run a full sync (needs an Oura token)
  sync_status         Checkpoints and retry flags (needs an Oura token)
  get_digest          Today's digest (needs an Anthropic key)
  ask                 Ask about recent data (needs an Anthropic key)
  analyze_goal        Analyze a goal (needs an Anthropic key)

AVAILABLE RESOURCES:

  ringhealth://recent     Newest records of every daily stream
  ringhealth://today      Today's records
  ringhealth://sync       Checkpoints, retry flags, and row counts
  ringhealth://goals      Active goals`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		syncer, err := optionalSyncer()
		if err != nil {
			return err
		}
		svc, closeCache, err := optionalNarrative()
		if err != nil {
			return err
		}
		defer closeCache()

		var opts []mcp.Option
		if syncer != nil {
			opts = append(opts, mcp.WithSyncer(syncer, cfg.Sync.DaysBack))
		}
		if svc != nil {
			opts = append(opts, mcp.WithNarrative(svc))
		}

		server, err := mcp.NewServer(db, opts...)
		if err != nil {
			return err
		}
		return server.Serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
