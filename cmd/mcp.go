package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tallyhq/tally/core"
	"github.com/tallyhq/tally/internal/mcp"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the tally MCP server",
	Long: `Launch an MCP server over stdio that lets AI agents resolve periods,
normalize weights, aggregate contributions and preview scores via standard tools.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		// Suppress the normal header logs when running in MCP mode
		// to avoid polluting stdio which is used for the protocol.
		rootCtx = core.WithSuppressHeader(rootCtx)
		return sharedSetup(rootCtx, cmd, args)
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, cfg, cacheManager, backendClient)
	},
}
