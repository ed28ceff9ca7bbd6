package cli

import (
	"github.com/spf13/cobra"

	mcpadapter "antygravity/internal/adapters/mcp"
	"antygravity/internal/scoring"
)

func (a *app) mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the scoring tools over MCP on stdio",
		Long:  `Launch an MCP server that lets AI agents score apps and list policies. Logs go to stderr so stdout carries only the protocol.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			s := mcpadapter.NewServer(scoring.New(reg), reg, version)
			return mcpadapter.Serve(cmd.Context(), s)
		},
	}
}
