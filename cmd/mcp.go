package cmd

import (
	"github.com/spf13/cobra"

	"github.com/agentic-research/appdata/internal/mcpserver"
)

func newMCPCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve appdata tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStorage(st.cfg, st.logger)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			st.logger.Info("mcp server starting", "instanceid", st.cfg.InstanceID)
			return mcpserver.New(s.factory, Version, st.logger).ServeStdio()
		},
	}
}
