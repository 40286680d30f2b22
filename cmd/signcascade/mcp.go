package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/MrWong99/signcascade/internal/mcp"
)

func newMCPCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the resolver as MCP tools over stdin/stdout",
		Long: `Serve the resolver as Model Context Protocol tools over stdin/stdout.
Logs go to stderr so they do not corrupt the protocol stream.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Shutdown(context.Background())
			return mcp.Serve(cmd.Context(), a, version)
		},
	}
}
