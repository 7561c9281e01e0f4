package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the snapshot of the cached roots",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "warm",
		Short: "Walk the cached roots and rewrite the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.WarmCache(cmd.Context())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Empty the snapshot so the next query walks the cached roots again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.ClearCache(cmd.Context())
		},
	})

	return cmd
}
