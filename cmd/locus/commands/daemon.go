package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.trai.ch/locus/internal/adapters/daemon"
	"go.trai.ch/locus/internal/app"
)

func (c *CLI) newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the background daemon",
	}

	cmd.AddCommand(c.newDaemonServeCmd())
	cmd.AddCommand(c.newDaemonStatusCmd())
	cmd.AddCommand(c.newDaemonStopCmd())
	cmd.AddCommand(c.newDaemonQueryCmd())

	return cmd
}

func (c *CLI) newDaemonServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "serve",
		Short:  "Start the daemon server (internal use)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			idle, _ := cmd.Flags().GetDuration("idle-timeout")
			metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
			return c.app.ServeDaemon(cmd.Context(), app.ServeOptions{
				IdleTimeout: idle,
				MetricsAddr: metricsAddr,
			})
		},
	}
	cmd.Flags().Duration("idle-timeout", daemon.DefaultIdleTimeout, "Exit after this long without requests (0 never exits)")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	return cmd
}

func (c *CLI) newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := c.app.DaemonStatus(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !status.Running {
				_, _ = fmt.Fprintln(out, "daemon is not running")
				return nil
			}
			_, _ = fmt.Fprintf(out, "pid:            %d\n", status.PID)
			_, _ = fmt.Fprintf(out, "uptime:         %s\n", status.Uptime)
			_, _ = fmt.Fprintf(out, "last activity:  %s\n", status.LastActivity.Format(time.RFC3339))
			_, _ = fmt.Fprintf(out, "idle remaining: %s\n", status.IdleRemaining)
			_, _ = fmt.Fprintf(out, "queries served: %d\n", status.QueriesServed)
			return nil
		},
	}
}

func (c *CLI) newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.StopDaemon(cmd.Context())
		},
	}
}

func (c *CLI) newDaemonQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query [text]",
		Short: "Answer a query through the daemon, starting it if needed",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runQuery(cmd, args, true)
		},
	}
	cmd.Flags().BoolP("decode", "d", false, "Print one path per line instead of framed records")
	return cmd
}
