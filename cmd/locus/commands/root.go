// Package commands implements the CLI commands for locus.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/locus/internal/app"
	"go.trai.ch/locus/internal/build"
	"go.trai.ch/locus/internal/core/ports"
)

// CLI represents the command line interface for locus.
type CLI struct {
	app        Application
	rootCmd    *cobra.Command
	isTerminal func(io.Writer) bool
}

// Application represents the application logic interface.
type Application interface {
	Configure(opts app.GlobalOptions)
	Query(ctx context.Context, request string, opts app.QueryOptions) (*ports.QueryResult, error)
	WarmCache(ctx context.Context) error
	ClearCache(ctx context.Context) error
	ServeDaemon(ctx context.Context, opts app.ServeOptions) error
	DaemonStatus(ctx context.Context) (*ports.DaemonStatus, error)
	StopDaemon(ctx context.Context) error
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "locus",
		Short:         "Find files by name across cached and live directory roots",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to locus.yaml (default: discovered from the working directory)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Only log warnings and errors")
	rootCmd.PersistentFlags().Bool("trace", false, "Log the duration of every query stage")

	c := &CLI{
		app:        a,
		rootCmd:    rootCmd,
		isTerminal: isTerminal,
	}

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		configPath, _ := cmd.Flags().GetString("config")
		logJSON, _ := cmd.Flags().GetBool("log-json")
		quiet, _ := cmd.Flags().GetBool("quiet")
		trace, _ := cmd.Flags().GetBool("trace")
		c.app.Configure(app.GlobalOptions{
			ConfigPath: configPath,
			LogJSON:    logJSON,
			Quiet:      quiet,
			Trace:      trace,
		})
	}

	rootCmd.AddCommand(c.newQueryCmd())
	rootCmd.AddCommand(c.newCacheCmd())
	rootCmd.AddCommand(c.newDaemonCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// SetTerminalDetector replaces the check deciding whether stdout is a terminal. Used for testing.
func (c *CLI) SetTerminalDetector(fn func(io.Writer) bool) {
	c.isTerminal = fn
}
