package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.trai.ch/locus/internal/app"
	"go.trai.ch/locus/internal/core/framing"
	"golang.org/x/term"
)

func (c *CLI) newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query [text]",
		Short: "Print the indexed paths whose name matches text",
		Long: "Print the indexed paths whose name matches text.\n\n" +
			"Output is the framed record stream unless stdout is a terminal or --decode is set,\n" +
			"in which case one path is printed per line. An empty text matches every path.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			useDaemon, _ := cmd.Flags().GetBool("daemon")
			return c.runQuery(cmd, args, useDaemon)
		},
	}
	cmd.Flags().BoolP("decode", "d", false, "Print one path per line instead of framed records")
	cmd.Flags().Bool("daemon", false, "Answer through the background daemon, starting it if needed")
	return cmd
}

func (c *CLI) runQuery(cmd *cobra.Command, args []string, useDaemon bool) error {
	var request string
	if len(args) > 0 {
		request = args[0]
	}

	result, err := c.app.Query(cmd.Context(), request, app.QueryOptions{Daemon: useDaemon})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	decode, _ := cmd.Flags().GetBool("decode")
	if !decode && !c.isTerminal(out) {
		_, err := out.Write(result.Payload)
		return err
	}

	paths, err := framing.Decode(result.Payload)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if _, err := fmt.Fprintln(out, p); err != nil {
			return err
		}
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
