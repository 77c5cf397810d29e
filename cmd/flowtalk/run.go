package main

import (
	"os"
	"strings"

	"github.com/aretw0/flowtalk"
	"github.com/aretw0/flowtalk/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <flow>",
	Short: "Run a conversation in the terminal",
	Long: `Starts a conversation over the named flow and drives it interactively.
Type an answer and press enter; ':back', ':goto <id>', ':quit' and ':help' are commands.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		headless, _ := cmd.Flags().GetBool("headless")
		jsonMode, _ := cmd.Flags().GetBool("json")

		stack, err := buildStack(cmd)
		if err != nil {
			return err
		}
		defer stack.Close()

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		return cli.RunSession(sigCtx, stack, cli.RunOptions{
			Flow:     args[0],
			Version:  strings.TrimSpace(flowtalk.Version),
			Headless: headless,
			JSON:     jsonMode,
			In:       os.Stdin,
			Out:      cmd.OutOrStdout(),
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("headless", false, "Plain text output without banner or markdown rendering")
	runCmd.Flags().Bool("json", false, "NDJSON frames on stdout, JSON strings on stdin")
}
