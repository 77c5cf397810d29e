package main

import (
	"fmt"
	"os"

	"github.com/aretw0/flowtalk/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "flowtalk",
	Short: "Flowtalk walks conversation graphs",
	Long: `Flowtalk turns flowchart-shaped graphs of steps into stateful conversations.
Run them in the terminal, validate and draw them, or serve them over HTTP and MCP.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("dir", ".", "Directory containing flow documents")
	flags.String("source", cli.SourceFile, "Flow source for bare names: 'file' (.yaml/.json) or 'loam' (Markdown front matter)")
	flags.String("log-level", "warn", "Log level: debug, info, warn, error")
	flags.String("redis-addr", "", "Redis address for redis: flows and distributed session locks")
	flags.String("journal", "", "SQLite file journaling every navigation event")
}

// buildStack assembles the application from the persistent flags.
func buildStack(cmd *cobra.Command) (*cli.Stack, error) {
	flags := cmd.Flags()
	var cfg cli.Config
	cfg.Dir, _ = flags.GetString("dir")
	cfg.Source, _ = flags.GetString("source")
	cfg.LogLevel, _ = flags.GetString("log-level")
	cfg.RedisAddr, _ = flags.GetString("redis-addr")
	cfg.Journal, _ = flags.GetString("journal")
	return cli.Build(cfg)
}
