package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/flowtalk"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of flowtalk",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "flowtalk version %s\n", strings.TrimSpace(flowtalk.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
