package main

import (
	"fmt"

	"github.com/aretw0/flowtalk/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [flow]",
	Short: "Check flows for consistency",
	Long: `Decodes the flow, reports dangling edges and unknown vertex kinds, resolves its modules
and checks that a start step is ready. Without an argument every flow in --dir is checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := buildStack(cmd)
		if err != nil {
			return err
		}
		defer stack.Close()

		out := cmd.OutOrStdout()
		if len(args) == 0 {
			return cli.ValidateAll(cmd.Context(), stack, out)
		}
		if err := cli.Validate(cmd.Context(), stack, args[0]); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintf(out, "Flow %q is valid! ✅\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
