package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the navigation journal",
	Long:  `Lists sessions recorded in the --journal SQLite file and replays their events.`,
}

var journalLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List journaled sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := buildStack(cmd)
		if err != nil {
			return err
		}
		defer stack.Close()
		if stack.Journal == nil {
			return errNoJournal
		}

		ids, err := stack.Journal.Sessions(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintln(out, "No journaled sessions found.")
			return nil
		}
		fmt.Fprintln(out, "Journaled Sessions:")
		for _, id := range ids {
			fmt.Fprintln(out, "- "+id)
		}
		return nil
	},
}

var journalShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print the events of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := buildStack(cmd)
		if err != nil {
			return err
		}
		defer stack.Close()
		if stack.Journal == nil {
			return errNoJournal
		}

		events, err := stack.Journal.Events(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return fmt.Errorf("no events for session %q", args[0])
		}
		out := cmd.OutOrStdout()
		for _, e := range events {
			fmt.Fprintf(out, "%4d  %s  %-10s %s\n", e.Seq, e.Time.Format(time.RFC3339), e.Action, e.StepID)
		}
		return nil
	},
}

var errNoJournal = errors.New("no journal configured; pass --journal <file>")

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalLsCmd)
	journalCmd.AddCommand(journalShowCmd)
}
