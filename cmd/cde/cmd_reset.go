package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newResetCmd(stdout, stderr io.Writer) *cobra.Command {
	var noRestart bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the enhancement budget, cooldown and statistics",
		Long: `Stop the engine, clear every file's enhancement count, the cooldown and
the run statistics, then start again unless --no-restart is given.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			root, err := resolveProject()
			if err != nil {
				return failf(stderr, "reset", "%v", err)
			}
			command := "reset"
			if noRestart {
				command = "reset no-restart"
			}
			reply, err := sendControl(root, command)
			if errors.Is(err, errNotRunning) {
				return failf(stderr, "reset", "engine not running (budgets only live in a running daemon)")
			}
			if err != nil {
				return failf(stderr, "reset", "%v", err)
			}
			fmt.Fprintln(stdout, "Engine reset.") //nolint:errcheck // best-effort stdout
			if reply.Error != "" {
				fmt.Fprintf(stdout, "Not restarted: %s\n", reply.Error) //nolint:errcheck // best-effort stdout
			} else if reply.Status != nil {
				fmt.Fprintf(stdout, "State: %s\n", reply.Status.State) //nolint:errcheck // best-effort stdout
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noRestart, "no-restart", false, "leave the engine stopped after the reset")
	return cmd
}
