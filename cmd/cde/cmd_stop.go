package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newStopCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running engine daemon",
		Long: `Stop the running engine daemon. A tick in progress finishes the file it
is working on and processes no more.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			root, err := resolveProject()
			if err != nil {
				return failf(stderr, "stop", "%v", err)
			}
			return doStop(root, stdout, stderr)
		},
	}
}

func doStop(root string, stdout, stderr io.Writer) error {
	reply, err := sendControl(root, "stop")
	if errors.Is(err, errNotRunning) {
		fmt.Fprintln(stdout, "Engine not running.") //nolint:errcheck // best-effort stdout
		return nil
	}
	if err != nil {
		return failf(stderr, "stop", "%v", err)
	}
	if !reply.OK {
		return failf(stderr, "stop", "%s", reply.Error)
	}
	fmt.Fprintln(stdout, "Engine stopping.") //nolint:errcheck // best-effort stdout
	return nil
}
