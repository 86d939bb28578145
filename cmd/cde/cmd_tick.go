package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modforge/cdengine/internal/engine"
	"github.com/spf13/cobra"
)

func newTickCmd(stdout, stderr io.Writer) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one scan-and-fix cycle now",
		Long: `Run one scan-and-fix cycle now and print its report.

If a daemon is running the tick runs inside it, sharing its budget and
cooldown. Otherwise the tick runs in this process with a fresh budget.
A manual tick does not require continuous development to be enabled.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			root, err := resolveProject()
			if err != nil {
				return failf(stderr, "tick", "%v", err)
			}
			reply, err := sendControl(root, "tick")
			switch {
			case errors.Is(err, errNotRunning):
				return doTickLocal(root, jsonOut, stdout, stderr)
			case err != nil:
				return failf(stderr, "tick", "%v", err)
			}
			if reply.Report != nil {
				printReport(stdout, *reply.Report, jsonOut)
			}
			if !reply.OK {
				return failf(stderr, "tick", "%s", reply.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the tick report as JSON")
	return cmd
}

// doTickLocal runs one tick in this process under the engine lock.
func doTickLocal(root string, jsonOut bool, stdout, stderr io.Writer) error {
	lock, err := acquireEngineLock(root)
	if err != nil {
		return failf(stderr, "tick", "%v", err)
	}
	defer lock.Unlock() //nolint:errcheck // best-effort cleanup

	rt, err := openRuntime(root, stderr)
	if err != nil {
		return failf(stderr, "tick", "%v", err)
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	report, err := rt.eng.RunOnce(ctx)
	if err != nil && report.ID == "" {
		return failf(stderr, "tick", "%v", err)
	}
	printReport(stdout, report, jsonOut)
	if err != nil {
		return failf(stderr, "tick", "%v", err)
	}
	return nil
}

// printReport writes a tick report as one summary line or as JSON.
func printReport(w io.Writer, r engine.TickReport, jsonOut bool) {
	if jsonOut {
		data, _ := json.MarshalIndent(r, "", "  ")
		fmt.Fprintln(w, string(data)) //nolint:errcheck // best-effort stdout
		return
	}
	fmt.Fprintf(w, "tick %s: %s in %s\n", shortID(r.ID), r.Outcome, r.Duration.Round(time.Millisecond)) //nolint:errcheck // best-effort stdout
	if r.ProblemFiles > 0 {
		fmt.Fprintf(w, "  %d problems in %d files\n", r.Problems, r.ProblemFiles) //nolint:errcheck // best-effort stdout
		fmt.Fprintf(w, "  applied %d, no change %d, failed %d, skipped (cap) %d\n", //nolint:errcheck // best-effort stdout
			r.Applied, r.NoChange, r.Failed, r.SkippedCap)
	}
	if r.Interrupted {
		fmt.Fprintln(w, "  interrupted before every file was visited") //nolint:errcheck // best-effort stdout
	}
	if r.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", r.Error) //nolint:errcheck // best-effort stdout
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
