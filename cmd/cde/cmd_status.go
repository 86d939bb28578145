package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/modforge/cdengine/internal/config"
	"github.com/modforge/cdengine/internal/engine"
	"github.com/modforge/cdengine/internal/fsys"
	"github.com/spf13/cobra"
)

func newStatusCmd(stdout, stderr io.Writer) *cobra.Command {
	var jsonOut, actions bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show engine state, run statistics and enhancement budget",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			root, err := resolveProject()
			if err != nil {
				return failf(stderr, "status", "%v", err)
			}
			reply, err := sendControl(root, "status")
			if errors.Is(err, errNotRunning) {
				return doStatusOffline(root, jsonOut, stdout, stderr)
			}
			if err != nil {
				return failf(stderr, "status", "%v", err)
			}
			if reply.Status == nil {
				return failf(stderr, "status", "%s", reply.Error)
			}
			if jsonOut {
				return writeJSON(stdout, reply.Status)
			}
			printStatus(stdout, *reply.Status, actions)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print status as JSON")
	cmd.Flags().BoolVar(&actions, "actions", false, "include the recent action log")
	return cmd
}

// doStatusOffline reports on a project with no daemon from its settings.
func doStatusOffline(root string, jsonOut bool, stdout, stderr io.Writer) error {
	s, err := config.Load(fsys.OSFS{}, config.Path(root))
	if err != nil {
		return failf(stderr, "status", "%v", err)
	}
	if jsonOut {
		return writeJSON(stdout, map[string]any{
			"running": false,
			"enabled": s.Engine.Enabled,
		})
	}
	enabled := "disabled"
	if s.Engine.Enabled {
		enabled = "enabled"
	}
	fmt.Fprintf(stdout, "Engine not running (continuous development %s).\n", enabled) //nolint:errcheck // best-effort stdout
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStatus(w io.Writer, st engine.Status, actions bool) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row := func(k, format string, args ...any) {
		fmt.Fprintf(tw, k+":\t"+format+"\n", args...) //nolint:errcheck // best-effort stdout
	}
	s := st.Stats
	row("Project", "%s", st.Project)
	row("State", "%s", st.State)
	row("Interval", "%s", st.Interval)
	if st.CooldownRemaining != "" {
		row("Cooldown", "%s remaining", st.CooldownRemaining)
	}
	if !s.LastScan.IsZero() {
		row("Last scan", "%s", s.LastScan.Format(time.RFC3339))
	}
	row("Scans", "%d ok (%d with problems), %d failed, %d skipped for cooldown",
		s.ScansOK, s.ScansWithProblems, s.ScansFailed, s.TicksCoolingDown)
	row("Fixes", "%d applied, %d no change, %d failed (%d attempted)",
		s.FixesApplied, s.FixesNoChange, s.FixesFailed, s.FixesAttempted)
	row("Write failures", "%d", s.WriteFailures)
	row("Skipped (cap)", "%d", s.FilesSkippedCap)
	tw.Flush() //nolint:errcheck // best-effort stdout

	if len(st.Budget.Entries) > 0 {
		fmt.Fprintf(w, "\nBudget (cap %d per file):\n", st.Budget.Limit) //nolint:errcheck // best-effort stdout
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, e := range st.Budget.Entries {
			mark := ""
			if e.Exhausted {
				mark = "exhausted"
			}
			fmt.Fprintf(tw, "  %s\t%d\t%s\n", e.File, e.Count, mark) //nolint:errcheck // best-effort stdout
		}
		tw.Flush() //nolint:errcheck // best-effort stdout
	}

	if actions && len(s.Recent) > 0 {
		fmt.Fprintln(w, "\nRecent actions:") //nolint:errcheck // best-effort stdout
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, a := range s.Recent {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", a.Time.Format("15:04:05"), a.Kind, a.File, a.Detail) //nolint:errcheck // best-effort stdout
		}
		tw.Flush() //nolint:errcheck // best-effort stdout
	}
}
