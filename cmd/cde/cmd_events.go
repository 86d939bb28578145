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
	"text/tabwriter"
	"time"

	"github.com/modforge/cdengine/internal/config"
	"github.com/modforge/cdengine/internal/events"
	"github.com/spf13/cobra"
)

// eventsOptions holds the flags of "cde events".
type eventsOptions struct {
	filter  events.Filter
	since   *sinceValue
	follow  bool
	jsonOut bool
	timeout time.Duration
}

func newEventsCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := eventsOptions{since: newSinceValue()}
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the engine event log",
		Long: `Show .cde/events.jsonl: engine starts and stops, completed ticks,
applied and failed fixes, and files whose enhancement budget ran out.`,
		Example: `  cde events --tail 20
  cde events --type fix.applied --since 1h
  cde events --follow --json`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			root, err := resolveProject()
			if err != nil {
				return failf(stderr, "events", "%v", err)
			}
			opts.filter.Since = opts.since.Time()
			path := config.EventsPath(root)
			if opts.follow {
				return doEventsFollow(path, opts, stdout, stderr)
			}
			return doEvents(path, opts, stdout, stderr)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.filter.Type, "type", "", "filter by event type (e.g. fix.applied)")
	f.StringVar(&opts.filter.Subject, "subject", "", "filter by file")
	f.Var(opts.since, "since", "show events since a duration ago (30m) or an RFC 3339 time")
	f.IntVarP(&opts.filter.Tail, "tail", "n", 0, "show only the last N matching events")
	f.BoolVarP(&opts.follow, "follow", "f", false, "wait for new events and print them as they arrive")
	f.DurationVar(&opts.timeout, "timeout", 0, "stop following after this long (0 = until interrupted)")
	f.BoolVar(&opts.jsonOut, "json", false, "print events as JSON lines")
	return cmd
}

// doEvents prints the matching events already in the log.
func doEvents(path string, opts eventsOptions, stdout, stderr io.Writer) error {
	evts, err := events.ReadFiltered(path, opts.filter)
	if err != nil {
		return failf(stderr, "events", "%v", err)
	}
	if opts.jsonOut {
		printEventsJSON(evts, stdout)
		return nil
	}
	if len(evts) == 0 {
		fmt.Fprintln(stdout, "No events.") //nolint:errcheck // best-effort stdout
		return nil
	}
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTIME\tTYPE\tSUBJECT\tMESSAGE") //nolint:errcheck // best-effort stdout
	for _, e := range evts {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", //nolint:errcheck // best-effort stdout
			e.Seq, e.Ts.Local().Format("2006-01-02 15:04:05"), e.Type, e.Subject, clip(e.Message, 60))
	}
	tw.Flush() //nolint:errcheck // best-effort stdout
	return nil
}

// doEventsFollow prints new matching events until interrupted or the
// timeout passes. Tail and Since are ignored; only events recorded after
// the command starts are printed.
func doEventsFollow(path string, opts eventsOptions, stdout, stderr io.Writer) error {
	after, err := events.ReadLatestSeq(path)
	if err != nil {
		return failf(stderr, "events", "%v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	match := opts.filter
	match.Since, match.Tail = time.Time{}, 0
	w := events.NewFileWatcher(ctx, path, after)
	defer w.Close() //nolint:errcheck // no-op close
	for {
		e, err := w.Next()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return failf(stderr, "events", "%v", err)
		}
		if !match.Match(e) {
			continue
		}
		if opts.jsonOut {
			printEventsJSON([]events.Event{e}, stdout)
			continue
		}
		fmt.Fprintf(stdout, "%d %s %s %s %s\n", //nolint:errcheck // best-effort stdout
			e.Seq, e.Ts.Local().Format("15:04:05"), e.Type, e.Subject, clip(e.Message, 60))
	}
}

func printEventsJSON(evts []events.Event, stdout io.Writer) {
	for _, e := range evts {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		fmt.Fprintln(stdout, string(data)) //nolint:errcheck // best-effort stdout
	}
}

// clip shortens s to at most n runes.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
