package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modforge/cdengine/internal/config"
	"github.com/modforge/cdengine/internal/telemetry"
	"github.com/spf13/cobra"
)

// supervisePeriod is how often the daemon checks whether a stopped engine
// has become runnable again.
const supervisePeriod = 2 * time.Second

func newRunCmd(stdout, stderr io.Writer) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the engine daemon in the foreground",
		Long: `Run the engine daemon for this project until "cde stop" or a signal.

The daemon holds .cde/engine.lock and serves .cde/engine.sock. When
continuous development is disabled or the access token disappears the
engine stops itself; the daemon starts it again once both are back.`,
		Example: "  cde run\n  cde run --once",
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			root, err := resolveProject()
			if err != nil {
				return failf(stderr, "run", "%v", err)
			}
			if once {
				return doTickLocal(root, false, stdout, stderr)
			}
			if runDaemon(root, stdout, stderr) != 0 {
				return errExit
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single tick and exit")
	return cmd
}

// runDaemon runs the engine until the context is canceled by a signal or a
// "stop" control command. Returns an exit code.
func runDaemon(root string, stdout, stderr io.Writer) int {
	lock, err := acquireEngineLock(root)
	if err != nil {
		fmt.Fprintf(stderr, "cde run: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	defer lock.Unlock() //nolint:errcheck // best-effort cleanup

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown, err := telemetry.Init(ctx, version)
	if err != nil {
		fmt.Fprintf(stderr, "cde run: telemetry: %v\n", err) //nolint:errcheck // best-effort stderr
	} else {
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			shutdown(sctx) //nolint:errcheck // best-effort flush
		}()
	}

	rt, err := openRuntime(root, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "cde run: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	defer rt.Close()
	if err := rt.settings.Start(ctx); err != nil {
		fmt.Fprintf(stderr, "cde run: settings reload disabled: %v\n", err) //nolint:errcheck // best-effort stderr
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	lis, err := startControlSocket(ctx, root, &controlHandler{eng: rt.eng, stop: cancel})
	if err != nil {
		fmt.Fprintf(stderr, "cde run: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	defer os.Remove(config.SocketPath(root)) //nolint:errcheck // best-effort cleanup
	defer lis.Close()                        //nolint:errcheck // best-effort cleanup

	fmt.Fprintf(stdout, "Engine daemon started for %s.\n", root) //nolint:errcheck // best-effort stdout

	rt.eng.Start() //nolint:errcheck // refusal already logged
	supervise(ctx, rt, supervisePeriod)

	rt.eng.Stop()
	rt.eng.Wait()
	fmt.Fprintln(stdout, "Engine daemon stopped.") //nolint:errcheck // best-effort stdout
	return 0
}

// supervise restarts a stopped engine when it becomes runnable again. It
// is edge-triggered: the engine is started only on a transition from not
// runnable to runnable, so a "reset no-restart" on a runnable engine
// stays in effect.
func supervise(ctx context.Context, rt *engineRuntime, period time.Duration) {
	t := time.NewTicker(period)
	defer t.Stop()
	wasReady := rt.ready()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		ready := rt.ready()
		if ready && !wasReady && !rt.eng.IsRunning() {
			rt.eng.Start() //nolint:errcheck // refusal already logged
		}
		wasReady = ready
	}
}
