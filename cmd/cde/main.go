// cde is the Continuous Development Engine CLI. It runs a per-project
// daemon that scans for compile problems, asks the backend for fixes and
// writes them back into the source tree.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/modforge/cdengine/internal/config"
	"github.com/modforge/cdengine/internal/events"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// errExit is returned by RunE functions that already wrote their own
// error to stderr.
var errExit = errors.New("exit")

// projectFlag holds --project. Empty means walk up from cwd.
var projectFlag string

// run executes the CLI and returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	projectFlag = ""
	root := newRootCmd(stdout, stderr)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errExit) {
			fmt.Fprintf(stderr, "cde: %v\n", err) //nolint:errcheck // best-effort stderr
		}
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "cde",
		Short:         "Continuous development engine: scan, fix and write back compile problems",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			fmt.Fprintf(stderr, "cde: unknown command %q\n", args[0]) //nolint:errcheck // best-effort stderr
			return errExit
		},
	}
	root.PersistentFlags().StringVarP(&projectFlag, "project", "C", "",
		"path to the project directory (default: walk up from cwd)")
	root.CompletionOptions.DisableDefaultCmd = true
	root.AddCommand(
		newInitCmd(stdout, stderr),
		newRunCmd(stdout, stderr),
		newTickCmd(stdout, stderr),
		newStopCmd(stdout, stderr),
		newStatusCmd(stdout, stderr),
		newResetCmd(stdout, stderr),
		newEventsCmd(stdout, stderr),
		newDoctorCmd(stdout, stderr),
		newVersionCmd(stdout),
	)
	root.AddCommand(newGenDocCmd(stdout, stderr, root))
	return root
}

// findProject walks dir upward looking for a directory containing .cde/.
func findProject(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if fi, err := os.Stat(filepath.Join(dir, config.DirName)); err == nil && fi.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a project (no %s/ found; run cde init)", config.DirName)
		}
		dir = parent
	}
}

// resolveProject returns the project root from --project or the cwd.
func resolveProject() (string, error) {
	if projectFlag != "" {
		p, err := filepath.Abs(projectFlag)
		if err != nil {
			return "", err
		}
		if fi, err := os.Stat(config.StateDir(p)); err != nil || !fi.IsDir() {
			return "", fmt.Errorf("not a project: %s (no %s/ found)", p, config.DirName)
		}
		return p, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return findProject(cwd)
}

// openRecorder returns the project's event log, or events.Discard when it
// cannot be opened.
func openRecorder(root string, stderr io.Writer) events.Recorder {
	rec, err := events.NewFileRecorder(config.EventsPath(root), stderr)
	if err != nil {
		fmt.Fprintf(stderr, "cde: events: %v\n", err) //nolint:errcheck // best-effort stderr
		return events.Discard
	}
	return rec
}

// failf writes "cde <cmd>: msg" to stderr and returns errExit.
func failf(stderr io.Writer, cmd, format string, args ...any) error {
	fmt.Fprintf(stderr, "cde "+cmd+": "+format+"\n", args...) //nolint:errcheck // best-effort stderr
	return errExit
}
