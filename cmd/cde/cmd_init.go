package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/modforge/cdengine/internal/config"
	"github.com/modforge/cdengine/internal/fsys"
	"github.com/spf13/cobra"
)

// sampleScript is the diagnostics script written by "cde init". It reports
// no problems until edited to call the project's compiler.
const sampleScript = `#!/bin/sh
# Diagnostics script for the continuous development engine.
#   diagnostics.sh ensure-running
#   diagnostics.sh list               -> JSON array of files with problems
#   diagnostics.sh problems <file>    -> JSON array of {message,severity,line,column}
# Exit 75 from "problems" while diagnostics are still computing.
case "$1" in
  ensure-running) exit 0 ;;
  list) echo '[]' ;;
  problems) echo '[]' ;;
  *) exit 2 ;;
esac
`

func newInitCmd(stdout, stderr io.Writer) *cobra.Command {
	var enable, force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create .cde/ with default settings and a sample diagnostics script",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			root, err := filepath.Abs(dir)
			if err != nil {
				return failf(stderr, "init", "%v", err)
			}
			if err := doInit(fsys.OSFS{}, root, enable, force, stdout); err != nil {
				return failf(stderr, "init", "%v", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&enable, "enable", false, "turn continuous development on in the new settings")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing engine.toml")
	return cmd
}

// doInit writes .cde/engine.toml and, when absent, the sample script.
func doInit(fs fsys.FS, root string, enable, force bool, stdout io.Writer) error {
	path := config.Path(root)
	if _, err := fs.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := fs.MkdirAll(config.StateDir(root), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", config.DirName, err)
	}

	s := config.Default()
	s.Engine.Enabled = enable
	data, err := s.Marshal()
	if err != nil {
		return err
	}
	if err := fs.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}

	script := s.Problems.ScriptPath(root)
	if _, err := fs.Stat(script); errors.Is(err, os.ErrNotExist) {
		if err := fs.WriteFile(script, []byte(sampleScript), 0o755); err != nil {
			return fmt.Errorf("writing diagnostics script: %w", err)
		}
	}

	fmt.Fprintf(stdout, "Initialized %s\n", config.StateDir(root)) //nolint:errcheck // best-effort stdout
	if !enable {
		fmt.Fprintln(stdout, "Continuous development is disabled; set engine.enabled = true to turn it on.") //nolint:errcheck // best-effort stdout
	}
	return nil
}
