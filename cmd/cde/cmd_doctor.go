package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/modforge/cdengine/internal/auth"
	"github.com/modforge/cdengine/internal/config"
	"github.com/modforge/cdengine/internal/doctor"
	"github.com/modforge/cdengine/internal/fsys"
	"github.com/spf13/cobra"
)

func newDoctorCmd(stdout, stderr io.Writer) *cobra.Command {
	var fix, verbose bool
	cmd := &cobra.Command{
		Use:   "doctor [path]",
		Short: "Check the project's engine setup",
		Long: `Check the .cde directory, engine.toml, the access token, the backend,
the problem source and the event log. --fix creates what is missing,
including a default engine.toml; it never overwrites an existing one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			root, err := doctorRoot(args)
			if err != nil {
				return failf(stderr, "doctor", "%v", err)
			}
			if !doDoctor(root, fix, verbose, stdout) {
				return errExit
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "repair what can be repaired")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show check details")
	return cmd
}

// doctorRoot resolves the project without requiring .cde/ to exist, since
// a missing state directory is one of the things doctor reports.
func doctorRoot(args []string) (string, error) {
	if len(args) > 0 {
		projectFlag = args[0]
	}
	if root, err := resolveProject(); err == nil {
		return root, nil
	}
	if projectFlag != "" {
		return filepath.Abs(projectFlag)
	}
	return filepath.Abs(".")
}

// doDoctor runs the standard checks and reports whether none failed.
func doDoctor(root string, fix, verbose bool, stdout io.Writer) bool {
	s, err := config.Load(fsys.OSFS{}, config.Path(root))
	if err != nil {
		def := config.Default()
		s = &def
	}
	d := &doctor.Doctor{}
	d.Register(doctor.Standard(root, s, auth.NewEnvOrFile(fsys.OSFS{}, root))...)

	fmt.Fprintf(stdout, "Checking %s\n", root) //nolint:errcheck // best-effort stdout
	r := d.Run(&doctor.CheckContext{ProjectRoot: root, Verbose: verbose}, stdout, fix)
	doctor.PrintSummary(stdout, r)
	return r.Healthy()
}
