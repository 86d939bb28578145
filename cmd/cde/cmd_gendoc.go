package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/modforge/cdengine/internal/docgen"
	"github.com/spf13/cobra"
)

// newGenDocCmd creates the hidden "cde gen-doc" command, which writes the
// CLI reference by walking the real command tree.
func newGenDocCmd(stdout, stderr io.Writer, root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:    "gen-doc [output]",
		Short:  "Generate CLI reference documentation",
		Hidden: true,
		Args:   cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			out := "docs/reference/cli.md"
			if len(args) > 0 {
				out = args[0]
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return failf(stderr, "gen-doc", "%v", err)
			}
			if err := docgen.WriteCLIMarkdown(out, root); err != nil {
				return failf(stderr, "gen-doc", "%v", err)
			}
			fmt.Fprintf(stdout, "Generated: %s\n", out) //nolint:errcheck // best-effort stdout
			return nil
		},
	}
}
