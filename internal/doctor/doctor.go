package doctor

import (
	"fmt"
	"io"
	"strings"
)

// Report summarizes the results of a doctor run.
type Report struct {
	Passed int
	Warned int
	Failed int
	// Fixed counts checks remediated by --fix. Fixed checks also count
	// as passed.
	Fixed int
}

// Healthy reports whether no check failed.
func (r *Report) Healthy() bool { return r.Failed == 0 }

// Doctor runs registered health checks and reports results.
type Doctor struct {
	checks []Check
}

// Register adds checks to the run list.
func (d *Doctor) Register(cs ...Check) {
	d.checks = append(d.checks, cs...)
}

// Run executes all registered checks, streaming each result to w. When
// fix is true, a fixable check that did not pass is remediated and run
// again; it counts as fixed only if the re-run passes.
func (d *Doctor) Run(ctx *CheckContext, w io.Writer, fix bool) *Report {
	r := &Report{}
	for _, c := range d.checks {
		result := c.Run(ctx)
		if fix && result.Status != StatusOK && c.CanFix() {
			if err := c.Fix(ctx); err != nil {
				result.Details = append(result.Details, "fix failed: "+err.Error())
			} else if again := c.Run(ctx); again.Status == StatusOK {
				result = again
				result.Fixed = true
			}
		}
		printResult(w, result, ctx.Verbose)

		switch {
		case result.Fixed:
			r.Fixed++
			r.Passed++
		case result.Status == StatusOK:
			r.Passed++
		case result.Status == StatusWarning:
			r.Warned++
		default:
			r.Failed++
		}
	}
	return r
}

func printResult(w io.Writer, r *CheckResult, verbose bool) {
	icon := "✗"
	switch r.Status {
	case StatusOK:
		icon = "✓"
	case StatusWarning:
		icon = "⚠"
	}
	suffix := ""
	if r.Fixed {
		suffix = " (fixed)"
	}
	fmt.Fprintf(w, "  %s %s: %s%s\n", icon, r.Name, r.Message, suffix) //nolint:errcheck // best-effort output
	if verbose {
		for _, d := range r.Details {
			fmt.Fprintf(w, "      %s\n", d) //nolint:errcheck // best-effort output
		}
	}
	if r.FixHint != "" && r.Status != StatusOK {
		fmt.Fprintf(w, "      hint: %s\n", r.FixHint) //nolint:errcheck // best-effort output
	}
}

// PrintSummary writes the final summary line to w.
func PrintSummary(w io.Writer, r *Report) {
	var parts []string
	for _, p := range []struct {
		n     int
		label string
	}{
		{r.Passed, "passed"},
		{r.Warned, "warnings"},
		{r.Failed, "failed"},
		{r.Fixed, "fixed"},
	} {
		if p.n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", p.n, p.label))
		}
	}
	if len(parts) == 0 {
		fmt.Fprintln(w, "\nNo checks ran.") //nolint:errcheck // best-effort output
		return
	}
	fmt.Fprintf(w, "\n%s\n", strings.Join(parts, ", ")) //nolint:errcheck // best-effort output
}
