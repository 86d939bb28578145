package writeback

import (
	"context"
	"fmt"
	"io"

	"github.com/modforge/cdengine/internal/telemetry"
)

// Applier writes accepted fixes through an [Executor].
type Applier struct {
	exec   *Executor
	docs   Documents
	stderr io.Writer
}

// NewApplier returns an Applier. Failures are logged to stderr.
func NewApplier(exec *Executor, docs Documents, stderr io.Writer) *Applier {
	if stderr == nil {
		stderr = io.Discard
	}
	return &Applier{exec: exec, docs: docs, stderr: stderr}
}

// Apply replaces file's content with newSource and commits it. It
// blocks until the write has finished on the executor and reports
// whether it succeeded.
func (a *Applier) Apply(ctx context.Context, file, newSource string) bool {
	err := a.exec.InvokeAndWait(ctx, func() error {
		if err := a.docs.WriteText(file, newSource); err != nil {
			return err
		}
		return a.docs.Commit(file)
	})
	telemetry.RecordWriteBack(ctx, file, err)
	if err != nil {
		fmt.Fprintf(a.stderr, "writeback: %s: %v\n", file, err) //nolint:errcheck // best-effort stderr
		return false
	}
	return true
}
