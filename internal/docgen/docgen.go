// Package docgen generates JSON Schema and markdown reference docs for
// engine.toml, the events.jsonl record format and the cde command tree.
package docgen

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// generatedNote heads every generated markdown file.
const generatedNote = "> **Auto-generated**, do not edit. Run `go run ./cmd/genschema` to regenerate.\n\n"

// ModuleRoot finds the repo root by walking up from the current directory
// looking for go.mod. Returns the absolute path.
func ModuleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent of %s", dir)
		}
		dir = parent
	}
}

// WriteFileAtomic renders into a temp file next to path and renames it
// into place, so a failed render never leaves a truncated document.
func WriteFileAtomic(path string, render func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".docgen-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	name := tmp.Name()
	fail := func(step string, err error) error {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("%s %s: %w", step, path, err)
	}
	if err := render(tmp); err != nil {
		return fail("rendering", err)
	}
	if err := tmp.Close(); err != nil {
		return fail("closing", err)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("renaming %s: %w", path, err)
	}
	return nil
}

// errWriter remembers the first write error so renderers can emit a
// whole document and check once.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
