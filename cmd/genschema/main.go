// Command genschema regenerates the engine's reference docs. Run from the
// repository root:
//
//	go run ./cmd/genschema
//
// It writes docs/schema/{engine,event}-schema.json, the matching markdown
// under docs/reference/, and docs/reference/cli.md via "cde gen-doc".
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/invopop/jsonschema"
	"github.com/modforge/cdengine/internal/docgen"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "genschema: %v\n", err) //nolint:errcheck // best-effort stderr
		os.Exit(1)
	}
}

type target struct {
	name     string
	generate func() (*jsonschema.Schema, error)
	schema   string
	markdown string
}

func run() error {
	if _, err := os.Stat("go.mod"); err != nil {
		return fmt.Errorf("must run from repository root (go.mod not found)")
	}
	for _, dir := range []string{"docs/schema", "docs/reference"} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	targets := []target{
		{"settings", docgen.GenerateSettingsSchema, "docs/schema/engine-schema.json", "docs/reference/config.md"},
		{"event", docgen.GenerateEventSchema, "docs/schema/event-schema.json", "docs/reference/events.md"},
	}
	for _, t := range targets {
		s, err := t.generate()
		if err != nil {
			return fmt.Errorf("generating %s schema: %w", t.name, err)
		}
		if err := writeSchema(t.schema, s); err != nil {
			return err
		}
		if err := docgen.WriteMarkdown(t.markdown, s); err != nil {
			return fmt.Errorf("writing %s: %w", t.markdown, err)
		}
		fmt.Printf("  %s\n  %s\n", t.schema, t.markdown) //nolint:errcheck // best-effort stdout
	}

	// The CLI reference needs the real command tree, which lives in cmd/cde.
	genDoc := exec.Command("go", "run", "./cmd/cde", "gen-doc", "docs/reference/cli.md")
	genDoc.Stdout = os.Stdout
	genDoc.Stderr = os.Stderr
	if err := genDoc.Run(); err != nil {
		return fmt.Errorf("generating CLI docs: %w", err)
	}
	fmt.Println("  docs/reference/cli.md") //nolint:errcheck // best-effort stdout
	return nil
}

func writeSchema(path string, s *jsonschema.Schema) error {
	return docgen.WriteFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	})
}
