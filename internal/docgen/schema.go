package docgen

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/invopop/jsonschema"
	"github.com/modforge/cdengine/internal/config"
	"github.com/modforge/cdengine/internal/events"
)

// modulePath is the import path prefix AddGoComments maps source
// directories onto.
const modulePath = "github.com/modforge/cdengine"

// newReflector returns a Reflector using fieldTag for property names and
// Go doc comments from the source tree as descriptions.
//
// AddGoComments walks "." and joins the paths onto modulePath, so the
// working directory must be the module root while it runs.
func newReflector(fieldTag string) (*jsonschema.Reflector, error) {
	root, err := ModuleRoot()
	if err != nil {
		return nil, err
	}
	orig, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	if err := os.Chdir(root); err != nil {
		return nil, fmt.Errorf("chdir to module root: %w", err)
	}
	defer func() { _ = os.Chdir(orig) }()

	r := &jsonschema.Reflector{FieldNameTag: fieldTag}
	if err := r.AddGoComments(modulePath, "."); err != nil {
		return nil, fmt.Errorf("extracting Go comments: %w", err)
	}
	return r, nil
}

// GenerateSettingsSchema produces a JSON Schema for .cde/engine.toml.
// Property defaults are taken from config.Default, the same values
// `cde init` writes.
func GenerateSettingsSchema() (*jsonschema.Schema, error) {
	r, err := newReflector("toml")
	if err != nil {
		return nil, err
	}
	s := r.Reflect(&config.Settings{})
	s.Title = "Continuous Development Engine Settings"
	s.Description = "Schema for .cde/engine.toml, the per-project engine configuration."

	defaults, err := defaultValues()
	if err != nil {
		return nil, err
	}
	fillDefaults(s, s.Definitions[refName(s.Ref)], defaults)
	return s, nil
}

// GenerateEventSchema produces a JSON Schema for one events.jsonl line.
func GenerateEventSchema() (*jsonschema.Schema, error) {
	r, err := newReflector("json")
	if err != nil {
		return nil, err
	}
	s := r.Reflect(&events.Event{})
	s.Title = "Engine Event"
	s.Description = "Schema for one line of .cde/events.jsonl."
	return s, nil
}

// defaultValues decodes the default settings file into a generic tree.
func defaultValues() (map[string]any, error) {
	def := config.Default()
	data, err := def.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encoding default settings: %w", err)
	}
	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding default settings: %w", err)
	}
	return m, nil
}

// fillDefaults sets Default on each property of def found in vals,
// following $refs into nested tables.
func fillDefaults(root, def *jsonschema.Schema, vals map[string]any) {
	if def == nil || def.Properties == nil {
		return
	}
	for pair := def.Properties.Oldest(); pair != nil; pair = pair.Next() {
		v, ok := vals[pair.Key]
		if !ok {
			continue
		}
		if table, isTable := v.(map[string]any); isTable {
			if pair.Value.Ref != "" {
				fillDefaults(root, root.Definitions[refName(pair.Value.Ref)], table)
			}
			continue
		}
		pair.Value.Default = v
	}
}
