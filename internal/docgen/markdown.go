package docgen

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
)

// RenderMarkdown writes a reference document from a JSON Schema: one
// section per definition, root type first, each with a field table.
func RenderMarkdown(w io.Writer, s *jsonschema.Schema) error {
	ew := &errWriter{w: w}
	title := s.Title
	if title == "" {
		title = "Configuration Reference"
	}
	ew.printf("# %s\n\n", title)
	if s.Description != "" {
		ew.printf("%s\n\n", s.Description)
	}
	ew.printf(generatedNote)

	rootName := ""
	if s.Ref != "" {
		rootName = refName(s.Ref)
	}
	names := make([]string, 0, len(s.Definitions))
	for name := range s.Definitions {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if (names[i] == rootName) != (names[j] == rootName) {
			return names[i] == rootName
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		def := s.Definitions[name]
		if def == nil || def.Properties == nil {
			continue
		}
		ew.printf("## %s\n\n", name)
		if def.Description != "" {
			ew.printf("%s\n\n", def.Description)
		}
		required := make(map[string]bool, len(def.Required))
		for _, r := range def.Required {
			required[r] = true
		}
		ew.printf("| Field | Type | Required | Default | Description |\n")
		ew.printf("|-------|------|----------|---------|-------------|\n")
		for pair := def.Properties.Oldest(); pair != nil; pair = pair.Next() {
			req := ""
			if required[pair.Key] {
				req = "**yes**"
			}
			ew.printf("| `%s` | %s | %s | %s | %s |\n",
				pair.Key, schemaTypeString(pair.Value), req,
				formatDefault(pair.Value), formatDescription(pair.Value))
		}
		ew.printf("\n")
	}
	return ew.err
}

// WriteMarkdown renders s to path atomically.
func WriteMarkdown(path string, s *jsonschema.Schema) error {
	return WriteFileAtomic(path, func(w io.Writer) error { return RenderMarkdown(w, s) })
}

// schemaTypeString returns a Go-flavored type name for a property.
func schemaTypeString(prop *jsonschema.Schema) string {
	if prop.Ref != "" {
		return refName(prop.Ref)
	}
	switch prop.Type {
	case "array":
		if prop.Items == nil {
			return "array"
		}
		if prop.Items.Ref != "" {
			return "[]" + refName(prop.Items.Ref)
		}
		return "[]" + prop.Items.Type
	case "object":
		if v := prop.AdditionalProperties; v != nil {
			if v.Ref != "" {
				return "map[string]" + refName(v.Ref)
			}
			return "map[string]" + v.Type
		}
		return "object"
	case "":
		return "any"
	default:
		return prop.Type
	}
}

// refName extracts the type name from a $ref such as "#/$defs/EngineConfig".
func refName(ref string) string {
	return ref[strings.LastIndex(ref, "/")+1:]
}

func formatDefault(prop *jsonschema.Schema) string {
	if prop.Default == nil {
		return ""
	}
	if list, ok := prop.Default.([]any); ok {
		parts := make([]string, len(list))
		for i, v := range list {
			parts[i] = fmt.Sprintf("%q", v)
		}
		return "`[" + strings.Join(parts, ", ") + "]`"
	}
	if s, ok := prop.Default.(string); ok {
		return fmt.Sprintf("`%q`", s)
	}
	return fmt.Sprintf("`%v`", prop.Default)
}

// formatDescription flattens the description into one table cell,
// appending enum values when present.
func formatDescription(prop *jsonschema.Schema) string {
	desc := prop.Description
	if len(prop.Enum) > 0 {
		vals := make([]string, len(prop.Enum))
		for i, v := range prop.Enum {
			vals[i] = fmt.Sprintf("`%v`", v)
		}
		desc = strings.TrimSpace(desc + " Enum: " + strings.Join(vals, ", "))
	}
	desc = strings.ReplaceAll(desc, "\n", " ")
	return strings.ReplaceAll(desc, "|", "\\|")
}
