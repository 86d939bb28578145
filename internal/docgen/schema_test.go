package docgen

import (
	"encoding/json"
	"testing"

	"github.com/modforge/cdengine/internal/config"
)

// defProperties extracts the properties map for a named $defs entry.
func defProperties(t *testing.T, raw map[string]any, defName string) map[string]any {
	t.Helper()
	defs, ok := raw["$defs"].(map[string]any)
	if !ok {
		t.Fatal("no $defs")
	}
	def, ok := defs[defName].(map[string]any)
	if !ok {
		t.Fatalf("no %s definition in $defs", defName)
	}
	props, ok := def["properties"].(map[string]any)
	if !ok {
		t.Fatalf("%s has no properties", defName)
	}
	return props
}

func roundTrip(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return raw
}

func TestGenerateSettingsSchema(t *testing.T) {
	s, err := GenerateSettingsSchema()
	if err != nil {
		t.Fatalf("GenerateSettingsSchema: %v", err)
	}
	raw := roundTrip(t, s)

	props := defProperties(t, raw, "Settings")
	for _, want := range []string{"engine", "backend", "problems"} {
		if _, ok := props[want]; !ok {
			t.Errorf("missing Settings property %q", want)
		}
	}
	for _, bad := range []string{"Engine", "Backend", "Problems"} {
		if _, ok := props[bad]; ok {
			t.Errorf("found Go-style property %q, expected TOML name", bad)
		}
	}

	engine := defProperties(t, raw, "EngineConfig")
	for _, want := range []string{"enabled", "scan_interval", "cooldown", "max_enhancements_per_file", "fix_timeout", "primary_language"} {
		if _, ok := engine[want]; !ok {
			t.Errorf("missing EngineConfig property %q", want)
		}
	}
}

func TestSettingsSchemaDefaults(t *testing.T) {
	s, err := GenerateSettingsSchema()
	if err != nil {
		t.Fatalf("GenerateSettingsSchema: %v", err)
	}
	raw := roundTrip(t, s)
	def := config.Default()

	engine := defProperties(t, raw, "EngineConfig")
	maxProp, _ := engine["max_enhancements_per_file"].(map[string]any)
	if got, _ := maxProp["default"].(float64); int(got) != def.Engine.MaxEnhancementsPerFile {
		t.Errorf("max_enhancements_per_file default = %v, want %d", maxProp["default"], def.Engine.MaxEnhancementsPerFile)
	}
	interval, _ := engine["scan_interval"].(map[string]any)
	if got := interval["default"]; got != def.Engine.ScanInterval {
		t.Errorf("scan_interval default = %v, want %q", got, def.Engine.ScanInterval)
	}
	enabled, _ := engine["enabled"].(map[string]any)
	if got := enabled["default"]; got != false {
		t.Errorf("enabled default = %v, want false", got)
	}

	problems := defProperties(t, raw, "ProblemsConfig")
	roots, _ := problems["roots"].(map[string]any)
	list, ok := roots["default"].([]any)
	if !ok || len(list) != 1 || list[0] != "src" {
		t.Errorf("roots default = %v, want [src]", roots["default"])
	}
}

func TestSettingsSchemaDescriptions(t *testing.T) {
	s, err := GenerateSettingsSchema()
	if err != nil {
		t.Fatalf("GenerateSettingsSchema: %v", err)
	}
	raw := roundTrip(t, s)
	engine := defProperties(t, raw, "EngineConfig")
	enabled, _ := engine["enabled"].(map[string]any)
	if desc, _ := enabled["description"].(string); desc == "" {
		t.Error("enabled has no description from Go comments")
	}
}

func TestSettingsSchemaEnum(t *testing.T) {
	s, err := GenerateSettingsSchema()
	if err != nil {
		t.Fatalf("GenerateSettingsSchema: %v", err)
	}
	raw := roundTrip(t, s)
	problems := defProperties(t, raw, "ProblemsConfig")
	source, _ := problems["source"].(map[string]any)
	enum, _ := source["enum"].([]any)
	if len(enum) != 2 {
		t.Fatalf("source enum = %v, want [exec remote]", enum)
	}
}

func TestGenerateEventSchema(t *testing.T) {
	s, err := GenerateEventSchema()
	if err != nil {
		t.Fatalf("GenerateEventSchema: %v", err)
	}
	raw := roundTrip(t, s)
	props := defProperties(t, raw, "Event")
	for _, want := range []string{"seq", "type", "ts", "actor"} {
		if _, ok := props[want]; !ok {
			t.Errorf("missing Event property %q", want)
		}
	}
}
