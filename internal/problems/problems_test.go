package problems

import (
	"encoding/json"
	"testing"
)

func TestFormat_Empty(t *testing.T) {
	if got := Format(nil); got != NoSpecificErrors {
		t.Errorf("Format(nil) = %q, want %q", got, NoSpecificErrors)
	}
	if got := Format([]Record{}); got != NoSpecificErrors {
		t.Errorf("Format(empty) = %q, want %q", got, NoSpecificErrors)
	}
}

func TestFormat_OneLinePerRecord(t *testing.T) {
	recs := []Record{
		{Message: "cannot find symbol", Severity: SeverityError, Line: 12, Column: 5},
		{Message: "  deprecated API  ", Severity: SeverityWarning, Line: 40},
		{Message: "missing mods.toml", Severity: SeverityError},
	}
	want := "ERROR Line 12, column 5: cannot find symbol\n" +
		"WARNING Line 40: deprecated API\n" +
		"ERROR: missing mods.toml"
	if got := Format(recs); got != want {
		t.Errorf("Format =\n%s\nwant\n%s", got, want)
	}
}

func TestSeverityJSON(t *testing.T) {
	data, err := json.Marshal(Record{Message: "m", Severity: SeverityWarning, Line: 2})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"message":"m","severity":"warning","line":2}` {
		t.Errorf("Marshal = %s", data)
	}

	var r Record
	if err := json.Unmarshal([]byte(`{"message":"m","severity":"WARN"}`), &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if r.Severity != SeverityWarning {
		t.Errorf("Severity = %v, want warning", r.Severity)
	}
}

func TestSeverityMissingDefaultsToError(t *testing.T) {
	recs, err := DecodeRecords([]byte(`[{"message":"m"}]`))
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if recs[0].Severity != SeverityError {
		t.Errorf("Severity = %v, want error", recs[0].Severity)
	}
}

func TestSeverityNormalized(t *testing.T) {
	tests := []struct {
		name string
		want Severity
	}{
		{"error", SeverityError},
		{"ERROR", SeverityError},
		{"Fatal", SeverityError},
		{"severe", SeverityError},
		{"", SeverityError},
		{"warning", SeverityWarning},
		{"WARN", SeverityWarning},
		{"info", SeverityWarning},
		{"hint", SeverityWarning},
		{"note", SeverityWarning},
		{"fatal-ish", SeverityWarning},
	}
	for _, tt := range tests {
		if got := ParseSeverity(tt.name); got != tt.want {
			t.Errorf("ParseSeverity(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDecodeRecordsKeepsUnknownSeverities(t *testing.T) {
	recs, err := DecodeRecords([]byte(`[{"message":"a","severity":"error"},{"message":"b","severity":"hint"}]`))
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Severity != SeverityError || recs[1].Severity != SeverityWarning {
		t.Errorf("severities = %v, %v; want error, warning", recs[0].Severity, recs[1].Severity)
	}
}
