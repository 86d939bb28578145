// Package problems is the Problem Source Adapter. It defines the
// diagnostics collaborator interface, the normalized problem record and
// the formatting that turns a file's problems into fixer context.
//
// Diagnostics are best-effort and eventually consistent. A provider that
// is still computing results for a file returns [ErrNotReady]; the scan
// treats that file as clean for the current tick.
package problems

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotReady is returned by [Provider.ProblemsFor] when diagnostics for
// the file are still being computed.
var ErrNotReady = errors.New("diagnostics not ready")

// NoSpecificErrors is the formatted text for an empty record list, so
// the fixer backend always receives non-empty context.
const NoSpecificErrors = "no specific errors detected"

// FileID identifies a file by its slash-separated path relative to the
// project root.
type FileID string

// Severity classifies a problem record.
type Severity int

const (
	// SeverityError is a compile error.
	SeverityError Severity = iota
	// SeverityWarning is a diagnostic that does not block compilation.
	SeverityWarning
)

// String returns "error" or "warning".
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// MarshalText encodes the severity as its name.
func (s Severity) MarshalText() ([]byte, error) {
	switch s {
	case SeverityError, SeverityWarning:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("unknown severity %d", int(s))
	}
}

// UnmarshalText never fails. Hosts name severities freely, so fatal and
// severe map to SeverityError, an empty value decodes as an error, and
// anything else (info, hint, note, ...) is a warning.
func (s *Severity) UnmarshalText(b []byte) error {
	*s = ParseSeverity(string(b))
	return nil
}

// ParseSeverity normalizes a host severity name, ignoring case.
func ParseSeverity(name string) Severity {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "error", "err", "fatal", "severe":
		return SeverityError
	default:
		return SeverityWarning
	}
}

// Record is one normalized problem. Line and Column are 1-based; zero
// means the host did not report a position.
type Record struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
}

// String renders the record as one human-readable line.
func (r Record) String() string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(r.Severity.String()))
	switch {
	case r.Line > 0 && r.Column > 0:
		fmt.Fprintf(&b, " Line %d, column %d", r.Line, r.Column)
	case r.Line > 0:
		fmt.Fprintf(&b, " Line %d", r.Line)
	}
	b.WriteString(": ")
	b.WriteString(strings.TrimSpace(r.Message))
	return b.String()
}

// File is one entry of a [ScanResult].
type File struct {
	ID       FileID   `json:"file"`
	Problems []Record `json:"problems"`
}

// Provider is the diagnostics collaborator.
type Provider interface {
	// ListProblemFiles returns the files the host currently reports
	// problems for.
	ListProblemFiles(ctx context.Context) ([]FileID, error)
	// ProblemsFor returns the problems for one file, or ErrNotReady.
	ProblemsFor(ctx context.Context, file FileID) ([]Record, error)
}

// Format concatenates one line per record. Empty input yields
// [NoSpecificErrors].
func Format(records []Record) string {
	if len(records) == 0 {
		return NoSpecificErrors
	}
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, r.String())
	}
	return strings.Join(lines, "\n")
}

// DecodeRecords decodes a JSON array of records. Shared by providers that
// receive diagnostics as JSON.
func DecodeRecords(data []byte) ([]Record, error) {
	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decoding problem records: %w", err)
	}
	return recs, nil
}
