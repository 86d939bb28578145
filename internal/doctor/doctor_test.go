package doctor

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// scriptedCheck returns a fixed result until Fix succeeds.
type scriptedCheck struct {
	name    string
	status  CheckStatus
	details []string
	hint    string
	canFix  bool
	fixErr  error

	fixed bool
	runs  int
}

func (s *scriptedCheck) Name() string { return s.name }

func (s *scriptedCheck) Run(_ *CheckContext) *CheckResult {
	s.runs++
	st := s.status
	if s.fixed {
		st = StatusOK
	}
	return &CheckResult{Name: s.name, Status: st, Message: "msg", Details: s.details, FixHint: s.hint}
}

func (s *scriptedCheck) CanFix() bool { return s.canFix }

func (s *scriptedCheck) Fix(_ *CheckContext) error {
	if s.fixErr != nil {
		return s.fixErr
	}
	s.fixed = true
	return nil
}

func run(d *Doctor, verbose, fix bool) (*Report, string) {
	var buf bytes.Buffer
	r := d.Run(&CheckContext{ProjectRoot: "/proj", Verbose: verbose}, &buf, fix)
	return r, buf.String()
}

func TestDoctor_Counts(t *testing.T) {
	d := &Doctor{}
	d.Register(
		&scriptedCheck{name: "a", status: StatusOK},
		&scriptedCheck{name: "b", status: StatusWarning},
		&scriptedCheck{name: "c", status: StatusError},
	)
	r, out := run(d, false, false)
	if r.Passed != 1 || r.Warned != 1 || r.Failed != 1 || r.Fixed != 0 {
		t.Errorf("report = %+v", r)
	}
	if r.Healthy() {
		t.Error("Healthy() = true with a failed check")
	}
	for _, want := range []string{"✓ a: msg", "⚠ b: msg", "✗ c: msg"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDoctor_Fix(t *testing.T) {
	c := &scriptedCheck{name: "settings", status: StatusError, canFix: true, hint: "run cde init"}
	d := &Doctor{}
	d.Register(c)

	r, out := run(d, false, true)
	if r.Fixed != 1 || r.Passed != 1 || r.Failed != 0 {
		t.Errorf("report = %+v, want fixed counted as passed", r)
	}
	if c.runs != 2 {
		t.Errorf("runs = %d, want 2 (re-run after fix)", c.runs)
	}
	if !strings.Contains(out, "(fixed)") || strings.Contains(out, "hint:") {
		t.Errorf("output = %q", out)
	}
}

func TestDoctor_FixNotRequested(t *testing.T) {
	c := &scriptedCheck{name: "x", status: StatusWarning, canFix: true}
	d := &Doctor{}
	d.Register(c)
	r, _ := run(d, false, false)
	if r.Fixed != 0 || r.Warned != 1 || c.fixed {
		t.Errorf("report = %+v fixed=%v", r, c.fixed)
	}
}

func TestDoctor_FixFails(t *testing.T) {
	d := &Doctor{}
	d.Register(&scriptedCheck{name: "x", status: StatusError, canFix: true, fixErr: errors.New("read-only fs")})
	r, out := run(d, true, true)
	if r.Fixed != 0 || r.Failed != 1 {
		t.Errorf("report = %+v", r)
	}
	if !strings.Contains(out, "fix failed: read-only fs") {
		t.Errorf("verbose output missing fix error: %q", out)
	}
}

func TestDoctor_Details(t *testing.T) {
	d := &Doctor{}
	d.Register(&scriptedCheck{name: "x", status: StatusOK, details: []string{"cooldown: 2m0s"}})

	if _, out := run(d, true, false); !strings.Contains(out, "cooldown: 2m0s") {
		t.Errorf("verbose output missing details: %q", out)
	}
	if _, out := run(d, false, false); strings.Contains(out, "cooldown") {
		t.Errorf("non-verbose output shows details: %q", out)
	}
}

func TestDoctor_HintOnlyWhenNotOK(t *testing.T) {
	d := &Doctor{}
	d.Register(
		&scriptedCheck{name: "bad", status: StatusError, hint: "chmod +x"},
		&scriptedCheck{name: "good", status: StatusOK, hint: "unused"},
	)
	_, out := run(d, false, false)
	if !strings.Contains(out, "hint: chmod +x") {
		t.Errorf("missing hint: %q", out)
	}
	if strings.Contains(out, "unused") {
		t.Errorf("hint shown for passing check: %q", out)
	}
}

func TestPrintSummary(t *testing.T) {
	tests := []struct {
		name   string
		report *Report
		want   string
	}{
		{"all pass", &Report{Passed: 3}, "\n3 passed\n"},
		{"mixed", &Report{Passed: 2, Warned: 1, Failed: 1}, "2 passed, 1 warnings, 1 failed"},
		{"with fixes", &Report{Passed: 2, Fixed: 1}, "2 passed, 1 fixed"},
		{"empty", &Report{}, "No checks ran."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			PrintSummary(&buf, tt.report)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("summary = %q, want to contain %q", buf.String(), tt.want)
			}
		})
	}
}
