// Package doctor runs health checks against a project's engine setup:
// the .cde state directory, engine.toml, the access token, the backend,
// the problem source and the event log. Checks stream their results and
// some can repair what they find with --fix.
package doctor

// CheckStatus represents the outcome of a health check.
type CheckStatus int

const (
	// StatusOK means the check passed.
	StatusOK CheckStatus = iota
	// StatusWarning means the engine can run but something is degraded.
	StatusWarning
	// StatusError means the engine cannot run correctly.
	StatusError
)

func (s CheckStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarning:
		return "warning"
	default:
		return "error"
	}
}

// Check is a single diagnostic check, run in registration order.
type Check interface {
	// Name returns a short, unique identifier such as "settings".
	Name() string
	// Run executes the check and returns a result.
	Run(ctx *CheckContext) *CheckResult
	// CanFix reports whether this check supports automatic remediation.
	CanFix() bool
	// Fix attempts to remediate what Run found. Only called when CanFix
	// returns true and Run returned a non-OK status.
	Fix(ctx *CheckContext) error
}

// CheckContext carries shared state for all checks during a doctor run.
type CheckContext struct {
	// ProjectRoot is the absolute path to the project directory.
	ProjectRoot string
	// Verbose enables extra detail lines in the output.
	Verbose bool
}

// CheckResult holds the outcome of a single check execution.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	// Details holds extra lines shown only in verbose mode.
	Details []string
	// FixHint is shown when the check fails and was not fixed.
	FixHint string
	// Fixed is true when --fix remediated the issue.
	Fixed bool
}

func ok(name, msg string) *CheckResult {
	return &CheckResult{Name: name, Status: StatusOK, Message: msg}
}

func warn(name, msg, hint string) *CheckResult {
	return &CheckResult{Name: name, Status: StatusWarning, Message: msg, FixHint: hint}
}

func fail(name, msg, hint string) *CheckResult {
	return &CheckResult{Name: name, Status: StatusError, Message: msg, FixHint: hint}
}
