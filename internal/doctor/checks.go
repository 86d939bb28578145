package doctor

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/modforge/cdengine/internal/auth"
	"github.com/modforge/cdengine/internal/config"
	"github.com/modforge/cdengine/internal/fsys"
)

// noFix is embedded by checks that cannot remediate.
type noFix struct{}

func (noFix) CanFix() bool              { return false }
func (noFix) Fix(_ *CheckContext) error { return nil }

// StateDirCheck verifies the .cde state directory exists.
type StateDirCheck struct{}

// Name returns the check identifier.
func (c *StateDirCheck) Name() string { return "state-dir" }

// Run checks for the .cde directory.
func (c *StateDirCheck) Run(ctx *CheckContext) *CheckResult {
	dir := config.StateDir(ctx.ProjectRoot)
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		return fail(c.Name(), config.DirName+"/ directory missing", "run cde init")
	}
	return ok(c.Name(), config.DirName+"/ present")
}

// CanFix returns true; the directory can be created.
func (c *StateDirCheck) CanFix() bool { return true }

// Fix creates the state directory.
func (c *StateDirCheck) Fix(ctx *CheckContext) error {
	return os.MkdirAll(config.StateDir(ctx.ProjectRoot), 0o755)
}

// SettingsCheck verifies engine.toml exists, parses and validates.
type SettingsCheck struct{}

// Name returns the check identifier.
func (c *SettingsCheck) Name() string { return "settings" }

// Run loads engine.toml.
func (c *SettingsCheck) Run(ctx *CheckContext) *CheckResult {
	path := config.Path(ctx.ProjectRoot)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fail(c.Name(), config.FileName+" missing", "run cde init or cde doctor --fix")
	}
	s, err := config.Load(fsys.OSFS{}, path)
	if err != nil {
		return fail(c.Name(), err.Error(), "fix the file by hand; --fix never overwrites an existing engine.toml")
	}
	state := "disabled"
	if s.Engine.Enabled {
		state = "enabled"
	}
	r := ok(c.Name(), fmt.Sprintf("%s loaded (%s, cap %d per file, source %s)",
		config.FileName, state, s.Engine.MaxEnhancements(), s.Problems.SourceName()))
	r.Details = []string{
		"scan interval: " + s.Engine.ScanIntervalDuration().String(),
		"cooldown: " + s.Engine.CooldownDuration().String(),
		"fix timeout: " + s.Engine.FixTimeoutDuration().String(),
	}
	return r
}

// CanFix returns true; a missing file is replaced by the defaults.
func (c *SettingsCheck) CanFix() bool { return true }

// Fix writes the default settings when engine.toml is missing. An
// existing file is left alone even when it does not parse.
func (c *SettingsCheck) Fix(ctx *CheckContext) error {
	path := config.Path(ctx.ProjectRoot)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s exists; not overwriting", path)
	}
	def := config.Default()
	data, err := def.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(config.StateDir(ctx.ProjectRoot), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// TokenCheck verifies an access token is available.
type TokenCheck struct {
	noFix
	auth auth.Provider
}

// NewTokenCheck creates a check against the given token source.
func NewTokenCheck(a auth.Provider) *TokenCheck {
	return &TokenCheck{auth: a}
}

// Name returns the check identifier.
func (c *TokenCheck) Name() string { return "auth-token" }

// Run reports whether a token is present. A missing token is a warning:
// the engine starts but refuses to scan.
func (c *TokenCheck) Run(_ *CheckContext) *CheckResult {
	if !c.auth.IsAuthenticated() {
		return warn(c.Name(), "no access token (engine will not scan)",
			fmt.Sprintf("export %s or write %s/%s", auth.EnvToken, config.DirName, auth.TokenFile))
	}
	return ok(c.Name(), "access token present")
}

// DialFunc opens a TCP connection. Defaults to net.DialTimeout; tests can
// override it.
type DialFunc func(network, addr string, timeout time.Duration) (net.Conn, error)

// BackendCheck verifies the backend URL is well formed and reachable.
type BackendCheck struct {
	noFix
	backend config.BackendConfig
	dial    DialFunc
}

// NewBackendCheck creates a check for the [backend] settings. A nil dial
// uses net.DialTimeout.
func NewBackendCheck(b config.BackendConfig, dial DialFunc) *BackendCheck {
	if dial == nil {
		dial = net.DialTimeout
	}
	return &BackendCheck{backend: b, dial: dial}
}

// Name returns the check identifier.
func (c *BackendCheck) Name() string { return "backend" }

// Run parses the base URL and dials its host.
func (c *BackendCheck) Run(_ *CheckContext) *CheckResult {
	raw := c.backend.BaseURL()
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fail(c.Name(), fmt.Sprintf("invalid backend url %q", raw), "set backend.url to an http(s) URL")
	}
	addr := u.Host
	if u.Port() == "" {
		port := "443"
		if u.Scheme == "http" {
			port = "80"
		}
		addr = net.JoinHostPort(u.Hostname(), port)
	}
	conn, err := c.dial("tcp", addr, c.backend.ConnectTimeoutDuration())
	if err != nil {
		r := warn(c.Name(), fmt.Sprintf("%s not reachable", addr), "check network access to the backend")
		r.Details = []string{err.Error()}
		return r
	}
	conn.Close() //nolint:errcheck // probe only
	r := ok(c.Name(), "reachable at "+addr)
	r.Details = []string{"fix endpoint: " + c.backend.FixURL()}
	return r
}

// ProblemSourceCheck verifies the configured problem source can run.
type ProblemSourceCheck struct {
	noFix
	problems config.ProblemsConfig
}

// NewProblemSourceCheck creates a check for the [problems] settings.
func NewProblemSourceCheck(p config.ProblemsConfig) *ProblemSourceCheck {
	return &ProblemSourceCheck{problems: p}
}

// Name returns the check identifier.
func (c *ProblemSourceCheck) Name() string { return "problem-source" }

// Run checks the diagnostics script when the source is exec.
func (c *ProblemSourceCheck) Run(ctx *CheckContext) *CheckResult {
	if c.problems.SourceName() != "exec" {
		return ok(c.Name(), "remote source via backend")
	}
	script := c.problems.ScriptPath(ctx.ProjectRoot)
	fi, err := os.Stat(script)
	if err != nil {
		return fail(c.Name(), "diagnostics script not found: "+script, "set problems.script or create the script")
	}
	if fi.IsDir() || fi.Mode().Perm()&0o111 == 0 {
		return fail(c.Name(), "diagnostics script not executable: "+script, "chmod +x "+script)
	}
	return ok(c.Name(), "exec script "+script)
}

// EventsLogCheck verifies .cde/events.jsonl exists and is writable.
type EventsLogCheck struct{}

// Name returns the check identifier.
func (c *EventsLogCheck) Name() string { return "events-log" }

// Run opens the log for append.
func (c *EventsLogCheck) Run(ctx *CheckContext) *CheckResult {
	path := config.EventsPath(ctx.ProjectRoot)
	fi, err := os.Stat(path)
	if err != nil {
		return warn(c.Name(), "events.jsonl not found (created when the engine starts)", "")
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, fi.Mode())
	if err != nil {
		return warn(c.Name(), fmt.Sprintf("events.jsonl not writable: %v", err), "check file permissions")
	}
	f.Close() //nolint:errcheck // probe only
	return ok(c.Name(), fmt.Sprintf("events.jsonl writable (%d bytes)", fi.Size()))
}

// CanFix returns true; a missing log is created empty.
func (c *EventsLogCheck) CanFix() bool { return true }

// Fix creates an empty event log.
func (c *EventsLogCheck) Fix(ctx *CheckContext) error {
	if err := os.MkdirAll(config.StateDir(ctx.ProjectRoot), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(config.EventsPath(ctx.ProjectRoot), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// EngineCheck reports whether an engine holds the project lock. Both
// states are valid.
type EngineCheck struct {
	noFix
	running bool
}

// NewEngineCheck creates an informational check; running is computed by
// the caller with [IsEngineRunning].
func NewEngineCheck(running bool) *EngineCheck {
	return &EngineCheck{running: running}
}

// Name returns the check identifier.
func (c *EngineCheck) Name() string { return "engine" }

// Run reports engine status.
func (c *EngineCheck) Run(_ *CheckContext) *CheckResult {
	if c.running {
		return ok(c.Name(), "engine running (cde stop to stop it)")
	}
	return ok(c.Name(), "engine not running")
}

// IsEngineRunning probes the engine lock file. If the lock cannot be
// taken, another process holds it.
func IsEngineRunning(projectRoot string) bool {
	if _, err := os.Stat(config.StateDir(projectRoot)); err != nil {
		return false
	}
	lk := flock.New(config.LockPath(projectRoot))
	locked, err := lk.TryLock()
	if err != nil {
		return false
	}
	if !locked {
		return true
	}
	lk.Unlock() //nolint:errcheck // probe only
	return false
}

// Standard returns the checks `cde doctor` runs for a project, using s
// for the backend and problem source checks.
func Standard(root string, s *config.Settings, a auth.Provider) []Check {
	return []Check{
		&StateDirCheck{},
		&SettingsCheck{},
		NewTokenCheck(a),
		NewBackendCheck(s.Backend, nil),
		NewProblemSourceCheck(s.Problems),
		&EventsLogCheck{},
		NewEngineCheck(IsEngineRunning(root)),
	}
}
