// Package config handles loading and parsing engine.toml settings files.
package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/modforge/cdengine/internal/fsys"
)

const (
	// DirName is the per-project state directory.
	DirName = ".cde"
	// FileName is the settings file inside [DirName].
	FileName = "engine.toml"

	// EnvBackendURL overrides [BackendConfig.URL] when set.
	EnvBackendURL = "CDE_BACKEND_URL"
)

// Defaults applied when a field is empty or zero.
const (
	DefaultScanInterval           = 45 * time.Second
	DefaultCooldown               = 2 * time.Minute
	DefaultMaxEnhancementsPerFile = 3
	DefaultFixTimeout             = 45 * time.Second
	DefaultPrimaryLanguage        = "java"

	DefaultBackendURL     = "https://modforge.ai"
	DefaultFixPath        = "/api/fix"
	DefaultCompilePath    = "/api/compile"
	DefaultMaxAttempts    = 3
	DefaultBaseDelay      = time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultRequestTimeout = 30 * time.Second

	DefaultProblemSource = "exec"
	DefaultProblemScript = ".cde/diagnostics.sh"
	DefaultScriptTimeout = 30 * time.Second
)

// Settings is the top-level engine configuration for one project.
type Settings struct {
	Engine   EngineConfig   `toml:"engine"`
	Backend  BackendConfig  `toml:"backend,omitempty"`
	Problems ProblemsConfig `toml:"problems,omitempty"`
}

// EngineConfig controls the scheduler loop and the enhancement budget.
type EngineConfig struct {
	// Enabled turns continuous development on. The loop never starts
	// while this is false.
	Enabled bool `toml:"enabled"`
	// ScanInterval is the fixed delay between the end of one tick and
	// the start of the next. Duration string. Default "45s".
	ScanInterval string `toml:"scan_interval,omitempty"`
	// Cooldown is the idle period after a tick that applied a fix.
	// Duration string. Default "2m".
	Cooldown string `toml:"cooldown,omitempty"`
	// MaxEnhancementsPerFile caps automatic rewrites of one file until an
	// explicit reset. Default 3.
	MaxEnhancementsPerFile int `toml:"max_enhancements_per_file,omitempty"`
	// FixTimeout bounds one Fix Invoker call, retries included.
	// Duration string. Default "45s".
	FixTimeout string `toml:"fix_timeout,omitempty"`
	// PrimaryLanguage is the language hint for unrecognized file
	// extensions. Default "java".
	PrimaryLanguage string `toml:"primary_language,omitempty"`
}

// BackendConfig locates the AI fix backend and tunes the retry client.
type BackendConfig struct {
	// URL is the backend base URL. Overridden by CDE_BACKEND_URL.
	URL string `toml:"url,omitempty"`
	// FixPath is appended to URL for fix requests. Default "/api/fix".
	FixPath string `toml:"fix_path,omitempty"`
	// CompilePath is appended to URL for the remote problem source.
	// Default "/api/compile".
	CompilePath string `toml:"compile_path,omitempty"`
	// MaxAttempts is the total number of network attempts per call.
	// Default 3.
	MaxAttempts int `toml:"max_attempts,omitempty"`
	// BaseDelay is the linear backoff unit: attempt n waits n*BaseDelay.
	// Duration string. Default "1s".
	BaseDelay string `toml:"base_delay,omitempty"`
	// ConnectTimeout bounds dialing. Duration string. Default "10s".
	ConnectTimeout string `toml:"connect_timeout,omitempty"`
	// RequestTimeout bounds one attempt. Duration string. Default "30s".
	RequestTimeout string `toml:"request_timeout,omitempty"`
}

// ProblemsConfig selects and tunes the Problem Source Adapter strategy.
type ProblemsConfig struct {
	// Source is "exec" (local diagnostics script, default) or "remote"
	// (backend compile API).
	Source string `toml:"source,omitempty" jsonschema:"enum=exec,enum=remote"`
	// Script is the diagnostics script for the exec source, relative to
	// the project root. Default ".cde/diagnostics.sh".
	Script string `toml:"script,omitempty"`
	// Timeout bounds one script invocation. Duration string. Default "30s".
	Timeout string `toml:"timeout,omitempty"`
	// Roots are the directories walked by the remote source, relative to
	// the project root. Default ["src"].
	Roots []string `toml:"roots,omitempty"`
}

// Default returns fully populated settings. This is the file written by
// "cde init" and "cde doctor --fix".
func Default() Settings {
	return Settings{
		Engine: EngineConfig{
			Enabled:                false,
			ScanInterval:           DefaultScanInterval.String(),
			Cooldown:               DefaultCooldown.String(),
			MaxEnhancementsPerFile: DefaultMaxEnhancementsPerFile,
			FixTimeout:             DefaultFixTimeout.String(),
			PrimaryLanguage:        DefaultPrimaryLanguage,
		},
		Backend: BackendConfig{
			URL:            DefaultBackendURL,
			FixPath:        DefaultFixPath,
			CompilePath:    DefaultCompilePath,
			MaxAttempts:    DefaultMaxAttempts,
			BaseDelay:      DefaultBaseDelay.String(),
			ConnectTimeout: DefaultConnectTimeout.String(),
			RequestTimeout: DefaultRequestTimeout.String(),
		},
		Problems: ProblemsConfig{
			Source:  DefaultProblemSource,
			Script:  DefaultProblemScript,
			Timeout: DefaultScriptTimeout.String(),
			Roots:   []string{"src"},
		},
	}
}

// Path returns the settings file path for a project root.
func Path(projectRoot string) string {
	return filepath.Join(projectRoot, DirName, FileName)
}

// StateDir returns the .cde directory for a project root.
func StateDir(projectRoot string) string {
	return filepath.Join(projectRoot, DirName)
}

// LockPath is the flock file held by a running engine.
func LockPath(projectRoot string) string {
	return filepath.Join(projectRoot, DirName, "engine.lock")
}

// SocketPath is the engine's unix control socket.
func SocketPath(projectRoot string) string {
	return filepath.Join(projectRoot, DirName, "engine.sock")
}

// EventsPath is the engine's JSONL event log.
func EventsPath(projectRoot string) string {
	return filepath.Join(projectRoot, DirName, "events.jsonl")
}

// Marshal encodes Settings to TOML bytes.
func (s *Settings) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.Indent = ""
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("marshaling settings: %w", err)
	}
	return buf.Bytes(), nil
}

// Load reads and parses an engine.toml file at the given path using the
// provided filesystem. All file I/O goes through fs for testability.
func Load(fs fsys.FS, path string) (*Settings, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading settings %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes TOML data into Settings and validates it.
func Parse(data []byte) (*Settings, error) {
	var s Settings
	if _, err := toml.Decode(string(data), &s); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}
	if err := Validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks Settings for structural correctness. Empty fields are
// valid and resolve to defaults.
func Validate(s *Settings) error {
	durations := []struct {
		name, val string
	}{
		{"engine.scan_interval", s.Engine.ScanInterval},
		{"engine.cooldown", s.Engine.Cooldown},
		{"engine.fix_timeout", s.Engine.FixTimeout},
		{"backend.base_delay", s.Backend.BaseDelay},
		{"backend.connect_timeout", s.Backend.ConnectTimeout},
		{"backend.request_timeout", s.Backend.RequestTimeout},
		{"problems.timeout", s.Problems.Timeout},
	}
	for _, d := range durations {
		if d.val == "" {
			continue
		}
		v, err := time.ParseDuration(d.val)
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q: %w", d.name, d.val, err)
		}
		if v < 0 {
			return fmt.Errorf("%s: must not be negative, got %q", d.name, d.val)
		}
	}
	if s.Engine.MaxEnhancementsPerFile < 0 {
		return fmt.Errorf("engine.max_enhancements_per_file: must not be negative, got %d", s.Engine.MaxEnhancementsPerFile)
	}
	if s.Backend.MaxAttempts < 0 {
		return fmt.Errorf("backend.max_attempts: must not be negative, got %d", s.Backend.MaxAttempts)
	}
	switch s.Problems.Source {
	case "", "exec", "remote":
	default:
		return fmt.Errorf("problems.source: unknown source %q (want \"exec\" or \"remote\")", s.Problems.Source)
	}
	return nil
}

// Revision returns a content hash of raw settings bytes. The watcher
// reloads only when the revision changes.
func Revision(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

// durationOr parses s, returning def when s is empty or invalid.
func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// ScanIntervalDuration returns the tick delay.
func (e EngineConfig) ScanIntervalDuration() time.Duration {
	d := durationOr(e.ScanInterval, DefaultScanInterval)
	if d == 0 {
		return DefaultScanInterval
	}
	return d
}

// CooldownDuration returns the post-fix cooldown. Zero disables it.
func (e EngineConfig) CooldownDuration() time.Duration {
	return durationOr(e.Cooldown, DefaultCooldown)
}

// FixTimeoutDuration returns the per-file Fix Invoker budget.
func (e EngineConfig) FixTimeoutDuration() time.Duration {
	d := durationOr(e.FixTimeout, DefaultFixTimeout)
	if d == 0 {
		return DefaultFixTimeout
	}
	return d
}

// MaxEnhancements returns the per-file cap.
func (e EngineConfig) MaxEnhancements() int {
	if e.MaxEnhancementsPerFile <= 0 {
		return DefaultMaxEnhancementsPerFile
	}
	return e.MaxEnhancementsPerFile
}

// Language returns the primary-language fallback hint.
func (e EngineConfig) Language() string {
	if e.PrimaryLanguage == "" {
		return DefaultPrimaryLanguage
	}
	return e.PrimaryLanguage
}

// BaseURL returns the backend URL, honoring CDE_BACKEND_URL.
func (b BackendConfig) BaseURL() string {
	if v := os.Getenv(EnvBackendURL); v != "" {
		return v
	}
	if b.URL == "" {
		return DefaultBackendURL
	}
	return b.URL
}

// FixURL returns the absolute fix endpoint.
func (b BackendConfig) FixURL() string {
	p := b.FixPath
	if p == "" {
		p = DefaultFixPath
	}
	return joinURL(b.BaseURL(), p)
}

// CompileURL returns the absolute compile endpoint.
func (b BackendConfig) CompileURL() string {
	p := b.CompilePath
	if p == "" {
		p = DefaultCompilePath
	}
	return joinURL(b.BaseURL(), p)
}

// Attempts returns the total attempt bound for the retry client.
func (b BackendConfig) Attempts() int {
	if b.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return b.MaxAttempts
}

// BaseDelayDuration returns the linear backoff unit.
func (b BackendConfig) BaseDelayDuration() time.Duration {
	return durationOr(b.BaseDelay, DefaultBaseDelay)
}

// ConnectTimeoutDuration returns the dial timeout.
func (b BackendConfig) ConnectTimeoutDuration() time.Duration {
	return durationOr(b.ConnectTimeout, DefaultConnectTimeout)
}

// RequestTimeoutDuration returns the per-attempt timeout.
func (b BackendConfig) RequestTimeoutDuration() time.Duration {
	return durationOr(b.RequestTimeout, DefaultRequestTimeout)
}

// SourceName returns the problem source strategy.
func (p ProblemsConfig) SourceName() string {
	if p.Source == "" {
		return DefaultProblemSource
	}
	return p.Source
}

// ScriptPath returns the diagnostics script path resolved against root.
func (p ProblemsConfig) ScriptPath(root string) string {
	s := p.Script
	if s == "" {
		s = DefaultProblemScript
	}
	if filepath.IsAbs(s) {
		return s
	}
	return filepath.Join(root, s)
}

// TimeoutDuration returns the per-invocation script timeout.
func (p ProblemsConfig) TimeoutDuration() time.Duration {
	d := durationOr(p.Timeout, DefaultScriptTimeout)
	if d == 0 {
		return DefaultScriptTimeout
	}
	return d
}

// RootDirs returns the remote-source walk roots resolved against root.
func (p ProblemsConfig) RootDirs(root string) []string {
	roots := p.Roots
	if len(roots) == 0 {
		roots = []string{"src"}
	}
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		if filepath.IsAbs(r) {
			out = append(out, r)
			continue
		}
		out = append(out, filepath.Join(root, r))
	}
	return out
}

func joinURL(base, path string) string {
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	if path == "" || path[0] != '/' {
		path = "/" + path
	}
	return base + path
}
