// Package exec implements [problems.Provider] by delegating each
// operation to a user-supplied diagnostics script via fork/exec. The
// script receives the operation name as its first argument and replies
// with JSON on stdout:
//
//	script ensure-running        start any background compiler daemon (once)
//	script list                  ["src/main/java/mod/Mod.java", ...]
//	script problems <file>       [{"message":..., "severity":..., "line":..., "column":...}]
//
// Exit status 2 means the operation is unknown and is treated as an
// empty reply. Exit status 75 (EX_TEMPFAIL) from "problems" means the
// diagnostics for that file are still being computed.
package exec //nolint:revive // internal package, always imported with alias

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/modforge/cdengine/internal/problems"
	"github.com/modforge/cdengine/internal/telemetry"
)

const (
	exitUnknownOp = 2
	exitNotReady  = 75

	// EnvProjectRoot tells the script which project to diagnose.
	EnvProjectRoot = "CDE_PROJECT_ROOT"

	maxStderrInError = 512
)

// Provider implements [problems.Provider] by delegating to a script.
type Provider struct {
	script  string
	root    string
	timeout time.Duration
	ready   sync.Once // ensure-running called once
	stderr  io.Writer
}

// NewProvider returns an exec problems provider that runs script in the
// project root. A zero timeout defaults to 30s.
func NewProvider(script, projectRoot string, timeout time.Duration, stderr io.Writer) *Provider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Provider{
		script:  script,
		root:    projectRoot,
		timeout: timeout,
		stderr:  stderr,
	}
}

// ListProblemFiles delegates to: script list
func (p *Provider) ListProblemFiles(ctx context.Context) ([]problems.FileID, error) {
	p.ensureRunning(ctx)
	out, err := p.run(ctx, "list")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	var files []string
	if err := json.Unmarshal([]byte(out), &files); err != nil {
		return nil, fmt.Errorf("exec problems provider: unmarshal file list: %w", err)
	}
	ids := make([]problems.FileID, 0, len(files))
	for _, f := range files {
		ids = append(ids, problems.FileID(f))
	}
	return ids, nil
}

// ProblemsFor delegates to: script problems <file>
func (p *Provider) ProblemsFor(ctx context.Context, file problems.FileID) ([]problems.Record, error) {
	p.ensureRunning(ctx)
	out, err := p.run(ctx, "problems", string(file))
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	recs, err := problems.DecodeRecords([]byte(out))
	if err != nil {
		return nil, fmt.Errorf("exec problems provider: %w", err)
	}
	return recs, nil
}

// ensureRunning calls "ensure-running" on the script once per provider
// lifetime. Failures are logged; the next operation reports them.
func (p *Provider) ensureRunning(ctx context.Context) {
	p.ready.Do(func() {
		if _, err := p.run(ctx, "ensure-running"); err != nil && !errors.Is(err, problems.ErrNotReady) {
			p.logErr("ensure-running: %v", err)
		}
	})
}

// run executes the script with the given args. Returns the trimmed
// stdout on success, "" for exit 2 and ErrNotReady for exit 75.
func (p *Provider) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.script, args...)
	cmd.WaitDelay = 2 * time.Second
	cmd.Dir = p.root
	cmd.Env = append(os.Environ(), EnvProjectRoot+"="+p.root)
	cmd.Env = append(cmd.Env, telemetry.OTELEnvForSubprocess()...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			switch exitErr.ExitCode() {
			case exitUnknownOp:
				return "", nil
			case exitNotReady:
				return "", problems.ErrNotReady
			}
		}
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = err.Error()
		}
		return "", fmt.Errorf("exec problems provider %s %s: %s",
			p.script, strings.Join(args, " "), telemetry.Truncate(errMsg, maxStderrInError))
	}

	return strings.TrimSpace(stdout.String()), nil
}

// logErr logs an error to stderr (best-effort).
func (p *Provider) logErr(format string, args ...any) {
	if p.stderr != nil {
		fmt.Fprintf(p.stderr, "problems exec: "+format+"\n", args...) //nolint:errcheck // best-effort stderr
	}
}

// Compile-time interface check.
var _ problems.Provider = (*Provider)(nil)
