package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/modforge/cdengine/internal/auth"
	"github.com/modforge/cdengine/internal/config"
	"github.com/modforge/cdengine/internal/engine"
	"github.com/modforge/cdengine/internal/events"
	"github.com/modforge/cdengine/internal/fixer"
	"github.com/modforge/cdengine/internal/fsys"
	"github.com/modforge/cdengine/internal/httpretry"
	"github.com/modforge/cdengine/internal/problems"
	problemsexec "github.com/modforge/cdengine/internal/problems/exec"
	"github.com/modforge/cdengine/internal/problems/remote"
	"github.com/modforge/cdengine/internal/writeback"
)

// engineRuntime is one project's engine with the collaborators it owns.
type engineRuntime struct {
	root     string
	settings *config.Watcher
	auth     auth.Provider
	rec      events.Recorder
	exec     *writeback.Executor
	eng      *engine.Engine
}

// newProblemsProvider selects the problem source named in settings.
func newProblemsProvider(root string, s *config.Settings, hc *httpretry.Client, a auth.Provider, stderr io.Writer) (problems.Provider, error) {
	switch s.Problems.SourceName() {
	case "exec":
		return problemsexec.NewProvider(s.Problems.ScriptPath(root), root, s.Problems.TimeoutDuration(), stderr), nil
	case "remote":
		return remote.NewProvider(remote.Config{
			URL:         s.Backend.CompileURL(),
			ProjectRoot: root,
			Roots:       s.Problems.RootDirs(root),
			ProjectName: filepath.Base(root),
		}, hc, a, fsys.OSFS{}, stderr), nil
	default:
		return nil, fmt.Errorf("unknown problem source %q", s.Problems.SourceName())
	}
}

// openRuntime wires the engine for root. The backend client and problem
// source are built from the settings at open time; the scheduler tunables
// are re-read from the watcher on every tick.
func openRuntime(root string, stderr io.Writer) (*engineRuntime, error) {
	fs := fsys.OSFS{}
	w, err := config.NewWatcher(fs, config.Path(root), stderr)
	if err != nil {
		return nil, err
	}
	s, err := w.Current()
	if err != nil {
		w.Close() //nolint:errcheck // best-effort cleanup
		return nil, err
	}

	a := auth.NewEnvOrFile(fs, root)
	hc := httpretry.New(httpretry.ConfigFromSettings(s.Backend))
	src, err := newProblemsProvider(root, s, hc, a, stderr)
	if err != nil {
		w.Close() //nolint:errcheck // best-effort cleanup
		return nil, err
	}

	rec := openRecorder(root, stderr)
	ex := writeback.NewExecutor()
	docs := writeback.NewFileDocuments(fs, root)
	eng := engine.New(engine.Deps{
		Project:  filepath.Base(root),
		Settings: w,
		Auth:     a,
		Problems: src,
		Fixer:    fixer.NewClient(hc, s.Backend.FixURL(), a),
		Reader:   docs,
		Writer:   writeback.NewApplier(ex, docs, stderr),
		Events:   rec,
		Stderr:   stderr,
	})
	return &engineRuntime{root: root, settings: w, auth: a, rec: rec, exec: ex, eng: eng}, nil
}

// ready reports whether the engine may run: settings load, continuous
// development is enabled and there is an access token.
func (r *engineRuntime) ready() bool {
	s, err := r.settings.Current()
	return err == nil && s.Engine.Enabled && r.auth.IsAuthenticated()
}

// Close shuts the engine down and releases every collaborator.
func (r *engineRuntime) Close() {
	r.eng.Close()
	r.exec.Close()
	r.settings.Close() //nolint:errcheck // best-effort cleanup
	if c, ok := r.rec.(io.Closer); ok {
		c.Close() //nolint:errcheck // best-effort cleanup
	}
}
