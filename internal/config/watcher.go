package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/modforge/cdengine/internal/fsys"
	"github.com/modforge/cdengine/internal/telemetry"
)

// ErrSettingsUnavailable is returned by [Provider.Current] when the
// settings source cannot be read at all. The engine treats it as fatal
// for the loop.
var ErrSettingsUnavailable = errors.New("settings unavailable")

// Provider is the settings collaborator consumed by the engine. Current
// is called at the top of every tick, so implementations must be cheap.
type Provider interface {
	Current() (*Settings, error)
}

// reloadDebounce coalesces editor save bursts (write, chmod, rename).
const reloadDebounce = 100 * time.Millisecond

// Watcher is a [Provider] backed by an engine.toml file. It keeps the
// last successfully parsed settings and hot-reloads on change.
//
// A parse error keeps the previous settings in effect. A missing or
// unreadable file makes Current return [ErrSettingsUnavailable] until
// the file is readable again.
type Watcher struct {
	fs     fsys.FS
	path   string
	stderr io.Writer

	mu      sync.RWMutex
	current *Settings
	rev     string
	readErr error

	startOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
	fsw       *fsnotify.Watcher
}

// NewWatcher loads path once and returns a Watcher. It fails when the
// initial load fails; there are no last-good settings to fall back to.
func NewWatcher(fs fsys.FS, path string, stderr io.Writer) (*Watcher, error) {
	if stderr == nil {
		stderr = io.Discard
	}
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading settings %q: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading settings %q: %w", path, err)
	}
	return &Watcher{
		fs:      fs,
		path:    path,
		stderr:  stderr,
		current: s,
		rev:     Revision(data),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Path returns the watched settings file.
func (w *Watcher) Path() string { return w.path }

// Current returns the settings in effect.
func (w *Watcher) Current() (*Settings, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.readErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettingsUnavailable, w.readErr)
	}
	cp := *w.current
	return &cp, nil
}

// Reload re-reads the settings file. It returns true when new settings
// took effect. A parse error is returned but leaves the previous
// settings in place.
func (w *Watcher) Reload(ctx context.Context) (bool, error) {
	data, err := w.fs.ReadFile(w.path)
	if err != nil {
		w.mu.Lock()
		w.readErr = err
		w.mu.Unlock()
		telemetry.RecordConfigReload(ctx, w.path, err)
		return false, fmt.Errorf("%w: %v", ErrSettingsUnavailable, err)
	}

	rev := Revision(data)
	w.mu.RLock()
	unchanged := rev == w.rev && w.readErr == nil
	w.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	s, err := Parse(data)
	if err != nil {
		w.mu.Lock()
		// The file is readable again even if this revision is bad.
		w.readErr = nil
		w.mu.Unlock()
		telemetry.RecordConfigReload(ctx, w.path, err)
		return false, err
	}

	w.mu.Lock()
	w.current = s
	w.rev = rev
	w.readErr = nil
	w.mu.Unlock()
	telemetry.RecordConfigReload(ctx, w.path, nil)
	return true, nil
}

// Start begins watching the settings directory in the background.
// Watching the directory rather than the file survives editors that
// save by rename. Start is non-blocking; call Close to stop.
func (w *Watcher) Start(ctx context.Context) error {
	var startErr error
	w.startOnce.Do(func() {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			startErr = fmt.Errorf("creating settings watcher: %w", err)
			close(w.done)
			return
		}
		if err := fsw.Add(filepath.Dir(w.path)); err != nil {
			fsw.Close() //nolint:errcheck // already failing
			startErr = fmt.Errorf("watching %q: %w", filepath.Dir(w.path), err)
			close(w.done)
			return
		}
		w.fsw = fsw
		go w.run(ctx)
	})
	return startErr
}

// Close stops the background watch and waits for it to exit. Safe to
// call without Start and more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.stop)
		w.startOnce.Do(func() { close(w.done) })
		<-w.done
		if w.fsw != nil {
			err = w.fsw.Close()
		}
	})
	return err
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	base := filepath.Base(w.path)
	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			debounce = time.After(reloadDebounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(w.stderr, "config: watch error: %v\n", err) //nolint:errcheck // best-effort stderr
		case <-debounce:
			debounce = nil
			changed, err := w.Reload(ctx)
			switch {
			case err != nil:
				fmt.Fprintf(w.stderr, "config: reload %s: %v\n", w.path, err) //nolint:errcheck // best-effort stderr
			case changed:
				fmt.Fprintf(w.stderr, "config: reloaded %s\n", w.path) //nolint:errcheck // best-effort stderr
			}
		}
	}
}

// Fake is an in-memory [Provider] for tests.
type Fake struct {
	mu       sync.Mutex
	settings Settings
	err      error
	calls    int
}

// NewFake returns a Fake serving s.
func NewFake(s Settings) *Fake {
	return &Fake{settings: s}
}

// Set replaces the served settings and clears any injected failure.
func (f *Fake) Set(s Settings) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = s
	f.err = nil
}

// Update mutates the served settings in place.
func (f *Fake) Update(fn func(*Settings)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.settings)
}

// Fail makes Current return err wrapped in [ErrSettingsUnavailable].
func (f *Fake) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Calls returns how many times Current was called.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Current implements [Provider].
func (f *Fake) Current() (*Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettingsUnavailable, f.err)
	}
	cp := f.settings
	return &cp, nil
}

var (
	_ Provider = (*Watcher)(nil)
	_ Provider = (*Fake)(nil)
)
