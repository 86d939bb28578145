// Package engine is the Continuous Development Engine's scheduler.
//
// An [Engine] owns one project's loop: a single goroutine that runs a
// tick, waits the configured scan interval, and runs the next, so a slow
// tick delays the schedule instead of overlapping it. Each tick re-reads
// settings and auth, scans for problem files, asks the fixer for each
// file under its enhancement cap, and writes accepted fixes back.
//
// Collaborators are injected through [Deps]; the engine holds no global
// state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modforge/cdengine/internal/auth"
	"github.com/modforge/cdengine/internal/budget"
	"github.com/modforge/cdengine/internal/config"
	"github.com/modforge/cdengine/internal/events"
	"github.com/modforge/cdengine/internal/fixer"
	"github.com/modforge/cdengine/internal/problems"
	"github.com/modforge/cdengine/internal/telemetry"
)

var (
	// ErrTickInProgress is returned by RunOnce while another tick runs.
	ErrTickInProgress = errors.New("tick already in progress")
	// ErrDisabled is returned by Start when continuous development is
	// turned off in settings.
	ErrDisabled = errors.New("continuous development disabled")
	// ErrNotAuthenticated is returned when no access token is available.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("engine closed")

	// errLoopStopped ends a loop whose stop channel was closed.
	errLoopStopped = errors.New("loop stopped")
)

// busyRetry is how soon a scheduled tick retries when another tick
// still holds the tick lock.
const busyRetry = 250 * time.Millisecond

// actor is the events.Event Actor for everything the engine records.
const actor = "engine"

// Reader reads a project file's current text.
type Reader interface {
	ReadText(file string) (string, error)
}

// Writer applies a fix and reports whether it was written and committed.
type Writer interface {
	Apply(ctx context.Context, file, newSource string) bool
}

// Deps are the engine's collaborators. Events and Stderr may be nil.
type Deps struct {
	Project  string
	Settings config.Provider
	Auth     auth.Provider
	Problems problems.Provider
	Fixer    fixer.Invoker
	Reader   Reader
	Writer   Writer
	Events   events.Recorder
	Stderr   io.Writer
}

// Engine is the scheduler and state machine for one project.
type Engine struct {
	project  string
	settings config.Provider
	auth     auth.Provider
	problems problems.Provider
	fixer    fixer.Invoker
	reader   Reader
	writer   Writer
	rec      events.Recorder
	stderr   io.Writer

	budget   *budget.Tracker
	cooldown *budget.Cooldown
	stats    statistics

	// ctx is cancelled by Close; it bounds every tick.
	ctx    context.Context
	cancel context.CancelFunc

	// mu guards the lifecycle fields and state transitions.
	mu       sync.Mutex
	running  bool
	closed   bool
	state    State
	stopLoop chan struct{}
	loops    sync.WaitGroup

	// stopGen increments on every stop. A tick remembers the value it
	// started under and stops processing files once it changes.
	stopGen atomic.Uint64
	// interval is the current fixed delay, refreshed every tick.
	interval atomic.Int64
	// tickMu is held for the whole of a tick.
	tickMu sync.Mutex

	now func() time.Time
}

// New returns a stopped Engine.
func New(d Deps) *Engine {
	rec := d.Events
	if rec == nil {
		rec = events.Discard
	}
	stderr := d.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		project:  d.Project,
		settings: d.Settings,
		auth:     d.Auth,
		problems: d.Problems,
		fixer:    d.Fixer,
		reader:   d.Reader,
		writer:   d.Writer,
		rec:      rec,
		stderr:   stderr,
		budget:   budget.NewTracker(config.DefaultMaxEnhancementsPerFile),
		cooldown: budget.NewCooldown(config.DefaultCooldown),
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
	}
	e.interval.Store(int64(config.DefaultScanInterval))
	return e
}

func (e *Engine) logf(format string, args ...any) {
	fmt.Fprintf(e.stderr, "engine: "+format+"\n", args...) //nolint:errcheck // best-effort stderr
}

// Start schedules the loop. It is a no-op returning nil when already
// running. It refuses to start, logging why, when settings are
// unavailable, continuous development is disabled, or there is no
// access token. The first tick runs immediately.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.running {
		return nil
	}
	s, err := e.settings.Current()
	if err != nil {
		e.logf("not starting: %v", err)
		return err
	}
	if !s.Engine.Enabled {
		e.logf("not starting: %v", ErrDisabled)
		return ErrDisabled
	}
	if !e.auth.IsAuthenticated() {
		e.logf("not starting: %v", ErrNotAuthenticated)
		return ErrNotAuthenticated
	}

	e.applySettings(s)
	e.running = true
	e.state = Idle
	stop := make(chan struct{})
	e.stopLoop = stop
	e.loops.Add(1)
	go e.loop(stop)

	e.rec.Record(events.Event{Type: events.EngineStarted, Actor: actor, Subject: e.project})
	telemetry.RecordEngineLifecycle(e.ctx, e.project, "started")
	e.stats.log(Action{Time: e.now(), Kind: ActionLifecycle, Detail: "started"})
	e.logf("started (interval %s)", time.Duration(e.interval.Load()))
	return nil
}

// Stop unschedules the loop. A tick already executing is not
// interrupted: it finishes its current file and then processes no more.
// Stop does not wait for it; use Wait. Idempotent.
func (e *Engine) Stop() {
	e.stop("stopped")
}

func (e *Engine) stop(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.running = false
	e.stopGen.Add(1)
	close(e.stopLoop)
	e.state = Disabled

	e.rec.Record(events.Event{Type: events.EngineStopped, Actor: actor, Subject: e.project, Message: reason})
	telemetry.RecordEngineLifecycle(e.ctx, e.project, "stopped")
	e.stats.log(Action{Time: e.now(), Kind: ActionLifecycle, Detail: "stopped: " + reason})
	e.logf("stopped: %s", reason)
}

// Wait blocks until every loop goroutine has exited. After Stop it
// returns once any in-flight scheduled tick has finished.
func (e *Engine) Wait() {
	e.loops.Wait()
}

// Close stops the engine, cancels any in-flight tick and waits for the
// loop to exit. The engine cannot be restarted.
func (e *Engine) Close() {
	e.stop("closed")
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.cancel()
	e.loops.Wait()
}

// IsRunning reports whether the loop is scheduled.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// transition sets the state unless the engine was stopped since gen.
func (e *Engine) transition(gen uint64, s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopGen.Load() != gen {
		return
	}
	e.state = s
}

// restingState is the state between ticks.
func (e *Engine) restingState(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopGen.Load() != gen {
		return
	}
	switch {
	case !e.running:
		e.state = Disabled
	case e.cooldown.Active():
		e.state = CoolingDown
	default:
		e.state = Idle
	}
}

// Stats returns a snapshot of the run statistics.
func (e *Engine) Stats() Stats {
	return e.stats.snapshot()
}

// Status is a point-in-time view of the engine.
type Status struct {
	Project           string          `json:"project,omitempty"`
	State             State           `json:"state"`
	Running           bool            `json:"running"`
	CooldownRemaining string          `json:"cooldown_remaining,omitempty"` // empty when inactive
	Interval          string          `json:"interval"`
	Stats             Stats           `json:"stats"`
	Budget            budget.Snapshot `json:"budget"`
}

// Status returns the engine's state, statistics and budget.
func (e *Engine) Status() Status {
	e.mu.Lock()
	st := Status{Project: e.project, State: e.state, Running: e.running}
	e.mu.Unlock()
	if left := e.cooldown.Remaining(); left > 0 {
		st.CooldownRemaining = left.Round(time.Second).String()
	}
	st.Interval = time.Duration(e.interval.Load()).String()
	st.Stats = e.stats.snapshot()
	st.Budget = e.budget.Snapshot()
	return st
}

// Reset stops the engine and clears the enhancement budget, cooldown and
// statistics. With autoRestart it then starts again, which fails the
// same way Start does when the engine may not run.
func (e *Engine) Reset(autoRestart bool) error {
	e.stop("reset")
	e.budget.Reset()
	e.cooldown.Reset()
	e.stats.reset()
	e.rec.Record(events.Event{Type: events.EngineReset, Actor: actor, Subject: e.project})
	telemetry.RecordEngineLifecycle(e.ctx, e.project, "reset")
	e.logf("reset")
	if !autoRestart {
		return nil
	}
	return e.Start()
}

// RunOnce performs one tick on the caller's goroutine. Unlike a
// scheduled tick it does not require continuous development to be
// enabled and never stops the loop. It returns ErrTickInProgress when a
// tick is already executing.
func (e *Engine) RunOnce(ctx context.Context) (TickReport, error) {
	ctx, cancel := mergeCancel(ctx, e.ctx)
	defer cancel()
	return e.tick(ctx, nil)
}

// applySettings pushes per-tick tunables into the budget and scheduler.
func (e *Engine) applySettings(s *config.Settings) {
	e.budget.SetLimit(s.Engine.MaxEnhancements())
	e.cooldown.SetInterval(s.Engine.CooldownDuration())
	e.interval.Store(int64(s.Engine.ScanIntervalDuration()))
}

func (e *Engine) loop(stop <-chan struct{}) {
	defer e.loops.Done()
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-stop:
			return
		case <-e.ctx.Done():
			return
		case <-timer.C:
		}
		// select picks at random when stop and the timer are both ready.
		select {
		case <-stop:
			return
		default:
		}
		_, err := e.tick(e.ctx, stop)
		switch {
		case errors.Is(err, errLoopStopped):
			return
		case errors.Is(err, ErrTickInProgress):
			timer.Reset(busyRetry)
			continue
		}
		timer.Reset(time.Duration(e.interval.Load()))
	}
}

// liveGen returns the stop generation a tick runs under. For a
// scheduled tick (stop != nil) it fails with errLoopStopped unless stop
// still belongs to the running loop.
func (e *Engine) liveGen(stop <-chan struct{}) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if stop != nil && (!e.running || e.stopLoop != stop) {
		return 0, errLoopStopped
	}
	return e.stopGen.Load(), nil
}

// mergeCancel returns a context cancelled when either a or b is done.
func mergeCancel(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(a)
	stop := context.AfterFunc(b, func() { cancel(context.Cause(b)) })
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}
