package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/modforge/cdengine/internal/events"
	"github.com/modforge/cdengine/internal/fixer"
	"github.com/modforge/cdengine/internal/problems"
	"github.com/modforge/cdengine/internal/telemetry"
)

// Tick outcomes, as reported in TickReport and telemetry.
const (
	OutcomeClean    = "clean"
	OutcomeProblems = "problems"
	OutcomeCooldown = "cooldown"
	OutcomeSkipped  = "skipped"
	OutcomeError    = "error"
)

// TickReport summarizes one tick.
type TickReport struct {
	ID           string        `json:"id"`
	Started      time.Time     `json:"started"`
	Duration     time.Duration `json:"duration_ns"`
	Outcome      string        `json:"outcome"`
	ProblemFiles int           `json:"problem_files"`
	Problems     int           `json:"problems"`
	Attempted    int           `json:"attempted"`
	Applied      int           `json:"applied"`
	NoChange     int           `json:"no_change"`
	Failed       int           `json:"failed"`
	SkippedCap   int           `json:"skipped_cap"`
	// Interrupted is set when a stop or cancellation ended the tick
	// before every problem file was visited.
	Interrupted bool   `json:"interrupted,omitempty"`
	Error       string `json:"error,omitempty"`
}

// appliedPayload is the events.FixApplied payload.
type appliedPayload struct {
	TickID      string        `json:"tick_id"`
	Diff        fixer.Summary `json:"diff"`
	Explanation string        `json:"explanation,omitempty"`
	Count       int           `json:"count"`
	Limit       int           `json:"limit"`
}

// tick runs one scan-fix-apply pass. A scheduled tick passes its loop's
// stop channel and is refused once that loop was stopped; it stops the
// loop itself when settings are unavailable, the engine is disabled or
// auth is gone. RunOnce passes nil. Per-file failures never end the
// tick, and a panic anywhere in it is recovered and reported as an
// error outcome.
func (e *Engine) tick(ctx context.Context, stop <-chan struct{}) (rep TickReport, err error) {
	scheduled := stop != nil
	if !e.tickMu.TryLock() {
		return TickReport{}, ErrTickInProgress
	}
	defer e.tickMu.Unlock()

	gen, err := e.liveGen(stop)
	if err != nil {
		return TickReport{}, err
	}
	rep.ID = uuid.NewString()
	rep.Started = e.now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panicked: %v", r)
			e.logf("tick %s: %v", rep.ID, err)
		}
		if err != nil {
			rep.Outcome = OutcomeError
			rep.Error = err.Error()
		}
		e.finishTick(ctx, gen, &rep)
	}()

	s, err := e.settings.Current()
	if err != nil {
		if scheduled {
			e.stop(fmt.Sprintf("settings unavailable: %v", err))
		}
		return rep, err
	}
	if scheduled && !s.Engine.Enabled {
		e.stop(ErrDisabled.Error())
		rep.Outcome = OutcomeSkipped
		return rep, nil
	}
	if !e.auth.IsAuthenticated() {
		if scheduled {
			e.stop(ErrNotAuthenticated.Error())
			rep.Outcome = OutcomeSkipped
			return rep, nil
		}
		return rep, ErrNotAuthenticated
	}
	e.applySettings(s)

	if e.cooldown.Active() {
		e.transition(gen, CoolingDown)
		rep.Outcome = OutcomeCooldown
		e.stats.update(func(st *Stats) { st.TicksCoolingDown++ })
		return rep, nil
	}

	e.transition(gen, Scanning)
	scan, err := problems.Scan(ctx, e.problems)
	if err != nil {
		e.stats.update(func(st *Stats) { st.ScansFailed++ })
		e.action(rep.ID, ActionError, "", "scan failed: "+err.Error())
		e.logf("scan: %v", err)
		return rep, fmt.Errorf("scanning problems: %w", err)
	}
	rep.ProblemFiles = len(scan.Files)
	rep.Problems = scan.ProblemCount()
	e.stats.update(func(st *Stats) {
		st.LastScan = scan.ScannedAt
		st.ScansOK++
		if !scan.Empty() {
			st.ScansWithProblems++
		}
	})
	for id, uerr := range scan.Unavailable {
		e.logf("diagnostics unavailable for %s: %v", id, uerr)
	}
	if scan.Empty() {
		rep.Outcome = OutcomeClean
		e.action(rep.ID, ActionScan, "", "no problems")
		return rep, nil
	}
	rep.Outcome = OutcomeProblems
	e.action(rep.ID, ActionScan, "", fmt.Sprintf("%d problems in %d files", rep.Problems, rep.ProblemFiles))

	e.transition(gen, Fixing)
	for _, pf := range scan.Files {
		if e.stopGen.Load() != gen || ctx.Err() != nil {
			rep.Interrupted = true
			break
		}
		e.fixFile(ctx, &rep, s.Engine.Language(), s.Engine.FixTimeoutDuration(), pf)
	}

	if rep.Applied > 0 {
		e.cooldown.Start()
	}
	return rep, nil
}

// fixFile handles one problem file. Every outcome is counted; nothing
// here fails the tick.
func (e *Engine) fixFile(ctx context.Context, rep *TickReport, lang string, timeout time.Duration, pf problems.File) {
	file := string(pf.ID)
	if !e.budget.MayEnhance(file) {
		rep.SkippedCap++
		e.stats.update(func(st *Stats) { st.FilesSkippedCap++ })
		e.action(rep.ID, ActionSkip, file, fmt.Sprintf("enhancement cap reached (%d)", e.budget.Limit()))
		return
	}

	src, err := e.reader.ReadText(file)
	if err != nil {
		e.action(rep.ID, ActionError, file, "read failed: "+err.Error())
		e.logf("reading %s: %v", file, err)
		return
	}
	if src == "" {
		e.action(rep.ID, ActionSkip, file, "empty file")
		return
	}

	rep.Attempted++
	e.stats.update(func(st *Stats) { st.FixesAttempted++ })
	res := e.fixer.Fix(ctx, fixer.Request{
		File:              file,
		SourceText:        src,
		FormattedProblems: problems.Format(pf.Problems),
		Language:          fixer.LanguageFor(file, lang),
		Timeout:           timeout,
	})
	telemetry.RecordFix(ctx, file, res.Outcome.String(), res.Reason)

	switch res.Outcome {
	case fixer.Applied:
		e.applyFix(ctx, rep, file, src, res)
	case fixer.NoChange:
		rep.NoChange++
		e.stats.update(func(st *Stats) { st.FixesNoChange++ })
		e.action(rep.ID, ActionFix, file, "no change")
	default:
		rep.Failed++
		e.stats.update(func(st *Stats) { st.FixesFailed++ })
		e.action(rep.ID, ActionError, file, "fix failed: "+telemetry.Truncate(errString(res.Reason), 200))
		e.logf("fix %s: %v", file, res.Reason)
		e.rec.Record(events.Event{
			Type:    events.FixFailed,
			Actor:   actor,
			Subject: file,
			Message: telemetry.Truncate(errString(res.Reason), 512),
		})
	}
}

func (e *Engine) applyFix(ctx context.Context, rep *TickReport, file, src string, res fixer.Result) {
	if !e.writer.Apply(ctx, file, res.NewSource) {
		e.stats.update(func(st *Stats) { st.WriteFailures++ })
		e.action(rep.ID, ActionError, file, "write-back failed")
		return
	}
	count := e.budget.Record(file)
	limit := e.budget.Limit()
	rep.Applied++
	e.stats.update(func(st *Stats) { st.FixesApplied++ })

	diff := fixer.Summarize(src, res.NewSource)
	e.action(rep.ID, ActionWrite, file, fmt.Sprintf("fix applied %s (%d/%d)", diff, count, limit))
	e.rec.Record(events.Event{
		Type:    events.FixApplied,
		Actor:   actor,
		Subject: file,
		Message: diff.String(),
		Payload: events.MarshalPayload(appliedPayload{
			TickID:      rep.ID,
			Diff:        diff,
			Explanation: telemetry.Truncate(res.Explanation, 1024),
			Count:       count,
			Limit:       limit,
		}),
	})
	if count >= limit {
		telemetry.RecordBudgetExhausted(ctx, file, count)
		e.rec.Record(events.Event{
			Type:    events.BudgetExhausted,
			Actor:   actor,
			Subject: file,
			Message: fmt.Sprintf("%d/%d enhancements", count, limit),
		})
	}
}

// finishTick records the report and settles the state.
func (e *Engine) finishTick(ctx context.Context, gen uint64, rep *TickReport) {
	rep.Duration = e.now().Sub(rep.Started)
	e.stats.update(func(st *Stats) { st.Ticks++ })
	e.restingState(gen)

	ms := float64(rep.Duration.Microseconds()) / 1000
	telemetry.RecordTick(ctx, e.project, rep.ID, rep.Outcome, rep.ProblemFiles, rep.Applied, ms)
	if rep.Outcome == OutcomeClean || rep.Outcome == OutcomeCooldown {
		return
	}
	e.rec.Record(events.Event{
		Type:    events.TickCompleted,
		Actor:   actor,
		Subject: e.project,
		Message: rep.Outcome,
		Payload: events.MarshalPayload(rep),
	})
}

func (e *Engine) action(tickID string, kind ActionKind, file, detail string) {
	e.stats.log(Action{Time: e.now(), TickID: tickID, Kind: kind, File: file, Detail: detail})
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out: " + err.Error()
	}
	return err.Error()
}
