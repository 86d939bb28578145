package engine

import (
	"sync"
	"time"
)

// actionLogCapacity bounds the recent-action ring buffer.
const actionLogCapacity = 100

// ActionKind classifies an [Action].
type ActionKind string

// Action kinds.
const (
	ActionScan      ActionKind = "scan"
	ActionFix       ActionKind = "fix"
	ActionSkip      ActionKind = "skip"
	ActionWrite     ActionKind = "write"
	ActionError     ActionKind = "error"
	ActionLifecycle ActionKind = "lifecycle"
)

// Action is one entry in the recent-action log.
type Action struct {
	Time   time.Time  `json:"time"`
	TickID string     `json:"tick_id,omitempty"`
	Kind   ActionKind `json:"kind"`
	File   string     `json:"file,omitempty"`
	Detail string     `json:"detail"`
}

// Stats is a snapshot of the engine's run statistics.
type Stats struct {
	LastScan          time.Time `json:"last_scan"`
	Ticks             int       `json:"ticks"`
	ScansOK           int       `json:"scans_ok"`
	ScansWithProblems int       `json:"scans_with_problems"`
	ScansFailed       int       `json:"scans_failed"`
	TicksCoolingDown  int       `json:"ticks_cooling_down"`
	FixesAttempted    int       `json:"fixes_attempted"`
	FixesApplied      int       `json:"fixes_applied"`
	FixesNoChange     int       `json:"fixes_no_change"`
	FixesFailed       int       `json:"fixes_failed"`
	WriteFailures     int       `json:"write_failures"`
	FilesSkippedCap   int       `json:"files_skipped_cap"`
	// Recent is the action log, oldest first.
	Recent []Action `json:"recent,omitempty"`
}

// actionRing keeps the newest actionLogCapacity actions.
type actionRing struct {
	buf  []Action
	next int
}

func (r *actionRing) push(a Action) {
	if len(r.buf) < actionLogCapacity {
		r.buf = append(r.buf, a)
		return
	}
	r.buf[r.next] = a
	r.next = (r.next + 1) % actionLogCapacity
}

func (r *actionRing) items() []Action {
	out := make([]Action, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

// statistics guards Stats for one writer (the tick) and many readers.
type statistics struct {
	mu      sync.RWMutex
	s       Stats
	actions actionRing
}

func (st *statistics) update(fn func(*Stats)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(&st.s)
}

func (st *statistics) log(a Action) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.actions.push(a)
}

func (st *statistics) snapshot() Stats {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s := st.s
	s.Recent = st.actions.items()
	return s
}

func (st *statistics) reset() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s = Stats{}
	st.actions = actionRing{}
}
