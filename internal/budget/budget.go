// Package budget throttles automatic edits. A [Tracker] caps how many
// times each file may be rewritten until an explicit reset, and a
// [Cooldown] enforces an idle period after a cycle that applied fixes.
package budget

import (
	"sort"
	"sync"
)

// Tracker counts applied enhancements per file. Counts only grow; they
// are cleared by [Tracker.Reset] and never expire on their own.
//
// One writer (the engine's tick) and any number of readers may use a
// Tracker concurrently.
type Tracker struct {
	mu     sync.RWMutex
	limit  int
	counts map[string]int
}

// NewTracker returns a Tracker allowing limit enhancements per file.
// A limit <= 0 blocks every file.
func NewTracker(limit int) *Tracker {
	return &Tracker{limit: limit, counts: make(map[string]int)}
}

// MayEnhance reports whether file is below its cap.
func (t *Tracker) MayEnhance(file string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counts[file] < t.limit
}

// Record notes one applied enhancement to file and returns the new count.
func (t *Tracker) Record(file string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[file]++
	return t.counts[file]
}

// Count returns how many enhancements file has received.
func (t *Tracker) Count(file string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counts[file]
}

// Limit returns the per-file cap.
func (t *Tracker) Limit() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.limit
}

// SetLimit changes the cap. Existing counts are kept, so lowering the
// limit can put files at or over the new cap immediately.
func (t *Tracker) SetLimit(limit int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limit = limit
}

// Reset clears every count.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts = make(map[string]int)
}

// Entry is one file's count in a [Snapshot].
type Entry struct {
	File      string `json:"file"`
	Count     int    `json:"count"`
	Exhausted bool   `json:"exhausted"`
}

// Snapshot is a point-in-time copy of a Tracker.
type Snapshot struct {
	Limit   int     `json:"limit"`
	Entries []Entry `json:"entries,omitempty"`
}

// Snapshot returns the current counts sorted by file.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := Snapshot{Limit: t.limit}
	for f, n := range t.counts {
		s.Entries = append(s.Entries, Entry{File: f, Count: n, Exhausted: n >= t.limit})
	}
	sort.Slice(s.Entries, func(i, j int) bool { return s.Entries[i].File < s.Entries[j].File })
	return s
}
