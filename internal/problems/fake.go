package problems

import (
	"context"
	"sync"
)

// Fake is an in-memory [Provider] for tests. Files maps each file to its
// records; NotReady marks files whose diagnostics are still computing.
type Fake struct {
	mu       sync.Mutex
	files    map[FileID][]Record
	notReady map[FileID]bool
	listErr  error

	ListCalls     int
	ProblemsCalls map[FileID]int
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{
		files:         make(map[FileID][]Record),
		notReady:      make(map[FileID]bool),
		ProblemsCalls: make(map[FileID]int),
	}
}

// Set replaces the records for file. An empty slice keeps the file
// listed with no problems; use Clear to remove it.
func (f *Fake) Set(file FileID, recs ...Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[file] = append([]Record(nil), recs...)
}

// Clear removes file from the listing.
func (f *Fake) Clear(file FileID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, file)
	delete(f.notReady, file)
}

// SetNotReady marks file as still computing.
func (f *Fake) SetNotReady(file FileID, notReady bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notReady[file] = notReady
	if _, ok := f.files[file]; !ok {
		f.files[file] = nil
	}
}

// FailList makes ListProblemFiles return err (nil clears).
func (f *Fake) FailList(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

// Calls returns the number of ListProblemFiles and total ProblemsFor calls.
func (f *Fake) Calls() (list, problems int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.ProblemsCalls {
		problems += n
	}
	return f.ListCalls, problems
}

// ListProblemFiles implements [Provider].
func (f *Fake) ListProblemFiles(_ context.Context) ([]FileID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	ids := make([]FileID, 0, len(f.files))
	for id := range f.files {
		ids = append(ids, id)
	}
	return ids, nil
}

// ProblemsFor implements [Provider].
func (f *Fake) ProblemsFor(_ context.Context, file FileID) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ProblemsCalls[file]++
	if f.notReady[file] {
		return nil, ErrNotReady
	}
	return append([]Record(nil), f.files[file]...), nil
}

var _ Provider = (*Fake)(nil)
