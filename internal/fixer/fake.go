package fixer

import (
	"context"
	"sync"
)

// Fake is a scripted [Invoker] for tests. Fn decides each result; when
// nil, every call is NoChange.
type Fake struct {
	mu    sync.Mutex
	Fn    func(req Request) Result
	calls []Request
}

// Fix implements [Invoker].
func (f *Fake) Fix(ctx context.Context, req Request) Result {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	fn := f.Fn
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return FailedResult(err)
	}
	if fn == nil {
		return NoChangeResult()
	}
	return fn(req)
}

// Calls returns a copy of the recorded requests.
func (f *Fake) Calls() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.calls...)
}

var _ Invoker = (*Fake)(nil)
