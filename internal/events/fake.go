package events

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Fake is an in-memory [Provider] for tests. Recorded events are kept
// in Events with Seq and Ts filled in. Safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	Events  []Event
	seq     uint64
	changed chan struct{}
}

// NewFake returns a ready-to-use [Fake].
func NewFake() *Fake {
	return &Fake{changed: make(chan struct{})}
}

// Record appends e.
func (f *Fake) Record(e Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	e.Seq = f.seq
	if e.Ts.IsZero() {
		e.Ts = time.Now()
	}
	f.Events = append(f.Events, e)
	close(f.changed)
	f.changed = make(chan struct{})
}

// Types returns the Type of every recorded event, in order.
func (f *Fake) Types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Events))
	for i, e := range f.Events {
		out[i] = e.Type
	}
	return out
}

// List implements [Provider].
func (f *Fake) List(filter Filter) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return filter.Apply(f.Events), nil
}

// LatestSeq implements [Provider].
func (f *Fake) LatestSeq() (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq, nil
}

// Watch implements [Provider].
func (f *Fake) Watch(ctx context.Context, afterSeq uint64) (Watcher, error) {
	return &fakeWatcher{f: f, ctx: ctx, afterSeq: afterSeq}, nil
}

// Close implements [Provider].
func (f *Fake) Close() error { return nil }

type fakeWatcher struct {
	f        *Fake
	ctx      context.Context
	afterSeq uint64
}

func (w *fakeWatcher) Next() (Event, error) {
	for {
		w.f.mu.Lock()
		for _, e := range w.f.Events {
			if e.Seq > w.afterSeq {
				w.afterSeq = e.Seq
				w.f.mu.Unlock()
				return e, nil
			}
		}
		changed := w.f.changed
		w.f.mu.Unlock()

		select {
		case <-w.ctx.Done():
			return Event{}, w.ctx.Err()
		case <-changed:
		}
	}
}

func (w *fakeWatcher) Close() error { return nil }

// ErrFailFake is returned by every read on a [FailFake].
var ErrFailFake = errors.New("events: injected failure")

// FailFake is a [Provider] whose reads always fail. Records are dropped.
type FailFake struct{}

// Record implements [Recorder].
func (FailFake) Record(Event) {}

// List implements [Provider].
func (FailFake) List(Filter) ([]Event, error) { return nil, ErrFailFake }

// LatestSeq implements [Provider].
func (FailFake) LatestSeq() (uint64, error) { return 0, ErrFailFake }

// Watch implements [Provider].
func (FailFake) Watch(context.Context, uint64) (Watcher, error) { return nil, ErrFailFake }

// Close implements [Provider].
func (FailFake) Close() error { return nil }

var (
	_ Provider = (*Fake)(nil)
	_ Provider = FailFake{}
)
