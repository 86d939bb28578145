// Package eventstest provides a conformance test suite for events.Provider
// implementations. Each implementation's test file calls RunProviderTests
// with its own factory function.
package eventstest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/modforge/cdengine/internal/events"
)

// Factory returns a fresh, empty provider and a cleanup closure.
type Factory func(t *testing.T) (events.Provider, func())

// RunProviderTests runs the core conformance suite against a Provider.
func RunProviderTests(t *testing.T, newProvider Factory) {
	t.Helper()

	t.Run("RecordAndListRoundTrip", func(t *testing.T) {
		p, cleanup := newProvider(t)
		defer cleanup()

		p.Record(events.Event{
			Type:    events.FixApplied,
			Actor:   "engine",
			Subject: "src/main/java/Mod.java",
			Message: "+2 -1",
			Payload: []byte(`{"added":2,"removed":1}`),
		})

		got, err := p.List(events.Filter{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("List returned %d events, want 1", len(got))
		}
		e := got[0]
		if e.Type != events.FixApplied || e.Actor != "engine" || e.Subject != "src/main/java/Mod.java" || e.Message != "+2 -1" {
			t.Errorf("event = %+v", e)
		}
		if string(e.Payload) != `{"added":2,"removed":1}` {
			t.Errorf("Payload = %s", e.Payload)
		}
	})

	t.Run("RecordFillsSeqAndTs", func(t *testing.T) {
		p, cleanup := newProvider(t)
		defer cleanup()

		before := time.Now().Add(-time.Second)
		p.Record(events.Event{Type: events.EngineStarted, Actor: "engine"})
		p.Record(events.Event{Type: events.TickCompleted, Actor: "engine"})

		got, err := p.List(events.Filter{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("List returned %d events, want 2", len(got))
		}
		if got[0].Seq == 0 || got[1].Seq <= got[0].Seq {
			t.Errorf("Seq = %d, %d, want non-zero and increasing", got[0].Seq, got[1].Seq)
		}
		if got[0].Ts.Before(before) {
			t.Errorf("Ts = %v, want filled with now", got[0].Ts)
		}
	})

	t.Run("RecordPreservesExplicitTimestamp", func(t *testing.T) {
		p, cleanup := newProvider(t)
		defer cleanup()

		ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		p.Record(events.Event{Type: events.EngineReset, Actor: "cli", Ts: ts})

		got, err := p.List(events.Filter{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(got) != 1 || !got[0].Ts.Equal(ts) {
			t.Errorf("got %+v, want Ts %v", got, ts)
		}
	})

	t.Run("ListFilters", func(t *testing.T) {
		p, cleanup := newProvider(t)
		defer cleanup()

		p.Record(events.Event{Type: events.EngineStarted, Actor: "engine"})
		p.Record(events.Event{Type: events.FixApplied, Actor: "engine", Subject: "A.java"})
		p.Record(events.Event{Type: events.FixFailed, Actor: "engine", Subject: "B.java"})
		p.Record(events.Event{Type: events.FixApplied, Actor: "engine", Subject: "B.java"})
		p.Record(events.Event{Type: events.EngineReset, Actor: "cli"})

		check := func(name string, f events.Filter, want int) {
			t.Helper()
			got, err := p.List(f)
			if err != nil {
				t.Fatalf("%s: List: %v", name, err)
			}
			if len(got) != want {
				t.Errorf("%s: got %d events, want %d", name, len(got), want)
			}
		}
		check("type", events.Filter{Type: events.FixApplied}, 2)
		check("actor", events.Filter{Actor: "cli"}, 1)
		check("subject", events.Filter{Subject: "B.java"}, 2)
		check("combined", events.Filter{Type: events.FixApplied, Subject: "B.java"}, 1)
		check("afterSeq", events.Filter{AfterSeq: 3}, 2)
		check("tail", events.Filter{Tail: 2}, 2)
		check("since", events.Filter{Since: time.Now().Add(time.Hour)}, 0)
		check("none", events.Filter{Type: "no.such.type"}, 0)

		tail, _ := p.List(events.Filter{Tail: 1})
		if len(tail) == 1 && tail[0].Type != events.EngineReset {
			t.Errorf("tail kept %q, want the newest event", tail[0].Type)
		}
	})

	t.Run("ListEmptyProvider", func(t *testing.T) {
		p, cleanup := newProvider(t)
		defer cleanup()

		got, err := p.List(events.Filter{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("List returned %d events, want 0", len(got))
		}
	})

	t.Run("LatestSeq", func(t *testing.T) {
		p, cleanup := newProvider(t)
		defer cleanup()

		seq, err := p.LatestSeq()
		if err != nil || seq != 0 {
			t.Fatalf("LatestSeq on empty = %d, %v, want 0, nil", seq, err)
		}
		p.Record(events.Event{Type: events.TickCompleted, Actor: "engine"})
		p.Record(events.Event{Type: events.TickCompleted, Actor: "engine"})
		all, _ := p.List(events.Filter{})
		seq, err = p.LatestSeq()
		if err != nil {
			t.Fatalf("LatestSeq: %v", err)
		}
		if len(all) != 2 || seq != all[1].Seq {
			t.Errorf("LatestSeq = %d, want %d", seq, all[len(all)-1].Seq)
		}
	})

	t.Run("WatchExistingThenNew", func(t *testing.T) {
		p, cleanup := newProvider(t)
		defer cleanup()

		p.Record(events.Event{Type: events.EngineStarted, Actor: "engine", Subject: "first"})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		w, err := p.Watch(ctx, 0)
		if err != nil {
			t.Fatalf("Watch: %v", err)
		}
		defer w.Close() //nolint:errcheck // test cleanup

		e, err := w.Next()
		if err != nil || e.Subject != "first" {
			t.Fatalf("Next = %+v, %v, want first", e, err)
		}

		go func() {
			time.Sleep(50 * time.Millisecond)
			p.Record(events.Event{Type: events.FixApplied, Actor: "engine", Subject: "second"})
		}()
		e, err = w.Next()
		if err != nil || e.Subject != "second" {
			t.Fatalf("Next = %+v, %v, want second", e, err)
		}
	})

	t.Run("WatchAfterSeq", func(t *testing.T) {
		p, cleanup := newProvider(t)
		defer cleanup()

		p.Record(events.Event{Type: events.EngineStarted, Actor: "engine"})
		p.Record(events.Event{Type: events.TickCompleted, Actor: "engine"})
		last, _ := p.LatestSeq()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		w, err := p.Watch(ctx, last)
		if err != nil {
			t.Fatalf("Watch: %v", err)
		}
		defer w.Close() //nolint:errcheck // test cleanup

		go func() {
			time.Sleep(50 * time.Millisecond)
			p.Record(events.Event{Type: events.EngineStopped, Actor: "engine"})
		}()
		e, err := w.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if e.Type != events.EngineStopped || e.Seq <= last {
			t.Errorf("Next = %+v, want engine.stopped after seq %d", e, last)
		}
	})

	t.Run("WatchContextCancel", func(t *testing.T) {
		p, cleanup := newProvider(t)
		defer cleanup()

		ctx, cancel := context.WithCancel(context.Background())
		w, err := p.Watch(ctx, 0)
		if err != nil {
			t.Fatalf("Watch: %v", err)
		}
		defer w.Close() //nolint:errcheck // test cleanup

		cancel()
		if _, err := w.Next(); !errors.Is(err, context.Canceled) {
			t.Errorf("Next after cancel = %v, want context.Canceled", err)
		}
	})

	t.Run("CloseNoError", func(t *testing.T) {
		p, cleanup := newProvider(t)
		defer cleanup()

		if err := p.Close(); err != nil {
			t.Errorf("Close() = %v, want nil", err)
		}
	})
}

// RunConcurrencyTests checks that concurrent Record calls on one
// in-process provider neither lose events nor reuse sequence numbers.
func RunConcurrencyTests(t *testing.T, newProvider Factory) {
	t.Helper()

	t.Run("ConcurrentRecordSafe", func(t *testing.T) {
		p, cleanup := newProvider(t)
		defer cleanup()

		const goroutines = 10
		const perGoroutine = 10
		var wg sync.WaitGroup
		wg.Add(goroutines)
		for g := 0; g < goroutines; g++ {
			go func() {
				defer wg.Done()
				for i := 0; i < perGoroutine; i++ {
					p.Record(events.Event{Type: events.TickCompleted, Actor: "engine"})
				}
			}()
		}
		wg.Wait()

		got, err := p.List(events.Filter{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(got) != goroutines*perGoroutine {
			t.Errorf("List returned %d events, want %d", len(got), goroutines*perGoroutine)
		}
		seen := make(map[uint64]bool, len(got))
		for _, e := range got {
			if seen[e.Seq] {
				t.Errorf("duplicate seq: %d", e.Seq)
			}
			seen[e.Seq] = true
		}
	})
}
