package budget

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestTracker_CapReached(t *testing.T) {
	tr := NewTracker(2)
	if !tr.MayEnhance("a.java") {
		t.Fatal("fresh file should be allowed")
	}
	tr.Record("a.java")
	if !tr.MayEnhance("a.java") {
		t.Error("file at 1/2 should be allowed")
	}
	if n := tr.Record("a.java"); n != 2 {
		t.Errorf("Record = %d, want 2", n)
	}
	if tr.MayEnhance("a.java") {
		t.Error("file at cap should be blocked")
	}
	if !tr.MayEnhance("b.java") {
		t.Error("cap is per file")
	}
}

func TestTracker_ZeroLimitBlocksAll(t *testing.T) {
	tr := NewTracker(0)
	if tr.MayEnhance("a.java") {
		t.Error("limit 0 should block every file")
	}
}

func TestTracker_ResetIsOnlyWayBack(t *testing.T) {
	tr := NewTracker(1)
	tr.Record("a.java")
	if tr.MayEnhance("a.java") {
		t.Fatal("expected blocked")
	}
	tr.Reset()
	if !tr.MayEnhance("a.java") || tr.Count("a.java") != 0 {
		t.Error("Reset should clear counts")
	}
}

func TestTracker_SetLimitKeepsCounts(t *testing.T) {
	tr := NewTracker(5)
	tr.Record("a.java")
	tr.Record("a.java")
	tr.SetLimit(2)
	if tr.MayEnhance("a.java") {
		t.Error("lowered limit should block a file already at 2")
	}
	if tr.Limit() != 2 {
		t.Errorf("Limit = %d, want 2", tr.Limit())
	}
}

func TestTracker_Snapshot(t *testing.T) {
	tr := NewTracker(2)
	tr.Record("z.java")
	tr.Record("a.java")
	tr.Record("a.java")
	want := Snapshot{Limit: 2, Entries: []Entry{
		{File: "a.java", Count: 2, Exhausted: true},
		{File: "z.java", Count: 1},
	}}
	if diff := cmp.Diff(want, tr.Snapshot()); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestTracker_ConcurrentReaders(t *testing.T) {
	tr := NewTracker(1000)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.MayEnhance("a.java")
				tr.Snapshot()
			}
		}()
	}
	for j := 0; j < 100; j++ {
		tr.Record("a.java")
	}
	wg.Wait()
	if tr.Count("a.java") != 100 {
		t.Errorf("Count = %d, want 100", tr.Count("a.java"))
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestCooldown_Lifecycle(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	c := NewCooldown(time.Minute)
	c.now = clk.now

	if c.Active() {
		t.Fatal("new cooldown should be inactive")
	}
	c.Start()
	if !c.Active() || c.Remaining() != time.Minute {
		t.Fatalf("after Start: active=%v remaining=%v", c.Active(), c.Remaining())
	}
	if want := clk.t.Add(time.Minute); !c.Until().Equal(want) {
		t.Errorf("Until = %v, want %v", c.Until(), want)
	}
	clk.advance(59 * time.Second)
	if c.Remaining() != time.Second {
		t.Errorf("Remaining = %v, want 1s", c.Remaining())
	}
	clk.advance(time.Second)
	if c.Active() {
		t.Error("cooldown should expire at its deadline")
	}
	if !c.Until().IsZero() {
		t.Error("Until should be zero once expired")
	}
}

func TestCooldown_Disabled(t *testing.T) {
	c := NewCooldown(0)
	c.Start()
	if c.Active() {
		t.Error("zero interval should disable cooldown")
	}
}

func TestCooldown_Reset(t *testing.T) {
	c := NewCooldown(time.Hour)
	c.Start()
	c.Reset()
	if c.Active() {
		t.Error("Reset should end cooldown")
	}
}

func TestCooldown_SetIntervalAffectsNextStart(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	c := NewCooldown(time.Minute)
	c.now = clk.now
	c.Start()
	c.SetInterval(time.Hour)
	if c.Remaining() != time.Minute {
		t.Errorf("running cooldown changed: %v", c.Remaining())
	}
	c.Start()
	if c.Remaining() != time.Hour {
		t.Errorf("Remaining = %v, want 1h", c.Remaining())
	}
}
