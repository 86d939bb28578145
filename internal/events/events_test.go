package events

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newRecorder(t *testing.T) (*FileRecorder, string, *bytes.Buffer) {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".cde", "events.jsonl")
	var stderr bytes.Buffer
	rec, err := NewFileRecorder(path, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { rec.Close() }) //nolint:errcheck // test cleanup
	return rec, path, &stderr
}

func TestFileRecorderCreatesParentDir(t *testing.T) {
	_, path, _ := newRecorder(t)
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("parent dir missing: %v", err)
	}
}

func TestFileRecorderWritesJSONL(t *testing.T) {
	rec, path, stderr := newRecorder(t)
	rec.Record(Event{Type: FixApplied, Actor: "engine", Subject: "A.java"})
	rec.Record(Event{Type: TickCompleted, Actor: "engine"})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), data)
	}
	if !strings.Contains(lines[0], `"type":"fix.applied"`) || !strings.Contains(lines[0], `"seq":1`) {
		t.Errorf("line 1 = %s", lines[0])
	}
	if strings.Contains(lines[1], "payload") || strings.Contains(lines[1], "subject") {
		t.Errorf("empty optional fields should be omitted: %s", lines[1])
	}
	if stderr.Len() > 0 {
		t.Errorf("unexpected stderr: %q", stderr.String())
	}
}

func TestFileRecorderResumesSeq(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	rec, err := NewFileRecorder(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	rec.Record(Event{Type: EngineStarted, Actor: "engine"})
	rec.Record(Event{Type: EngineStopped, Actor: "engine"})
	rec.Close() //nolint:errcheck // reopened below

	rec2, err := NewFileRecorder(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer rec2.Close() //nolint:errcheck // test cleanup
	rec2.Record(Event{Type: EngineStarted, Actor: "engine"})

	all, err := ReadAll(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[2].Seq != 3 {
		t.Errorf("events = %+v, want third event with seq 3", all)
	}
}

func TestFileRecorderRotates(t *testing.T) {
	rec, path, stderr := newRecorder(t)
	rec.SetMaxBytes(200)
	for i := 0; i < 10; i++ {
		rec.Record(Event{Type: TickCompleted, Actor: "engine", Message: strings.Repeat("x", 40)})
	}
	if stderr.Len() > 0 {
		t.Fatalf("stderr: %s", stderr.String())
	}
	backup, err := ReadAll(backupPath(path))
	if err != nil || len(backup) == 0 {
		t.Fatalf("backup = %d events, %v, want some", len(backup), err)
	}
	current, err := ReadAll(path)
	if err != nil || len(current) == 0 {
		t.Fatalf("current = %d events, %v, want some", len(current), err)
	}
	if current[0].Seq <= backup[len(backup)-1].Seq {
		t.Errorf("seq restarted after rotation: %d <= %d", current[0].Seq, backup[len(backup)-1].Seq)
	}
	if latest, _ := rec.LatestSeq(); latest != 10 {
		t.Errorf("LatestSeq = %d, want 10", latest)
	}

	rec.Close() //nolint:errcheck // reopened below
	rec2, err := NewFileRecorder(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer rec2.Close() //nolint:errcheck // test cleanup
	if latest, _ := rec2.LatestSeq(); latest != 10 {
		t.Errorf("reopened LatestSeq = %d, want 10", latest)
	}
}

func TestReadAllMissingAndMalformed(t *testing.T) {
	dir := t.TempDir()
	got, err := ReadAll(filepath.Join(dir, "nope.jsonl"))
	if err != nil || got != nil {
		t.Errorf("missing file = %v, %v, want nil, nil", got, err)
	}

	path := filepath.Join(dir, "events.jsonl")
	content := `{"seq":1,"type":"engine.started","actor":"engine"}
not json
{"seq":2,"type":"engine.stopped","actor":"engine"}
{"seq":3,"type":"tick.comp`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = ReadAll(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].Type != EngineStopped {
		t.Errorf("ReadAll = %+v, want 2 well-formed events", got)
	}
	if seq, _ := ReadLatestSeq(path); seq != 2 {
		t.Errorf("ReadLatestSeq = %d, want 2", seq)
	}
}

func TestReadFromOffsets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	line1 := `{"seq":1,"type":"engine.started","actor":"engine"}` + "\n"
	line2 := `{"seq":2,"type":"tick.completed","actor":"engine"}` + "\n"
	if err := os.WriteFile(path, []byte(line1), 0o644); err != nil {
		t.Fatal(err)
	}
	evts, off, err := ReadFrom(path, 0)
	if err != nil || len(evts) != 1 || off != int64(len(line1)) {
		t.Fatalf("ReadFrom(0) = %d events, off %d, %v", len(evts), off, err)
	}

	evts, off2, err := ReadFrom(path, off)
	if err != nil || len(evts) != 0 || off2 != off {
		t.Fatalf("ReadFrom(no new data) = %d events, off %d, %v", len(evts), off2, err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString(line2) //nolint:errcheck // test fixture
	f.Close()            //nolint:errcheck // test fixture
	evts, _, err = ReadFrom(path, off)
	if err != nil || len(evts) != 1 || evts[0].Seq != 2 {
		t.Errorf("ReadFrom(appended) = %+v, %v", evts, err)
	}
}

func TestReadFromRestartsAfterTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	line := `{"seq":9,"type":"engine.started","actor":"engine"}` + "\n"
	if err := os.WriteFile(path, []byte(line), 0o644); err != nil {
		t.Fatal(err)
	}
	evts, _, err := ReadFrom(path, 10_000)
	if err != nil || len(evts) != 1 {
		t.Errorf("ReadFrom past EOF = %d events, %v, want 1", len(evts), err)
	}
}

func TestFileWatcherFollowsForeignLog(t *testing.T) {
	rec, path, _ := newRecorder(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w := NewFileWatcher(ctx, path, 0)

	go func() {
		time.Sleep(50 * time.Millisecond)
		rec.Record(Event{Type: BudgetExhausted, Actor: "engine", Subject: "A.java"})
	}()
	e, err := w.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if e.Type != BudgetExhausted || e.Subject != "A.java" {
		t.Errorf("Next = %+v", e)
	}
}

func TestFakeTypes(t *testing.T) {
	f := NewFake()
	f.Record(Event{Type: EngineStarted})
	f.Record(Event{Type: EngineStopped})
	got := f.Types()
	if len(got) != 2 || got[0] != EngineStarted || got[1] != EngineStopped {
		t.Errorf("Types = %v", got)
	}
}

func TestFailFakeErrors(t *testing.T) {
	var p Provider = FailFake{}
	p.Record(Event{Type: EngineStarted})
	if _, err := p.List(Filter{}); !errors.Is(err, ErrFailFake) {
		t.Errorf("List err = %v", err)
	}
	if _, err := p.LatestSeq(); !errors.Is(err, ErrFailFake) {
		t.Errorf("LatestSeq err = %v", err)
	}
	if _, err := p.Watch(context.Background(), 0); !errors.Is(err, ErrFailFake) {
		t.Errorf("Watch err = %v", err)
	}
}

func TestDiscardDoesNothing(_ *testing.T) {
	Discard.Record(Event{Type: EngineStarted})
}

func TestMarshalPayload(t *testing.T) {
	if got := string(MarshalPayload(map[string]int{"applied": 1})); got != `{"applied":1}` {
		t.Errorf("MarshalPayload = %s", got)
	}
	if got := MarshalPayload(make(chan int)); got != nil {
		t.Errorf("unencodable payload = %s, want nil", got)
	}
}
