package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// maxLineBytes bounds one JSONL record; tick payloads stay far below it.
const maxLineBytes = 1 << 20

// Filter selects events. Zero-valued fields match everything.
type Filter struct {
	Type     string    // match events with this Type
	Actor    string    // match events with this Actor
	Subject  string    // match events about this file
	Since    time.Time // match events at or after this time
	AfterSeq uint64    // match events with Seq > AfterSeq
	Tail     int       // keep only the last Tail matches (0 = all)
}

// Match reports whether e passes every predicate in f. Tail is not a
// predicate and is ignored.
func (f Filter) Match(e Event) bool {
	switch {
	case f.AfterSeq > 0 && e.Seq <= f.AfterSeq:
		return false
	case f.Type != "" && e.Type != f.Type:
		return false
	case f.Actor != "" && e.Actor != f.Actor:
		return false
	case f.Subject != "" && e.Subject != f.Subject:
		return false
	case !f.Since.IsZero() && e.Ts.Before(f.Since):
		return false
	}
	return true
}

// Apply returns the events in all that match f, honoring Tail.
func (f Filter) Apply(all []Event) []Event {
	var out []Event
	for _, e := range all {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	if f.Tail > 0 && len(out) > f.Tail {
		out = out[len(out)-f.Tail:]
	}
	return out
}

// scanEvents decodes each well-formed line of r, calling fn per event.
// Malformed lines, such as a torn final write, are skipped. It returns
// the number of bytes consumed through the last complete line.
func scanEvents(r io.Reader, fn func(Event)) (int64, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var n int64
	for sc.Scan() {
		line := sc.Bytes()
		n += int64(len(line)) + 1
		var e Event
		if json.Unmarshal(line, &e) != nil {
			continue
		}
		fn(e)
	}
	return n, sc.Err()
}

// ReadAll reads every event from the JSONL file at path. A missing file
// yields (nil, nil).
func ReadAll(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading events: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	var all []Event
	if _, err := scanEvents(f, func(e Event) { all = append(all, e) }); err != nil {
		return all, fmt.Errorf("scanning events: %w", err)
	}
	return all, nil
}

// ReadFiltered reads the events at path that match filter.
func ReadFiltered(path string, filter Filter) ([]Event, error) {
	all, err := ReadAll(path)
	if err != nil {
		return nil, err
	}
	return filter.Apply(all), nil
}

// ReadLatestSeq returns the highest Seq at path, or 0 for a missing or
// empty log.
func ReadLatestSeq(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading latest seq: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	var latest uint64
	_, err = scanEvents(f, func(e Event) {
		if e.Seq > latest {
			latest = e.Seq
		}
	})
	if err != nil {
		return latest, fmt.Errorf("scanning events: %w", err)
	}
	return latest, nil
}

// ReadFrom reads events from byte offset onward and returns them with
// the offset just past the last complete line. When the file is shorter
// than offset (it was rotated) reading restarts from the beginning.
func ReadFrom(path string, offset int64) ([]Event, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, offset, nil
		}
		return nil, offset, fmt.Errorf("reading events: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	if fi, err := f.Stat(); err == nil && fi.Size() < offset {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seeking events: %w", err)
	}

	var out []Event
	n, err := scanEvents(f, func(e Event) { out = append(out, e) })
	if err != nil {
		return out, offset + n, fmt.Errorf("scanning events: %w", err)
	}
	return out, offset + n, nil
}
