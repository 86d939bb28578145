package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultMaxBytes is the log size at which FileRecorder rotates.
const DefaultMaxBytes = 8 << 20

// FileRecorder appends events to a JSONL file and implements [Provider].
// Writes use O_APPEND and an in-process mutex. When the file grows past
// its size limit it is renamed to <path>.1 (replacing any older backup)
// and a fresh file is started; sequence numbers keep increasing.
type FileRecorder struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	size     int64
	maxBytes int64
	seq      uint64
	stderr   io.Writer
}

// NewFileRecorder opens or creates the log at path, creating parent
// directories. Sequence numbering resumes after the highest Seq found
// in the existing log or its backup.
func NewFileRecorder(path string, stderr io.Writer) (*FileRecorder, error) {
	if stderr == nil {
		stderr = io.Discard
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating event log directory: %w", err)
	}
	var seq uint64
	for _, p := range []string{backupPath(path), path} {
		s, err := ReadLatestSeq(p)
		if err != nil {
			return nil, err
		}
		seq = max(seq, s)
	}

	r := &FileRecorder{path: path, maxBytes: DefaultMaxBytes, seq: seq, stderr: stderr}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func backupPath(path string) string { return path + ".1" }

func (r *FileRecorder) open() error {
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening event log: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close() //nolint:errcheck // already failing
		return fmt.Errorf("stat event log: %w", err)
	}
	r.file = f
	r.size = fi.Size()
	return nil
}

// SetMaxBytes changes the rotation threshold. n <= 0 disables rotation.
func (r *FileRecorder) SetMaxBytes(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxBytes = n
}

// Path returns the log file path.
func (r *FileRecorder) Path() string { return r.path }

// Record appends e, filling Seq and a zero Ts.
func (r *FileRecorder) Record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	e.Seq = r.seq
	if e.Ts.IsZero() {
		e.Ts = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		fmt.Fprintf(r.stderr, "events: marshal %s: %v\n", e.Type, err) //nolint:errcheck // best-effort stderr
		return
	}
	data = append(data, '\n')

	if r.maxBytes > 0 && r.size > 0 && r.size+int64(len(data)) > r.maxBytes {
		if err := r.rotate(); err != nil {
			fmt.Fprintf(r.stderr, "events: rotate: %v\n", err) //nolint:errcheck // best-effort stderr
		}
	}
	n, err := r.file.Write(data)
	r.size += int64(n)
	if err != nil {
		fmt.Fprintf(r.stderr, "events: write: %v\n", err) //nolint:errcheck // best-effort stderr
	}
}

// rotate moves the current log to its backup and reopens. The caller
// holds r.mu. On failure the current file stays open for appends.
func (r *FileRecorder) rotate() error {
	if err := r.file.Close(); err != nil {
		return err
	}
	renameErr := os.Rename(r.path, backupPath(r.path))
	if err := r.open(); err != nil {
		return err
	}
	return renameErr
}

// List implements [Provider].
func (r *FileRecorder) List(filter Filter) ([]Event, error) {
	return ReadFiltered(r.path, filter)
}

// LatestSeq implements [Provider].
func (r *FileRecorder) LatestSeq() (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq, nil
}

// Watch implements [Provider] by polling the log file.
func (r *FileRecorder) Watch(ctx context.Context, afterSeq uint64) (Watcher, error) {
	return NewFileWatcher(ctx, r.path, afterSeq), nil
}

// Close closes the underlying file.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

// pollInterval is how often a file watcher checks for new lines.
const pollInterval = 250 * time.Millisecond

type fileWatcher struct {
	ctx      context.Context
	path     string
	afterSeq uint64
	offset   int64
	buf      []Event
}

// NewFileWatcher follows the log at path without opening it for write.
// `cde events --follow` uses it against a log owned by a running engine.
func NewFileWatcher(ctx context.Context, path string, afterSeq uint64) Watcher {
	return &fileWatcher{ctx: ctx, path: path, afterSeq: afterSeq}
}

func (w *fileWatcher) Next() (Event, error) {
	for {
		if len(w.buf) > 0 {
			e := w.buf[0]
			w.buf = w.buf[1:]
			return e, nil
		}
		if err := w.ctx.Err(); err != nil {
			return Event{}, err
		}

		evts, off, err := ReadFrom(w.path, w.offset)
		if err != nil {
			return Event{}, err
		}
		w.offset = off
		for _, e := range evts {
			if e.Seq > w.afterSeq {
				w.afterSeq = e.Seq
				w.buf = append(w.buf, e)
			}
		}
		if len(w.buf) > 0 {
			continue
		}

		select {
		case <-w.ctx.Done():
			return Event{}, w.ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Close is a no-op; cancel the watch context to stop Next.
func (w *fileWatcher) Close() error { return nil }

var _ Provider = (*FileRecorder)(nil)
