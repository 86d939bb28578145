package problems

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"time"
)

// ScanResult is the ordered set of files with problems found by one scan.
// It is produced fresh each tick and never reused.
type ScanResult struct {
	Files []File
	// NotReady lists files skipped because diagnostics were still computing.
	NotReady []FileID
	// Unavailable holds files skipped because the provider failed for them.
	Unavailable map[FileID]error
	// ScannedAt is when the scan started.
	ScannedAt time.Time
}

// Empty reports whether the scan found no problem files.
func (r ScanResult) Empty() bool { return len(r.Files) == 0 }

// ProblemCount returns the total number of records across all files.
func (r ScanResult) ProblemCount() int {
	n := 0
	for _, f := range r.Files {
		n += len(f.Problems)
	}
	return n
}

// Scan queries p for every problem file and its records. File IDs are
// cleaned, so "./src/A.java" and "src/A.java" are one file whose records
// are merged. Files are sorted by ID; files with no records are dropped;
// files whose diagnostics are not ready are listed in NotReady. Any other
// per-file error skips that file and is kept in Unavailable. Only an
// error listing files, or cancellation, fails the scan.
func Scan(ctx context.Context, p Provider) (ScanResult, error) {
	res := ScanResult{ScannedAt: time.Now()}
	ids, err := p.ListProblemFiles(ctx)
	if err != nil {
		return res, fmt.Errorf("listing problem files: %w", err)
	}
	ids = dedupe(ids)

	found := make(map[FileID][]Record)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		key := CleanID(id)
		recs, err := p.ProblemsFor(ctx, id)
		if errors.Is(err, ErrNotReady) {
			res.NotReady = append(res.NotReady, key)
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			if res.Unavailable == nil {
				res.Unavailable = make(map[FileID]error)
			}
			res.Unavailable[key] = err
			continue
		}
		if len(recs) > 0 {
			found[key] = append(found[key], recs...)
		}
	}
	for id, recs := range found {
		res.Files = append(res.Files, File{ID: id, Problems: recs})
	}
	sort.Slice(res.Files, func(i, j int) bool { return res.Files[i].ID < res.Files[j].ID })
	return res, nil
}

// CleanID returns id as a clean slash-separated path.
func CleanID(id FileID) FileID {
	return FileID(path.Clean(filepath.ToSlash(string(id))))
}

// dedupe drops empty and repeated IDs and sorts the rest.
func dedupe(ids []FileID) []FileID {
	seen := make(map[FileID]bool, len(ids))
	out := make([]FileID, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
