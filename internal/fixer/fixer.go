// Package fixer is the Fix Invoker. It sends one file's source and its
// batched problem text to the AI fix backend and classifies the reply.
//
// An empty, echoed or malformed reply is [NoChange], a legitimate
// "nothing to fix" outcome. Only network and backend errors are [Failed].
package fixer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrEmptySource is the Failed reason for a request with no source text.
	ErrEmptySource = errors.New("empty source text")
	// ErrNoToken is the Failed reason when no access token is available.
	ErrNoToken = errors.New("no access token")
)

// Request is one file's fix request.
type Request struct {
	// File is the project-relative path, used for logging and the
	// language hint.
	File string
	// SourceText is the current file content. Must be non-empty.
	SourceText string
	// FormattedProblems is every problem for the file, one per line.
	FormattedProblems string
	// Language is the backend language tag.
	Language string
	// Timeout bounds the whole call, retries included. Zero means the
	// caller's context alone bounds it.
	Timeout time.Duration
}

// Outcome classifies a [Result].
type Outcome int

const (
	// Applied means NewSource should replace the file.
	Applied Outcome = iota
	// NoChange means the backend had nothing to fix.
	NoChange
	// Failed means the backend could not be reached or rejected the call.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case NoChange:
		return "no_change"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the sum of Applied(NewSource), NoChange and Failed(Reason).
type Result struct {
	Outcome   Outcome
	NewSource string
	// Explanation is the backend's optional note on an applied fix.
	Explanation string
	Reason      error
}

// AppliedResult returns an Applied result.
func AppliedResult(src, explanation string) Result {
	return Result{Outcome: Applied, NewSource: src, Explanation: explanation}
}

// NoChangeResult returns a NoChange result.
func NoChangeResult() Result {
	return Result{Outcome: NoChange}
}

// FailedResult returns a Failed result.
func FailedResult(reason error) Result {
	return Result{Outcome: Failed, Reason: reason}
}

// Invoker fixes one file. Implementations never return Applied with
// NewSource equal to the request's SourceText.
type Invoker interface {
	Fix(ctx context.Context, req Request) Result
}

// Classify turns a backend reply into a Result: empty or echoed text is
// NoChange, anything else is Applied.
func Classify(original, fixed, explanation string) Result {
	if strings.TrimSpace(fixed) == "" {
		return NoChangeResult()
	}
	if normalize(fixed) == normalize(original) {
		return NoChangeResult()
	}
	return AppliedResult(fixed, explanation)
}

// normalize ignores line-ending and trailing-whitespace differences a
// backend may introduce when echoing.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(s)
}
