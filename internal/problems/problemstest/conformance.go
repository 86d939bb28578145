// Package problemstest provides a conformance test suite for
// problems.Provider implementations. Each implementation's test file
// calls RunProviderTests with a factory that serves a given fixture.
package problemstest

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/modforge/cdengine/internal/problems"
)

// Fixture maps files to the problems the provider must report for them.
type Fixture map[problems.FileID][]problems.Record

// Factory returns a provider that reports exactly fixture.
type Factory func(t *testing.T, fixture Fixture) problems.Provider

// RunProviderTests runs the core conformance suite against a Provider.
func RunProviderTests(t *testing.T, newProvider Factory) {
	t.Helper()
	ctx := context.Background()

	t.Run("EmptyProject", func(t *testing.T) {
		p := newProvider(t, Fixture{})
		res, err := problems.Scan(ctx, p)
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		if !res.Empty() {
			t.Errorf("Scan found %d files, want 0", len(res.Files))
		}
	})

	t.Run("ScanOrdersFilesAndKeepsRecords", func(t *testing.T) {
		fixture := Fixture{
			"src/main/java/mod/Zeta.java": {
				{Message: "';' expected", Severity: problems.SeverityError, Line: 12, Column: 30},
			},
			"src/main/java/mod/Alpha.java": {
				{Message: "cannot find symbol: class Item", Severity: problems.SeverityError, Line: 3},
				{Message: "unused import", Severity: problems.SeverityWarning},
			},
		}
		p := newProvider(t, fixture)
		res, err := problems.Scan(ctx, p)
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		want := []problems.File{
			{ID: "src/main/java/mod/Alpha.java", Problems: fixture["src/main/java/mod/Alpha.java"]},
			{ID: "src/main/java/mod/Zeta.java", Problems: fixture["src/main/java/mod/Zeta.java"]},
		}
		if diff := cmp.Diff(want, res.Files); diff != "" {
			t.Errorf("Scan files mismatch (-want +got):\n%s", diff)
		}
		if res.ProblemCount() != 3 {
			t.Errorf("ProblemCount = %d, want 3", res.ProblemCount())
		}
	})

	t.Run("ListMatchesProblemsFor", func(t *testing.T) {
		fixture := Fixture{
			"src/Mod.java": {{Message: "boom", Severity: problems.SeverityError, Line: 1}},
		}
		p := newProvider(t, fixture)
		ids, err := p.ListProblemFiles(ctx)
		if err != nil {
			t.Fatalf("ListProblemFiles: %v", err)
		}
		if len(ids) != 1 || ids[0] != "src/Mod.java" {
			t.Fatalf("ListProblemFiles = %v, want [src/Mod.java]", ids)
		}
		recs, err := p.ProblemsFor(ctx, ids[0])
		if err != nil {
			t.Fatalf("ProblemsFor: %v", err)
		}
		if diff := cmp.Diff(fixture["src/Mod.java"], recs); diff != "" {
			t.Errorf("ProblemsFor mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("UnknownFileHasNoProblems", func(t *testing.T) {
		p := newProvider(t, Fixture{
			"src/Mod.java": {{Message: "boom"}},
		})
		recs, err := p.ProblemsFor(ctx, "src/Other.java")
		if err != nil {
			t.Fatalf("ProblemsFor unknown file: %v", err)
		}
		if len(recs) != 0 {
			t.Errorf("ProblemsFor unknown file = %v, want none", recs)
		}
	})

	t.Run("FormatBatchesAllProblems", func(t *testing.T) {
		fixture := Fixture{
			"src/Mod.java": {
				{Message: "first", Severity: problems.SeverityError, Line: 1},
				{Message: "second", Severity: problems.SeverityWarning, Line: 2},
			},
		}
		p := newProvider(t, fixture)
		recs, err := p.ProblemsFor(ctx, "src/Mod.java")
		if err != nil {
			t.Fatalf("ProblemsFor: %v", err)
		}
		got := problems.Format(recs)
		want := "ERROR Line 1: first\nWARNING Line 2: second"
		if got != want {
			t.Errorf("Format = %q, want %q", got, want)
		}
	})
}
