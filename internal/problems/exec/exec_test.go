package exec //nolint:revive // internal package, always imported with alias

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/modforge/cdengine/internal/problems"
	"github.com/modforge/cdengine/internal/problems/problemstest"
)

// writeScript creates an executable shell script in dir and returns its path.
func writeScript(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "diagnostics")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+content), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

// fixtureScript returns a script body that serves fixture. Each file's
// records are written to a side file to keep quoting trivial.
func fixtureScript(t *testing.T, dir string, fixture problemstest.Fixture) string {
	t.Helper()
	ids := make([]string, 0, len(fixture))
	for id := range fixture {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	list, err := json.Marshal(ids)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "list.json"), list, 0o644); err != nil {
		t.Fatal(err)
	}
	var cases strings.Builder
	for i, id := range ids {
		data, err := json.Marshal(fixture[problems.FileID(id)])
		if err != nil {
			t.Fatal(err)
		}
		name := filepath.Join(dir, "rec"+string(rune('a'+i))+".json")
		if err := os.WriteFile(name, data, 0o644); err != nil {
			t.Fatal(err)
		}
		cases.WriteString("      \"" + id + "\") cat \"" + name + "\" ;;\n")
	}
	return `
case "$1" in
  ensure-running) ;;
  list) cat "` + filepath.Join(dir, "list.json") + `" ;;
  problems)
    case "$2" in
` + cases.String() + `      *) echo '[]' ;;
    esac
    ;;
  *) exit 2 ;;
esac
`
}

func TestExecConformance(t *testing.T) {
	problemstest.RunProviderTests(t, func(t *testing.T, fixture problemstest.Fixture) problems.Provider {
		t.Helper()
		dir := t.TempDir()
		script := writeScript(t, dir, fixtureScript(t, dir, fixture))
		return NewProvider(script, dir, 0, nil)
	})
}

func TestNotReadyExit75(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `
case "$1" in
  list) echo '["src/Mod.java"]' ;;
  problems) exit 75 ;;
  *) exit 2 ;;
esac
`)
	p := NewProvider(script, dir, 0, nil)
	_, err := p.ProblemsFor(context.Background(), "src/Mod.java")
	if !errors.Is(err, problems.ErrNotReady) {
		t.Fatalf("ProblemsFor error = %v, want ErrNotReady", err)
	}

	res, err := problems.Scan(context.Background(), p)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !res.Empty() || len(res.NotReady) != 1 {
		t.Errorf("Scan = %+v, want no files and one not-ready", res)
	}
}

func TestUnknownOpIsEmpty(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `exit 2`)
	p := NewProvider(script, dir, 0, nil)

	ids, err := p.ListProblemFiles(context.Background())
	if err != nil {
		t.Fatalf("ListProblemFiles: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("ids = %v, want none", ids)
	}
}

func TestScriptFailureIncludesStderr(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `echo "gradle daemon crashed" >&2; exit 1`)
	p := NewProvider(script, dir, 0, nil)

	_, err := p.ListProblemFiles(context.Background())
	if err == nil || !strings.Contains(err.Error(), "gradle daemon crashed") {
		t.Errorf("error = %v, want stderr text", err)
	}
}

func TestMalformedOutput(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `echo 'not json'`)
	p := NewProvider(script, dir, 0, nil)

	if _, err := p.ListProblemFiles(context.Background()); err == nil {
		t.Error("expected unmarshal error")
	}
}

func TestEnsureRunningCalledOnce(t *testing.T) {
	dir := t.TempDir()
	counter := filepath.Join(dir, "ensure-count")
	script := writeScript(t, dir, `
case "$1" in
  ensure-running) echo x >> "`+counter+`" ;;
  list) echo '[]' ;;
  *) exit 2 ;;
esac
`)
	p := NewProvider(script, dir, 0, nil)
	for i := 0; i < 3; i++ {
		if _, err := p.ListProblemFiles(context.Background()); err != nil {
			t.Fatalf("ListProblemFiles: %v", err)
		}
	}
	data, err := os.ReadFile(counter)
	if err != nil {
		t.Fatalf("read counter: %v", err)
	}
	if n := strings.Count(string(data), "x"); n != 1 {
		t.Errorf("ensure-running called %d times, want 1", n)
	}
}

func TestEnsureRunningFailureLogged(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `
case "$1" in
  ensure-running) echo "no gradle" >&2; exit 1 ;;
  list) echo '[]' ;;
  *) exit 2 ;;
esac
`)
	var stderr bytes.Buffer
	p := NewProvider(script, dir, 0, &stderr)
	if _, err := p.ListProblemFiles(context.Background()); err != nil {
		t.Fatalf("ListProblemFiles: %v", err)
	}
	if !strings.Contains(stderr.String(), "no gradle") {
		t.Errorf("stderr = %q, want ensure-running failure", stderr.String())
	}
}

func TestProjectRootEnvAndDir(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `
case "$1" in
  list) printf '["%s|%s"]' "$CDE_PROJECT_ROOT" "$(pwd)" ;;
  *) exit 2 ;;
esac
`)
	p := NewProvider(script, dir, 0, nil)
	ids, err := p.ListProblemFiles(context.Background())
	if err != nil {
		t.Fatalf("ListProblemFiles: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("ids = %v", ids)
	}
	parts := strings.SplitN(string(ids[0]), "|", 2)
	if parts[0] != dir {
		t.Errorf("CDE_PROJECT_ROOT = %q, want %q", parts[0], dir)
	}
	// pwd may resolve symlinks in the temp dir.
	if filepath.Base(parts[1]) != filepath.Base(dir) {
		t.Errorf("working dir = %q, want %q", parts[1], dir)
	}
}

func TestTimeout(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `
case "$1" in
  list) exec sleep 10 ;;
  *) exit 2 ;;
esac
`)
	p := NewProvider(script, dir, 100*time.Millisecond, nil)
	start := time.Now()
	if _, err := p.ListProblemFiles(context.Background()); err == nil {
		t.Error("expected timeout error")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout not enforced")
	}
}
