package writeback

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/modforge/cdengine/internal/fsys"
)

func TestApplier_Apply(t *testing.T) {
	fs := fsys.NewFake()
	fs.Files[abs("src/Mod.java")] = []byte("broken")
	e := NewExecutor()
	defer e.Close()
	a := NewApplier(e, NewFileDocuments(fs, root), nil)

	if !a.Apply(context.Background(), "src/Mod.java", "fixed") {
		t.Fatal("Apply = false, want true")
	}
	if got, _ := fs.File(abs("src/Mod.java")); string(got) != "fixed" {
		t.Errorf("file = %q, want fixed", got)
	}
}

func TestApplier_FailureLogged(t *testing.T) {
	fs := fsys.NewFake()
	fs.SetError(abs("src/Mod.java")+pendingSuffix, errors.New("read-only filesystem"))
	e := NewExecutor()
	defer e.Close()
	var stderr bytes.Buffer
	a := NewApplier(e, NewFileDocuments(fs, root), &stderr)

	if a.Apply(context.Background(), "src/Mod.java", "fixed") {
		t.Fatal("Apply = true, want false")
	}
	if !strings.Contains(stderr.String(), "writeback: src/Mod.java:") || !strings.Contains(stderr.String(), "read-only filesystem") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestApplier_ClosedExecutor(t *testing.T) {
	e := NewExecutor()
	e.Close()
	a := NewApplier(e, NewFileDocuments(fsys.NewFake(), root), nil)
	if a.Apply(context.Background(), "A.java", "x") {
		t.Error("Apply on closed executor = true, want false")
	}
}
