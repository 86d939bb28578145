package writeback

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/modforge/cdengine/internal/fsys"
)

const root = "/proj"

func abs(rel string) string { return filepath.Join(root, rel) }

func TestFileDocuments_WriteThenCommit(t *testing.T) {
	fs := fsys.NewFake()
	fs.Files[abs("src/Mod.java")] = []byte("old")
	d := NewFileDocuments(fs, root)

	if err := d.WriteText("src/Mod.java", "new"); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	if got, _ := d.ReadText("src/Mod.java"); got != "old" {
		t.Errorf("ReadText before Commit = %q, want old", got)
	}
	if err := d.Commit("src/Mod.java"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got, _ := d.ReadText("src/Mod.java"); got != "new" {
		t.Errorf("ReadText after Commit = %q, want new", got)
	}
	if _, ok := fs.File(abs("src/Mod.java") + pendingSuffix); ok {
		t.Error("staged file left behind")
	}
}

func TestFileDocuments_CommitWithoutWriteIsNoop(t *testing.T) {
	fs := fsys.NewFake()
	d := NewFileDocuments(fs, root)
	if err := d.Commit("src/A.java"); err != nil {
		t.Errorf("Commit = %v, want nil", err)
	}
	if fs.CallCount("Rename", abs("src/A.java")+pendingSuffix) != 0 {
		t.Error("unexpected rename")
	}
}

func TestFileDocuments_RejectsEscapes(t *testing.T) {
	d := NewFileDocuments(fsys.NewFake(), root)
	for _, name := range []string{"", "../etc/passwd", "/etc/passwd", "src/../../x"} {
		if err := d.WriteText(name, "x"); err == nil {
			t.Errorf("WriteText(%q) succeeded, want error", name)
		}
	}
}

func TestFileDocuments_StageErrorLeavesFile(t *testing.T) {
	fs := fsys.NewFake()
	fs.Files[abs("A.java")] = []byte("old")
	fs.SetError(abs("A.java")+pendingSuffix, errors.New("disk full"))
	d := NewFileDocuments(fs, root)

	if err := d.WriteText("A.java", "new"); err == nil {
		t.Fatal("expected staging error")
	}
	if got, _ := fs.File(abs("A.java")); string(got) != "old" {
		t.Errorf("file = %q, want old", got)
	}
}

func TestFileDocuments_ReadMissing(t *testing.T) {
	d := NewFileDocuments(fsys.NewFake(), root)
	if _, err := d.ReadText("nope.java"); err == nil {
		t.Error("expected error reading missing file")
	}
}

func TestFileDocuments_CommitKeepsMode(t *testing.T) {
	fs := fsys.NewFake()
	if err := fs.WriteFile(abs("run.sh"), []byte("echo old"), 0o755); err != nil {
		t.Fatal(err)
	}
	// A stale staged file from an interrupted write has the wrong mode.
	if err := fs.WriteFile(abs("run.sh")+pendingSuffix, []byte("stale"), 0o600); err != nil {
		t.Fatal(err)
	}
	d := NewFileDocuments(fs, root)

	if err := d.WriteText("run.sh", "echo new"); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	if err := d.Commit("run.sh"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	fi, err := fs.Stat(abs("run.sh"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if fi.Mode().Perm() != 0o755 {
		t.Errorf("mode after commit = %v, want 0755", fi.Mode().Perm())
	}
	if got, _ := fs.File(abs("run.sh")); string(got) != "echo new" {
		t.Errorf("content = %q, want echo new", got)
	}
}
