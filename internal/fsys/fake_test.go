package fsys

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestFakeStatDir(t *testing.T) {
	f := NewFake()
	f.Dirs["/proj/.cde"] = true

	fi, err := f.Stat("/proj/.cde")
	if err != nil {
		t.Fatalf("Stat existing dir: %v", err)
	}
	if !fi.IsDir() {
		t.Error("expected IsDir() = true")
	}
	if fi.Name() != ".cde" {
		t.Errorf("Name() = %q, want %q", fi.Name(), ".cde")
	}
}

func TestFakeStatFile(t *testing.T) {
	f := NewFake()
	f.Files["/proj/.cde/engine.toml"] = []byte("hello")

	fi, err := f.Stat("/proj/.cde/engine.toml")
	if err != nil {
		t.Fatalf("Stat existing file: %v", err)
	}
	if fi.IsDir() {
		t.Error("expected IsDir() = false for file")
	}
	if fi.Size() != 5 {
		t.Errorf("Size() = %d, want 5", fi.Size())
	}
}

func TestFakeStatMissing(t *testing.T) {
	f := NewFake()

	_, err := f.Stat("/no/such/path")
	if err == nil {
		t.Fatal("expected error for missing path")
	}
	if !os.IsNotExist(err) {
		t.Errorf("expected os.IsNotExist, got: %v", err)
	}
}

func TestFakeStatErrorInjection(t *testing.T) {
	f := NewFake()
	injected := fmt.Errorf("disk on fire")
	f.Errors["/proj/.cde"] = injected

	_, err := f.Stat("/proj/.cde")
	if !errors.Is(err, injected) {
		t.Errorf("Stat error = %v, want %v", err, injected)
	}
}

func TestFakeMkdirAll(t *testing.T) {
	f := NewFake()

	if err := f.MkdirAll("/proj/src/main/java", 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for _, d := range []string{"/proj/src/main/java", "/proj/src/main", "/proj/src", "/proj"} {
		if !f.Dirs[d] {
			t.Errorf("Dirs[%q] = false, want true", d)
		}
	}
	if len(f.Calls) != 1 || f.Calls[0].Method != "MkdirAll" {
		t.Errorf("Calls = %+v, want single MkdirAll", f.Calls)
	}
}

func TestFakeWriteThenReadFile(t *testing.T) {
	f := NewFake()

	data := []byte("class Mod {}\n")
	if err := f.WriteFile("/proj/Mod.java", data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	// Mutating the caller's slice must not leak into the fake.
	data[0] = 'X'

	got, err := f.ReadFile("/proj/Mod.java")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "class Mod {}\n" {
		t.Errorf("ReadFile = %q, want %q", got, "class Mod {}\n")
	}
	if n := f.CallCount("WriteFile", "/proj/Mod.java"); n != 1 {
		t.Errorf("CallCount(WriteFile) = %d, want 1", n)
	}
}

func TestFakeReadFileMissing(t *testing.T) {
	f := NewFake()
	if _, err := f.ReadFile("/proj/nope.java"); !os.IsNotExist(err) {
		t.Errorf("ReadFile missing error = %v, want not-exist", err)
	}
}

func TestFakeWriteFileError(t *testing.T) {
	f := NewFake()
	injected := fmt.Errorf("read-only fs")
	f.SetError("/proj/Mod.java", injected)

	err := f.WriteFile("/proj/Mod.java", []byte("x"), 0o644)
	if !errors.Is(err, injected) {
		t.Errorf("WriteFile error = %v, want %v", err, injected)
	}

	f.SetError("/proj/Mod.java", nil)
	if err := f.WriteFile("/proj/Mod.java", []byte("x"), 0o644); err != nil {
		t.Errorf("WriteFile after clearing error: %v", err)
	}
}

func TestFakeReadDir(t *testing.T) {
	f := NewFake()
	f.Dirs["/proj/src/alpha"] = true
	f.Dirs["/proj/src/beta"] = true
	f.Files["/proj/src/Mod.java"] = []byte("x")

	entries, err := f.ReadDir("/proj/src")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3: %+v", len(entries), entries)
	}

	want := []struct {
		name  string
		isDir bool
	}{
		{"Mod.java", false},
		{"alpha", true},
		{"beta", true},
	}
	for i, w := range want {
		if entries[i].Name() != w.name {
			t.Errorf("entry[%d].Name() = %q, want %q", i, entries[i].Name(), w.name)
		}
		if entries[i].IsDir() != w.isDir {
			t.Errorf("entry[%d].IsDir() = %v, want %v", i, entries[i].IsDir(), w.isDir)
		}
	}
}

func TestFakeRename(t *testing.T) {
	f := NewFake()
	f.Files["/proj/Mod.java.cde-tmp"] = []byte("fixed")

	if err := f.Rename("/proj/Mod.java.cde-tmp", "/proj/Mod.java"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, ok := f.File("/proj/Mod.java.cde-tmp"); ok {
		t.Error("old path still exists after Rename")
	}
	if got, _ := f.File("/proj/Mod.java"); string(got) != "fixed" {
		t.Errorf("new path content = %q, want %q", got, "fixed")
	}
}

func TestFakeRenameMissing(t *testing.T) {
	f := NewFake()

	err := f.Rename("/no/such/file", "/proj/Mod.java")
	if !os.IsNotExist(err) {
		t.Errorf("expected os.IsNotExist, got: %v", err)
	}
}

func TestFakeRemove(t *testing.T) {
	f := NewFake()
	f.Files["/proj/.cde/token"] = []byte("tok")

	if err := f.Remove("/proj/.cde/token"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := f.File("/proj/.cde/token"); ok {
		t.Error("file still present after Remove")
	}
	if err := f.Remove("/proj/.cde/token"); !os.IsNotExist(err) {
		t.Errorf("second Remove error = %v, want not-exist", err)
	}
}

func TestFakeModes(t *testing.T) {
	f := NewFake()
	if err := f.WriteFile("/proj/gradlew", []byte("#!/bin/sh"), 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	// perm only applies on create.
	if err := f.WriteFile("/proj/gradlew", []byte("#!/bin/sh\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	fi, err := f.Stat("/proj/gradlew")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if fi.Mode() != 0o755 {
		t.Errorf("Mode() = %v, want 0755", fi.Mode())
	}

	if err := f.Chmod("/proj/gradlew", 0o700); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	if err := f.Rename("/proj/gradlew", "/proj/gradlew2"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if fi, _ := f.Stat("/proj/gradlew2"); fi.Mode() != 0o700 {
		t.Errorf("Mode() after Chmod+Rename = %v, want 0700", fi.Mode())
	}
	if err := f.Chmod("/proj/missing", 0o644); !os.IsNotExist(err) {
		t.Errorf("Chmod missing error = %v, want not-exist", err)
	}
}
