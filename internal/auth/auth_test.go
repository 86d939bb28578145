package auth

import (
	"testing"

	"github.com/modforge/cdengine/internal/fsys"
)

func TestEnvOrFile_Env(t *testing.T) {
	t.Setenv(EnvToken, "  env-token\n")
	a := NewEnvOrFile(fsys.NewFake(), "/proj")
	if got := a.AccessToken(); got != "env-token" {
		t.Errorf("AccessToken = %q, want %q", got, "env-token")
	}
	if !a.IsAuthenticated() {
		t.Error("IsAuthenticated = false with env token")
	}
}

func TestEnvOrFile_FileFallback(t *testing.T) {
	t.Setenv(EnvToken, "")
	f := fsys.NewFake()
	f.Files["/proj/.cde/token"] = []byte("file-token\n")
	a := NewEnvOrFile(f, "/proj")
	if got := a.AccessToken(); got != "file-token" {
		t.Errorf("AccessToken = %q, want %q", got, "file-token")
	}
}

func TestEnvOrFile_EnvWinsOverFile(t *testing.T) {
	t.Setenv(EnvToken, "env")
	f := fsys.NewFake()
	f.Files["/proj/.cde/token"] = []byte("file")
	if got := NewEnvOrFile(f, "/proj").AccessToken(); got != "env" {
		t.Errorf("AccessToken = %q, want env", got)
	}
}

func TestEnvOrFile_LogoutObserved(t *testing.T) {
	t.Setenv(EnvToken, "")
	f := fsys.NewFake()
	f.Files["/proj/.cde/token"] = []byte("tok")
	a := NewEnvOrFile(f, "/proj")
	if !a.IsAuthenticated() {
		t.Fatal("expected authenticated")
	}
	delete(f.Files, "/proj/.cde/token")
	if a.IsAuthenticated() {
		t.Error("IsAuthenticated = true after token file removed")
	}
}

func TestEnvOrFile_BlankFileIsLoggedOut(t *testing.T) {
	t.Setenv(EnvToken, "")
	f := fsys.NewFake()
	f.Files["/proj/.cde/token"] = []byte("  \n")
	if NewEnvOrFile(f, "/proj").IsAuthenticated() {
		t.Error("blank token file should not authenticate")
	}
}

func TestStatic(t *testing.T) {
	var s Static
	if s.IsAuthenticated() {
		t.Error("zero Static should be logged out")
	}
	s.SetToken("abc")
	if !s.IsAuthenticated() || s.AccessToken() != "abc" {
		t.Errorf("after SetToken: auth=%v token=%q", s.IsAuthenticated(), s.AccessToken())
	}
}
