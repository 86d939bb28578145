// Package auth provides the session collaborator the engine consults at
// the top of every tick.
package auth

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/modforge/cdengine/internal/config"
	"github.com/modforge/cdengine/internal/fsys"
)

// EnvToken supplies the bearer token directly.
const EnvToken = "CDE_TOKEN"

// TokenFile is the token file name inside the project state directory.
const TokenFile = "token"

// Provider reports authentication state and the current bearer token.
type Provider interface {
	IsAuthenticated() bool
	AccessToken() string
}

// EnvOrFile reads CDE_TOKEN, falling back to <project>/.cde/token. The
// source is re-read on every call so logging in or out between ticks
// takes effect on the next tick.
type EnvOrFile struct {
	fs   fsys.FS
	path string
}

// NewEnvOrFile returns an EnvOrFile for the given project root.
func NewEnvOrFile(fs fsys.FS, projectRoot string) *EnvOrFile {
	return &EnvOrFile{fs: fs, path: TokenPath(projectRoot)}
}

// TokenPath returns the token file path for a project root.
func TokenPath(projectRoot string) string {
	return filepath.Join(projectRoot, config.DirName, TokenFile)
}

// AccessToken returns the current token or "" when logged out.
func (a *EnvOrFile) AccessToken() string {
	if v := strings.TrimSpace(os.Getenv(EnvToken)); v != "" {
		return v
	}
	data, err := a.fs.ReadFile(a.path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// IsAuthenticated reports whether a non-empty token is available.
func (a *EnvOrFile) IsAuthenticated() bool {
	return a.AccessToken() != ""
}

// Static is a fixed Provider for tests. The zero value is logged out.
type Static struct {
	mu    sync.Mutex
	token string
}

// NewStatic returns a Static provider logged in with token.
func NewStatic(token string) *Static {
	return &Static{token: token}
}

// SetToken logs in with token, or logs out when token is "".
func (s *Static) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// AccessToken implements [Provider].
func (s *Static) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// IsAuthenticated implements [Provider].
func (s *Static) IsAuthenticated() bool {
	return s.AccessToken() != ""
}

var (
	_ Provider = (*EnvOrFile)(nil)
	_ Provider = (*Static)(nil)
)
