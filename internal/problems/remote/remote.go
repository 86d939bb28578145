// Package remote implements [problems.Provider] against the backend's
// compile API. Each scan uploads the project's source files once and
// serves per-file problems from that response.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/modforge/cdengine/internal/auth"
	"github.com/modforge/cdengine/internal/fixer"
	"github.com/modforge/cdengine/internal/fsys"
	"github.com/modforge/cdengine/internal/httpretry"
	"github.com/modforge/cdengine/internal/problems"
)

// maxFileBytes skips generated or vendored blobs that are not worth
// compiling remotely.
const maxFileBytes = 1 << 20

// skipDirs are never walked.
var skipDirs = map[string]bool{
	"build":        true,
	"out":          true,
	"run":          true,
	"bin":          true,
	".gradle":      true,
	".git":         true,
	".idea":        true,
	".cde":         true,
	"node_modules": true,
}

// compileRequest is the compile API payload.
type compileRequest struct {
	ProjectName string            `json:"projectName"`
	Files       map[string]string `json:"files"`
}

// compileResponse is the compile API reply. Problems is a flat list;
// each entry names its file.
type compileResponse struct {
	Problems []compileProblem `json:"problems"`
}

type compileProblem struct {
	File string `json:"file"`
	problems.Record
}

// Provider implements [problems.Provider] over the compile API.
type Provider struct {
	client  *httpretry.Client
	url     string
	auth    auth.Provider
	fs      fsys.FS
	root    string
	roots   []string
	project string
	stderr  io.Writer

	mu    sync.Mutex
	cache map[problems.FileID][]problems.Record
}

// Config configures a [Provider].
type Config struct {
	// URL is the absolute compile endpoint.
	URL string
	// ProjectRoot is the directory file IDs are relative to.
	ProjectRoot string
	// Roots are the absolute directories walked for source files.
	Roots []string
	// ProjectName is sent to the backend. Defaults to the root's base name.
	ProjectName string
}

// NewProvider returns a remote compile provider.
func NewProvider(cfg Config, client *httpretry.Client, a auth.Provider, fs fsys.FS, stderr io.Writer) *Provider {
	name := cfg.ProjectName
	if name == "" {
		name = filepath.Base(cfg.ProjectRoot)
	}
	return &Provider{
		client:  client,
		url:     cfg.URL,
		auth:    a,
		fs:      fs,
		root:    cfg.ProjectRoot,
		roots:   cfg.Roots,
		project: name,
		stderr:  stderr,
	}
}

// ListProblemFiles uploads the project and caches the reply for
// subsequent ProblemsFor calls in the same scan.
func (p *Provider) ListProblemFiles(ctx context.Context) ([]problems.FileID, error) {
	cache, err := p.compile(ctx)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.cache = cache
	p.mu.Unlock()

	ids := make([]problems.FileID, 0, len(cache))
	for id := range cache {
		ids = append(ids, id)
	}
	return ids, nil
}

// ProblemsFor serves from the last compile. Before any compile it
// compiles once.
func (p *Provider) ProblemsFor(ctx context.Context, file problems.FileID) ([]problems.Record, error) {
	p.mu.Lock()
	cache := p.cache
	p.mu.Unlock()
	if cache == nil {
		if _, err := p.ListProblemFiles(ctx); err != nil {
			return nil, err
		}
		p.mu.Lock()
		cache = p.cache
		p.mu.Unlock()
	}
	return append([]problems.Record(nil), cache[file]...), nil
}

func (p *Provider) compile(ctx context.Context) (map[problems.FileID][]problems.Record, error) {
	files, err := p.collect()
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(compileRequest{ProjectName: p.project, Files: files})
	if err != nil {
		return nil, fmt.Errorf("remote problems provider: marshal: %w", err)
	}
	resp, err := p.client.Execute(ctx, http.MethodPost, p.url, body, p.auth.AccessToken())
	if err != nil {
		return nil, fmt.Errorf("remote problems provider: %w", err)
	}

	cache := make(map[problems.FileID][]problems.Record)
	var cr compileResponse
	if err := json.Unmarshal(resp.Body, &cr); err != nil {
		// A malformed reply is a backend semantic failure: no problems this scan.
		p.logErr("malformed compile response: %v", err)
		return cache, nil
	}
	for _, cp := range cr.Problems {
		if cp.File == "" {
			continue
		}
		id := problems.FileID(path.Clean(filepath.ToSlash(cp.File)))
		cache[id] = append(cache[id], cp.Record)
	}
	return cache, nil
}

// collect walks the configured roots for source files.
func (p *Provider) collect() (map[string]string, error) {
	files := make(map[string]string)
	for _, r := range p.roots {
		if _, err := p.fs.Stat(r); err != nil {
			continue
		}
		if err := p.walk(r, files); err != nil {
			return nil, err
		}
	}
	return files, nil
}

func (p *Provider) walk(dir string, files map[string]string) error {
	entries, err := p.fs.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("remote problems provider: reading %s: %w", dir, err)
	}
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		if e.IsDir() {
			if skipDirs[e.Name()] || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			if err := p.walk(full, files); err != nil {
				return err
			}
			continue
		}
		if !fixer.IsSourceFile(e.Name()) {
			continue
		}
		data, err := p.fs.ReadFile(full)
		if err != nil || len(data) > maxFileBytes {
			continue
		}
		rel, err := filepath.Rel(p.root, full)
		if err != nil {
			continue
		}
		files[filepath.ToSlash(rel)] = string(data)
	}
	return nil
}

func (p *Provider) logErr(format string, args ...any) {
	if p.stderr != nil {
		fmt.Fprintf(p.stderr, "problems remote: "+format+"\n", args...) //nolint:errcheck // best-effort stderr
	}
}

// Compile-time interface check.
var _ problems.Provider = (*Provider)(nil)
