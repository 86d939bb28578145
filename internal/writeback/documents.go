package writeback

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/modforge/cdengine/internal/fsys"
)

// Documents is the project's editable document store. WriteText stages
// new content; Commit makes it visible to readers and to the next scan.
type Documents interface {
	ReadText(file string) (string, error)
	WriteText(file, text string) error
	Commit(file string) error
}

// pendingSuffix marks staged content awaiting Commit.
const pendingSuffix = ".cde-pending"

// FileDocuments is a [Documents] over project files. File names are
// relative to the project root; names escaping the root are rejected.
// WriteText stages into a sibling temp file and Commit renames it into
// place, so a reader never sees a half-written file.
type FileDocuments struct {
	fs   fsys.FS
	root string

	mu      sync.Mutex
	pending map[string]string // abs path → staged temp path
}

// NewFileDocuments returns a FileDocuments rooted at root.
func NewFileDocuments(fs fsys.FS, root string) *FileDocuments {
	return &FileDocuments{fs: fs, root: root, pending: make(map[string]string)}
}

func (d *FileDocuments) resolve(file string) (string, error) {
	if file == "" {
		return "", fmt.Errorf("empty document name")
	}
	if filepath.IsAbs(file) {
		return "", fmt.Errorf("document %q: absolute path", file)
	}
	clean := filepath.Clean(filepath.FromSlash(file))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("document %q: outside project", file)
	}
	return filepath.Join(d.root, clean), nil
}

// ReadText returns the committed content of file.
func (d *FileDocuments) ReadText(file string) (string, error) {
	abs, err := d.resolve(file)
	if err != nil {
		return "", err
	}
	data, err := d.fs.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", file, err)
	}
	return string(data), nil
}

// WriteText stages text for file. The file itself is unchanged until
// Commit. A second WriteText before Commit replaces the staged text.
func (d *FileDocuments) WriteText(file, text string) error {
	abs, err := d.resolve(file)
	if err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if fi, err := d.fs.Stat(abs); err == nil {
		mode = fi.Mode().Perm()
	}
	tmp := abs + pendingSuffix
	if err := d.fs.WriteFile(tmp, []byte(text), mode); err != nil {
		return fmt.Errorf("staging %s: %w", file, err)
	}
	// WriteFile keeps the mode of a leftover staged file.
	if err := d.fs.Chmod(tmp, mode); err != nil {
		d.fs.Remove(tmp) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("staging %s: %w", file, err)
	}
	d.mu.Lock()
	d.pending[abs] = tmp
	d.mu.Unlock()
	return nil
}

// Commit moves staged text into place. It is a no-op when nothing is
// staged for file.
func (d *FileDocuments) Commit(file string) error {
	abs, err := d.resolve(file)
	if err != nil {
		return err
	}
	d.mu.Lock()
	tmp, ok := d.pending[abs]
	delete(d.pending, abs)
	d.mu.Unlock()
	if !ok {
		return nil
	}
	if err := d.fs.Rename(tmp, abs); err != nil {
		d.fs.Remove(tmp) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("committing %s: %w", file, err)
	}
	return nil
}

var _ Documents = (*FileDocuments)(nil)
