// Package source implements the source context manager: resolution and
// caching of named source texts across a configurable set of include
// search paths.
package source

import (
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/eanderton/xcomp/xcerr"
)

// Manager resolves logical source names (as named by .include directives
// and command-line arguments) against a list of search paths, caching the
// text of each file the first time it is loaded.
type Manager struct {
	SearchPaths []string
	texts       map[string]string
}

// New creates a Manager that searches the given paths, in order, when
// resolving a source name that hasn't been loaded or injected yet.
func New(searchPaths ...string) *Manager {
	return &Manager{
		SearchPaths: searchPaths,
		texts:       make(map[string]string),
	}
}

// SearchFile walks the configured search paths looking for name, returning
// the first existing regular file match.
func (m *Manager) SearchFile(name string) (string, bool) {
	for _, dir := range m.SearchPaths {
		candidate := filepath.Join(expandHome(dir), name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// GetText returns the text named by name, loading and caching it on first
// request. The cache is keyed by the logical name, not the resolved path.
func (m *Manager) GetText(name string) (string, error) {
	if text, ok := m.texts[name]; ok {
		return text, nil
	}
	path, ok := m.SearchFile(name)
	if !ok {
		return "", xcerr.New(xcerr.KindFileNotFound, xcerr.Pos{Context: name},
			"cannot find %q on any configured search path", name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", xcerr.New(xcerr.KindFileNotFound, xcerr.Pos{Context: name},
			"cannot read %q: %v", path, err)
	}
	log.Debugf("source: loaded %q (%d bytes) from %q", name, len(data), path)
	m.texts[name] = string(data)
	return m.texts[name], nil
}

// Inject registers text directly under name, bypassing the search path.
// Used by tests and by callers that already hold source text in memory.
func (m *Manager) Inject(name, text string) {
	m.texts[name] = text
}

// GetBytes returns the raw bytes named by name, without assuming the
// content is valid UTF-8 text. Injected or already cached texts are used
// first, otherwise the same search paths as GetText are walked; bytes read
// from disk are not cached. Used by .bin includes.
func (m *Manager) GetBytes(name string) ([]byte, error) {
	if text, ok := m.texts[name]; ok {
		return []byte(text), nil
	}
	path, ok := m.SearchFile(name)
	if !ok {
		return nil, xcerr.New(xcerr.KindFileNotFound, xcerr.Pos{Context: name},
			"cannot find %q on any configured search path", name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xcerr.New(xcerr.KindFileNotFound, xcerr.Pos{Context: name},
			"cannot read %q: %v", path, err)
	}
	return data, nil
}

func expandHome(dir string) string {
	if dir == "~" || len(dir) >= 2 && dir[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, dir[1:])
		}
	}
	return dir
}
