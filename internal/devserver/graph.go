// Package devserver is the browser-facing side: it maps source files to the
// module URLs clients load and pushes HMR messages to them over a websocket.
package devserver

import (
	"path/filepath"
	"strings"

	"github.com/samber/lo"
)

// DefaultExtensions are the source types the daemon compiles to JS modules
var DefaultExtensions = []string{".ml", ".re", ".res", ".mli", ".rei"}

// Graph maps source files under the source directory to module URLs
type Graph struct {
	root   string
	srcDir string
	exts   []string
}

// NewGraph tracks files with one of exts under srcDir. Module URLs are
// relative to root.
func NewGraph(root, srcDir string, exts []string) *Graph {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	return &Graph{
		root:   filepath.Clean(root),
		srcDir: filepath.Clean(srcDir),
		exts:   exts,
	}
}

// Tracks reports whether path is a source file served as a module
func (g *Graph) Tracks(path string) bool {
	path = filepath.Clean(path)
	rel, err := filepath.Rel(g.srcDir, path)
	if err != nil || rel == "." || outside(rel) {
		return false
	}
	return lo.Contains(g.exts, filepath.Ext(path))
}

// ModulesByFile returns the module URL for a tracked file, nil otherwise
func (g *Graph) ModulesByFile(path string) []string {
	if !g.Tracks(path) {
		return nil
	}
	rel, err := filepath.Rel(g.root, filepath.Clean(path))
	if err != nil || outside(rel) {
		return nil
	}
	return []string{"/" + filepath.ToSlash(rel)}
}

func outside(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
