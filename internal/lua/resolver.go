package lua

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/zot/lua-reload/internal/modname"
)

// Resolver maps dotted module names to Lua source files. A name resolves
// against each search root in order, trying the plain file form first and
// the package directory form second:
//
//	"app.util" -> <root>/app/util.lua
//	"app.util" -> <root>/app/util/init.lua
//
// The first hit wins.
type Resolver struct {
	roots []string
}

// NewResolver creates a resolver over the given search roots.
func NewResolver(roots ...string) *Resolver {
	return &Resolver{roots: slices.Clone(roots)}
}

// Roots returns the search roots in lookup order.
func (r *Resolver) Roots() []string {
	return slices.Clone(r.roots)
}

// AddRoot appends a search root if it is not already present.
func (r *Resolver) AddRoot(dir string) {
	if !slices.Contains(r.roots, dir) {
		r.roots = append(r.roots, dir)
	}
}

// Resolve returns the source file for a dotted module name, or a
// *NotFoundError naming the roots that were searched.
func (r *Resolver) Resolve(name string) (string, error) {
	rel := filepath.Join(modname.Split(name)...)
	for _, root := range r.roots {
		file := filepath.Join(root, rel+".lua")
		if isFile(file) {
			return file, nil
		}
		init := filepath.Join(root, rel, "init.lua")
		if isFile(init) {
			return init, nil
		}
	}
	return "", &NotFoundError{Name: name, Roots: r.Roots()}
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
