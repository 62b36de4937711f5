package lua

import (
	lua "github.com/yuin/gopher-lua"
	"github.com/zot/lua-reload/internal/modname"
)

// Registry is the table of loaded modules, keyed by dotted name. It also
// indexes modules by environment table so a table value found in some
// module's attributes can be recognized as a module.
type Registry struct {
	modules map[string]*Module
	byEnv   map[*lua.LTable]*Module
	order   []string // insertion order, for stable listings
}

func newRegistry() *Registry {
	return &Registry{
		modules: make(map[string]*Module),
		byEnv:   make(map[*lua.LTable]*Module),
	}
}

// Lookup finds a module by its full dotted name.
func (r *Registry) Lookup(name string) (*Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}

// ByEnv finds the module whose environment is the given table.
func (r *Registry) ByEnv(env *lua.LTable) (*Module, bool) {
	m, ok := r.byEnv[env]
	return m, ok
}

// Submodule finds the registered module named parent.child.
func (r *Registry) Submodule(parent *Module, child string) (*Module, bool) {
	return r.Lookup(modname.Join(parent.name, child))
}

// Modules lists all registered modules in load order.
func (r *Registry) Modules() []*Module {
	out := make([]*Module, 0, len(r.order))
	for _, name := range r.order {
		if m, ok := r.modules[name]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Len returns the number of registered modules.
func (r *Registry) Len() int { return len(r.modules) }

func (r *Registry) add(m *Module) {
	if _, exists := r.modules[m.name]; !exists {
		r.order = append(r.order, m.name)
	}
	r.modules[m.name] = m
	r.byEnv[m.env] = m
}

func (r *Registry) remove(name string) {
	m, ok := r.modules[name]
	if !ok {
		return
	}
	delete(r.modules, name)
	delete(r.byEnv, m.env)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}
