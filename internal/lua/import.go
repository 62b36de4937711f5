package lua

import (
	"errors"

	lua "github.com/yuin/gopher-lua"
	"github.com/zot/lua-reload/internal/modname"
)

// Wildcard is the from-list entry meaning "the module itself": a request
// like from("app.util", "*") resolves the named module and returns its
// environment instead of picking attributes out of it.
const Wildcard = "*"

// ImportSpec describes one call into the import entry point.
type ImportSpec struct {
	// Name is the full dotted name as written by the importer.
	Name string
	// FromNames lists the names requested out of the module, nil for a
	// plain import. A single Wildcard entry requests the module itself.
	FromNames []string
	// Caller is the module whose code issued the import, nil when the
	// host or a plain chunk did.
	Caller *Module
}

// Wildcard reports whether the request is a whole-module from-import.
func (s ImportSpec) Wildcard() bool {
	return len(s.FromNames) == 1 && s.FromNames[0] == Wildcard
}

// ImportFunc is the import entry point contract. It must resolve the request
// and return the root module of the dotted name for plain imports, or the
// named module itself when FromNames is present. Implementations wrap
// BaseImport; installing one must not change what importers observe.
type ImportFunc func(ImportSpec) (*Module, error)

// SetImportFunc installs fn as the import entry point. Passing nil restores
// the base import.
func (r *Runtime) SetImportFunc(fn ImportFunc) {
	r.importFn = fn
}

// Import resolves one import request through the installed entry point.
func (r *Runtime) Import(spec ImportSpec) (*Module, error) {
	if r.importFn != nil {
		return r.importFn(spec)
	}
	return r.BaseImport(spec)
}

// ImportModule imports a dotted name from Go and returns the named module
// itself rather than the root of its package chain.
func (r *Runtime) ImportModule(name string) (*Module, error) {
	return r.Import(ImportSpec{Name: name, FromNames: []string{Wildcard}})
}

// BaseImport is the host's native import primitive. It loads the named
// module along with every package on its dotted path, reusing registry
// entries where they exist. Each freshly loaded module is stored as a field
// of its parent package; cached modules are left alone, so a field a module
// cleared stays cleared until the next fresh load.
//
// For a from-import, each requested name that is neither an attribute of
// the target nor already registered is tried as a submodule; a missing
// submodule is not an error here (the name may be a plain attribute, and
// callers report unresolvable names themselves).
//
// The return value is the root module for plain imports and the named
// module for from-imports, mirroring what import and from expressions need.
func (r *Runtime) BaseImport(spec ImportSpec) (*Module, error) {
	if err := modname.Check(spec.Name); err != nil {
		return nil, err
	}

	var root, mod *Module
	prefix := ""
	for i, part := range modname.Split(spec.Name) {
		full := part
		if prefix != "" {
			full = modname.Join(prefix, part)
		}
		next, ok := r.registry.Lookup(full)
		if !ok {
			var err error
			next, err = r.loadModule(full)
			if err != nil {
				return nil, err
			}
			if mod != nil {
				mod.env.RawSetString(part, lua.LValue(next.env))
			}
		}
		if i == 0 {
			root = next
		}
		prefix, mod = full, next
	}

	if len(spec.FromNames) == 0 {
		return root, nil
	}
	for _, name := range spec.FromNames {
		if name == Wildcard || !modname.ValidComponent(name) {
			continue
		}
		if _, ok := mod.Attr(name); ok {
			continue
		}
		child := modname.Join(mod.name, name)
		if _, ok := r.registry.Lookup(child); ok {
			continue
		}
		sub, err := r.loadModule(child)
		if err != nil {
			var notFound *NotFoundError
			if errors.As(err, &notFound) {
				continue
			}
			return nil, err
		}
		mod.env.RawSetString(name, lua.LValue(sub.env))
	}
	return mod, nil
}

// loadModule loads one fully-qualified module, assuming its ancestors are
// already registered. The module is registered before its body runs so
// circular imports see the partially initialized module instead of looping;
// a failed body deregisters it again, which keeps retry possible.
func (r *Runtime) loadModule(name string) (*Module, error) {
	if build, ok := r.builtins[name]; ok {
		env := build(r)
		env.RawSetString("_NAME", lua.LString(name))
		m := newModule(name, "", env)
		r.registry.add(m)
		r.log.Debug("registered builtin module", "module", name)
		return m, nil
	}

	file, err := r.resolver.Resolve(name)
	if err != nil {
		return nil, err
	}
	src, err := readSource(file)
	if err != nil {
		return nil, err
	}
	m := newModule(name, file, r.newModuleEnv(name, file))
	r.registry.add(m)
	if err := r.execInto(src, file, m.env); err != nil {
		r.registry.remove(name)
		return nil, err
	}
	r.log.Debug("loaded module", "module", name, "file", file)
	return m, nil
}

// ResolveName performs the two-step lookup a from-import uses for each
// requested name: attribute of the module first, registered submodule
// second.
func (r *Runtime) ResolveName(m *Module, name string) (lua.LValue, bool) {
	if v, ok := m.Attr(name); ok {
		return v, true
	}
	if sub, ok := r.registry.Submodule(m, name); ok {
		return sub.env, true
	}
	return nil, false
}

// installImportSurface wires the import, from, and require globals. All
// three funnel through Import, so a swapped entry point sees every import
// in the system.
func (r *Runtime) installImportSurface() {
	r.state.SetGlobal("import", r.state.NewFunction(r.luaImport))
	r.state.SetGlobal("from", r.state.NewFunction(r.luaFrom))
	r.state.SetGlobal("require", r.state.NewFunction(r.luaRequire))
}

// luaImport implements import(name): load a dotted name, return its root
// module's environment.
func (r *Runtime) luaImport(L *lua.LState) int {
	name := L.CheckString(1)
	m, err := r.Import(ImportSpec{Name: name, Caller: r.callerModule(L)})
	if err != nil {
		L.RaiseError("%s", err)
		return 0
	}
	L.Push(m.env)
	return 1
}

// luaRequire implements require(name): load a dotted name, return the named
// module's environment. It is sugar for from(name, "*").
func (r *Runtime) luaRequire(L *lua.LState) int {
	name := L.CheckString(1)
	m, err := r.Import(ImportSpec{
		Name:      name,
		FromNames: []string{Wildcard},
		Caller:    r.callerModule(L),
	})
	if err != nil {
		L.RaiseError("%s", err)
		return 0
	}
	L.Push(m.env)
	return 1
}

// luaFrom implements from(name, ...): load a dotted name and return the
// requested attributes or submodules, one return value per request.
func (r *Runtime) luaFrom(L *lua.LState) int {
	name := L.CheckString(1)
	top := L.GetTop()
	if top < 2 {
		L.RaiseError("from: at least one name is required")
		return 0
	}
	names := make([]string, 0, top-1)
	for i := 2; i <= top; i++ {
		names = append(names, L.CheckString(i))
	}

	spec := ImportSpec{Name: name, FromNames: names, Caller: r.callerModule(L)}
	m, err := r.Import(spec)
	if err != nil {
		L.RaiseError("%s", err)
		return 0
	}
	if spec.Wildcard() {
		L.Push(m.env)
		return 1
	}
	for _, n := range names {
		v, ok := r.ResolveName(m, n)
		if !ok {
			L.RaiseError("%s", &AttributeError{Module: m.name, Name: n})
			return 0
		}
		L.Push(v)
	}
	return len(names)
}

// callerModule recovers the module whose code called into the import
// surface, by reading _NAME out of the calling function's environment.
// Chunks run in the shared globals have no _NAME and yield nil.
func (r *Runtime) callerModule(L *lua.LState) *Module {
	dbg, ok := L.GetStack(1)
	if !ok {
		return nil
	}
	fnValue, err := L.GetInfo("f", dbg, lua.LNil)
	if err != nil {
		return nil
	}
	fn, ok := fnValue.(*lua.LFunction)
	if !ok || fn.Env == nil {
		return nil
	}
	name, ok := fn.Env.RawGetString("_NAME").(lua.LString)
	if !ok {
		return nil
	}
	m, ok := r.registry.Lookup(string(name))
	if !ok {
		return nil
	}
	return m
}
