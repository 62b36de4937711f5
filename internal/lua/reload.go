package lua

import (
	lua "github.com/yuin/gopher-lua"
)

// ReloadHookName is the module attribute consulted around a reload. A
// module that defines it gets called with a snapshot of its pre-reload
// attributes once the new code is in place.
const ReloadHookName = "__reload__"

// ReloadModule re-executes a module's source into its existing environment.
// The environment table keeps its identity, so every reference other code
// holds to the module stays valid; attributes the new source no longer
// assigns keep their old values. The source path is resolved fresh, which
// picks up files that moved between roots since the original load.
func (r *Runtime) ReloadModule(m *Module) error {
	if m.Builtin() {
		return &NotReloadableError{Name: m.name}
	}
	file, err := r.resolver.Resolve(m.name)
	if err != nil {
		return err
	}
	src, err := readSource(file)
	if err != nil {
		return err
	}
	m.file = file
	return r.execInto(src, file, m.env)
}

// ReloadHook returns the module's reload hook if it defines one. The value
// is returned as-is: callable tables count, and a non-callable value will
// fail when invoked rather than being silently dropped.
func (r *Runtime) ReloadHook(m *Module) (lua.LValue, bool) {
	return m.Attr(ReloadHookName)
}

// CallReloadHook invokes a reload hook with a snapshot table.
func (r *Runtime) CallReloadHook(hook lua.LValue, snapshot *lua.LTable) error {
	return r.Call(hook, snapshot)
}

// Snapshot deep-copies a module's attributes into a plain table. The _G
// back-reference is dropped, other modules referenced by the attributes are
// shared rather than copied, and everything else that is a table is copied
// recursively with cycles and internal sharing preserved. Functions and
// userdata are shared by reference.
func (r *Runtime) Snapshot(m *Module) *lua.LTable {
	seen := make(map[*lua.LTable]*lua.LTable)
	out := r.state.NewTable()
	m.env.ForEach(func(k, v lua.LValue) {
		if s, ok := k.(lua.LString); ok && string(s) == "_G" {
			return
		}
		out.RawSet(r.copyValue(k, seen), r.copyValue(v, seen))
	})
	return out
}

func (r *Runtime) copyValue(v lua.LValue, seen map[*lua.LTable]*lua.LTable) lua.LValue {
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return v
	}
	if _, isModule := r.registry.ByEnv(tbl); isModule {
		return v
	}
	if copied, ok := seen[tbl]; ok {
		return copied
	}
	copied := r.state.NewTable()
	seen[tbl] = copied
	copied.Metatable = tbl.Metatable
	tbl.ForEach(func(k, val lua.LValue) {
		copied.RawSet(r.copyValue(k, seen), r.copyValue(val, seen))
	})
	return copied
}
