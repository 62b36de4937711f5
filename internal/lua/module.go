package lua

import (
	lua "github.com/yuin/gopher-lua"
)

// Module is one loaded unit of Lua code: a dotted name bound to the live
// environment table its chunk executed in. The environment survives for the
// whole life of the runtime; reloading re-executes source into it rather
// than replacing it, so references held by other modules stay valid.
type Module struct {
	name string
	file string // absolute source path, "" for Go-registered builtins
	env  *lua.LTable
}

func newModule(name, file string, env *lua.LTable) *Module {
	return &Module{name: name, file: file, env: env}
}

// Name returns the module's full dotted name.
func (m *Module) Name() string { return m.name }

// File returns the source file the module was loaded from, or "" for a
// builtin.
func (m *Module) File() string { return m.file }

// Env returns the module's environment table.
func (m *Module) Env() *lua.LTable { return m.env }

// Builtin reports whether the module was registered from Go rather than
// loaded from a source file.
func (m *Module) Builtin() bool { return m.file == "" }

// Attr looks up a key in the module environment, with ok reporting whether
// the key is present. The lookup is raw: it does not fall through to the
// shared globals behind the environment's metatable.
func (m *Module) Attr(name string) (lua.LValue, bool) {
	v := m.env.RawGetString(name)
	if v == lua.LNil {
		return nil, false
	}
	return v, true
}
