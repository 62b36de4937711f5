// Package lua hosts a gopher-lua interpreter with a Python-style module
// system: every module is a Lua source file executed in its own environment
// table and registered under a dotted name. Imports between modules go
// through a single swappable entry point, which is what allows dependency
// tracking to be layered on without touching the loader itself.
package lua

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	lua "github.com/yuin/gopher-lua"
)

// Options configures a new Runtime.
type Options struct {
	// Roots are the directories searched for module source files, in
	// order. Defaults to the current directory.
	Roots []string
	// Logger receives load and reload events. Defaults to a silent logger.
	Logger *log.Logger
}

// Runtime owns one Lua interpreter plus the registry of modules loaded into
// it. It is single-threaded: callers running on multiple goroutines must
// serialize access themselves (the dev server funnels every call through
// one service goroutine).
type Runtime struct {
	state    *lua.LState
	base     *lua.LTable // shared globals, visible to every module via _G
	registry *Registry
	resolver *Resolver
	builtins map[string]func(*Runtime) *lua.LTable
	importFn ImportFunc // nil means BaseImport
	log      *log.Logger
}

// NewRuntime creates a runtime with a curated set of standard libraries.
// The stock package/require system is deliberately left out; this runtime
// installs its own import surface instead.
func NewRuntime(opts Options) (*Runtime, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
		{lua.OsLibName, lua.OpenOs},
		{lua.CoroutineLibName, lua.OpenCoroutine},
	} {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, fmt.Errorf("failed to open lua library %q: %w", lib.name, err)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	roots := opts.Roots
	if len(roots) == 0 {
		roots = []string{"."}
	}

	r := &Runtime{
		state:    L,
		base:     L.Get(lua.GlobalsIndex).(*lua.LTable),
		registry: newRegistry(),
		resolver: NewResolver(roots...),
		builtins: make(map[string]func(*Runtime) *lua.LTable),
		log:      logger,
	}
	r.installImportSurface()
	return r, nil
}

// Close shuts down the interpreter.
func (r *Runtime) Close() {
	r.state.Close()
}

// State exposes the underlying interpreter for embedders that need to push
// their own globals or call module functions directly.
func (r *Runtime) State() *lua.LState { return r.state }

// Registry returns the module registry.
func (r *Runtime) Registry() *Registry { return r.registry }

// Resolver returns the module file resolver.
func (r *Runtime) Resolver() *Resolver { return r.resolver }

// RegisterBuiltin registers a Go-built module under a dotted name. The
// build function runs once, on first import. Builtins have no source file,
// so they are never reloaded and never recorded as dependencies.
func (r *Runtime) RegisterBuiltin(name string, build func(*Runtime) *lua.LTable) {
	r.builtins[name] = build
}

// DoString runs a chunk in the shared global environment. Imports issued
// from such a chunk have no calling module.
func (r *Runtime) DoString(src string) error {
	return r.state.DoString(src)
}

// Call invokes a Lua value with the given arguments, discarding results.
func (r *Runtime) Call(fn lua.LValue, args ...lua.LValue) error {
	r.state.Push(fn)
	for _, a := range args {
		r.state.Push(a)
	}
	return r.state.PCall(len(args), 0, nil)
}

// newModuleEnv builds a fresh module environment: module-local assignments
// land in the table itself while reads fall through to the shared globals.
func (r *Runtime) newModuleEnv(name, file string) *lua.LTable {
	env := r.state.NewTable()
	env.RawSetString("_NAME", lua.LString(name))
	env.RawSetString("_FILE", lua.LString(file))
	env.RawSetString("_G", r.base)
	mt := r.state.NewTable()
	mt.RawSetString("__index", r.base)
	r.state.SetMetatable(env, mt)
	return env
}

// execInto compiles src and runs it with env as the chunk's environment.
// Functions defined by the chunk capture env, so later calls into them
// resolve globals against the module, not the shared table.
func (r *Runtime) execInto(src []byte, file string, env *lua.LTable) error {
	fn, err := r.state.Load(bytes.NewReader(src), "@"+file)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", file, err)
	}
	fn.Env = env
	r.state.Push(fn)
	if err := r.state.PCall(0, 0, nil); err != nil {
		return fmt.Errorf("failed to run %s: %w", file, err)
	}
	return nil
}

// readSource loads a module source file.
func readSource(file string) ([]byte, error) {
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	return src, nil
}
