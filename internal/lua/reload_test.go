package lua

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	golua "github.com/yuin/gopher-lua"
)

// TestReloadReexecutesInPlace verifies a reload runs new source in the
// original environment table
func TestReloadReexecutesInPlace(t *testing.T) {
	rt, dir := newTestRuntime(t, map[string]string{
		"mod.lua": `value = 1`,
	})

	m, err := rt.ImportModule("mod")
	if err != nil {
		t.Fatalf("import mod: %v", err)
	}
	envBefore := m.Env()

	rewrite(t, dir, "mod.lua", `value = 2`)
	if err := rt.ReloadModule(m); err != nil {
		t.Fatalf("reload mod: %v", err)
	}

	if m.Env() != envBefore {
		t.Error("reload replaced the environment table")
	}
	if got := attrNumber(t, m, "value"); got != 2 {
		t.Errorf("value = %v after reload, want 2", got)
	}
}

// TestReloadKeepsStaleAttributes verifies attributes dropped from the
// source survive a reload
func TestReloadKeepsStaleAttributes(t *testing.T) {
	rt, dir := newTestRuntime(t, map[string]string{
		"mod.lua": `keep = "old"
replaced = 1`,
	})

	m, err := rt.ImportModule("mod")
	if err != nil {
		t.Fatalf("import mod: %v", err)
	}

	rewrite(t, dir, "mod.lua", `replaced = 2`)
	if err := rt.ReloadModule(m); err != nil {
		t.Fatalf("reload mod: %v", err)
	}

	if got := attrString(t, m, "keep"); got != "old" {
		t.Errorf("keep = %q, want the pre-reload value", got)
	}
	if got := attrNumber(t, m, "replaced"); got != 2 {
		t.Errorf("replaced = %v, want 2", got)
	}
}

// TestReloadSharedReferencesSeeNewCode verifies other modules holding the
// environment observe reloaded functions without reimporting
func TestReloadSharedReferencesSeeNewCode(t *testing.T) {
	rt, dir := newTestRuntime(t, map[string]string{
		"lib.lua": `function answer() return 1 end`,
		"app.lua": `lib = import("lib")
function ask() return lib.answer() end`,
	})

	app, err := rt.ImportModule("app")
	if err != nil {
		t.Fatalf("import app: %v", err)
	}

	rewrite(t, dir, "lib.lua", `function answer() return 2 end`)
	lib, _ := rt.Registry().Lookup("lib")
	if err := rt.ReloadModule(lib); err != nil {
		t.Fatalf("reload lib: %v", err)
	}

	ask, ok := app.Attr("ask")
	if !ok {
		t.Fatal("app has no ask")
	}
	rt.State().Push(ask)
	if err := rt.State().PCall(0, 1, nil); err != nil {
		t.Fatalf("call ask: %v", err)
	}
	got := rt.State().Get(-1)
	rt.State().Pop(1)
	if n, _ := got.(golua.LNumber); n != 2 {
		t.Errorf("ask() = %v after reload, want 2", got)
	}
}

// TestReloadBuiltinFails verifies builtins report as not reloadable
func TestReloadBuiltinFails(t *testing.T) {
	rt, _ := newTestRuntime(t, map[string]string{})
	rt.RegisterBuiltin("host", func(r *Runtime) *golua.LTable {
		return r.State().NewTable()
	})

	m, err := rt.ImportModule("host")
	if err != nil {
		t.Fatalf("import host: %v", err)
	}

	err = rt.ReloadModule(m)
	var notReloadable *NotReloadableError
	if !errors.As(err, &notReloadable) {
		t.Fatalf("reload builtin error = %v, want *NotReloadableError", err)
	}
}

// TestReloadMissingFileFails verifies a deleted source file surfaces as
// not-found
func TestReloadMissingFileFails(t *testing.T) {
	rt, dir := newTestRuntime(t, map[string]string{
		"mod.lua": `x = 1`,
	})

	m, err := rt.ImportModule("mod")
	if err != nil {
		t.Fatalf("import mod: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "mod.lua")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	err = rt.ReloadModule(m)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("reload error = %v, want *NotFoundError", err)
	}
}

// TestFailedReloadKeepsModuleRegistered verifies a broken reload leaves the
// module and its environment in place
func TestFailedReloadKeepsModuleRegistered(t *testing.T) {
	rt, dir := newTestRuntime(t, map[string]string{
		"mod.lua": `value = 1`,
	})

	m, err := rt.ImportModule("mod")
	if err != nil {
		t.Fatalf("import mod: %v", err)
	}

	rewrite(t, dir, "mod.lua", `error("bad reload")`)
	if err := rt.ReloadModule(m); err == nil {
		t.Fatal("reload of failing source should error")
	}

	if _, ok := rt.Registry().Lookup("mod"); !ok {
		t.Error("module deregistered by failed reload")
	}
	if got := attrNumber(t, m, "value"); got != 1 {
		t.Errorf("value = %v after failed reload, want 1", got)
	}
}

// TestSnapshotDeepCopies verifies nested tables detach from the live module
func TestSnapshotDeepCopies(t *testing.T) {
	rt, _ := newTestRuntime(t, map[string]string{
		"mod.lua": `num = 5
tbl = { nested = { n = 1 } }`,
	})

	m, err := rt.ImportModule("mod")
	if err != nil {
		t.Fatalf("import mod: %v", err)
	}
	snap := rt.Snapshot(m)

	// mutate the live module after the snapshot
	live := m.Env().RawGetString("tbl").(*golua.LTable).RawGetString("nested").(*golua.LTable)
	live.RawSetString("n", golua.LNumber(99))

	copied := snap.RawGetString("tbl").(*golua.LTable).RawGetString("nested").(*golua.LTable)
	if n := copied.RawGetString("n"); n != golua.LNumber(1) {
		t.Errorf("snapshot nested.n = %v, want 1", n)
	}
	if n := snap.RawGetString("num"); n != golua.LNumber(5) {
		t.Errorf("snapshot num = %v, want 5", n)
	}
}

// TestSnapshotDropsSharedGlobalsRef verifies _G is not captured
func TestSnapshotDropsSharedGlobalsRef(t *testing.T) {
	rt, _ := newTestRuntime(t, map[string]string{
		"mod.lua": `x = 1`,
	})

	m, err := rt.ImportModule("mod")
	if err != nil {
		t.Fatalf("import mod: %v", err)
	}
	snap := rt.Snapshot(m)
	if v := snap.RawGetString("_G"); v != golua.LNil {
		t.Error("snapshot should not carry _G")
	}
}

// TestSnapshotSharesModuleReferences verifies modules referenced by
// attributes are not cloned
func TestSnapshotSharesModuleReferences(t *testing.T) {
	rt, _ := newTestRuntime(t, map[string]string{
		"helper.lua": `h = 1`,
		"a.lua":      `sub = import("helper")`,
	})

	a, err := rt.ImportModule("a")
	if err != nil {
		t.Fatalf("import a: %v", err)
	}
	helper, _ := rt.Registry().Lookup("helper")

	snap := rt.Snapshot(a)
	if snap.RawGetString("sub") != golua.LValue(helper.Env()) {
		t.Error("module reference should be shared, not copied")
	}
}

// TestSnapshotPreservesCycles verifies self-referential tables copy safely
func TestSnapshotPreservesCycles(t *testing.T) {
	rt, _ := newTestRuntime(t, map[string]string{
		"mod.lua": `t = {}
t.self = t`,
	})

	m, err := rt.ImportModule("mod")
	if err != nil {
		t.Fatalf("import mod: %v", err)
	}
	snap := rt.Snapshot(m)

	copied := snap.RawGetString("t").(*golua.LTable)
	if copied.RawGetString("self") != golua.LValue(copied) {
		t.Error("cycle not preserved in copy")
	}
	if original := m.Env().RawGetString("t"); golua.LValue(copied) == original {
		t.Error("cyclic table shared instead of copied")
	}
}

// TestReloadHookReceivesOldState verifies the hook sees pre-reload
// attributes while the module keeps retained state
func TestReloadHookReceivesOldState(t *testing.T) {
	rt, _ := newTestRuntime(t, map[string]string{
		"hookmod.lua": `counter = (counter or 0) + 1
state = { n = counter * 10 }
function __reload__(old)
	_G.hook_counter = old.counter
	_G.hook_n = old.state.n
	_G.hook_no_g = (old._G == nil)
end`,
	})

	m, err := rt.ImportModule("hookmod")
	if err != nil {
		t.Fatalf("import hookmod: %v", err)
	}

	hook, ok := rt.ReloadHook(m)
	if !ok {
		t.Fatal("hookmod defines no reload hook")
	}
	snap := rt.Snapshot(m)
	if err := rt.ReloadModule(m); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := rt.CallReloadHook(hook, snap); err != nil {
		t.Fatalf("hook: %v", err)
	}

	if got := globalNumber(t, rt, "hook_counter"); got != 1 {
		t.Errorf("hook saw counter = %v, want the pre-reload 1", got)
	}
	if got := globalNumber(t, rt, "hook_n"); got != 10 {
		t.Errorf("hook saw state.n = %v, want 10", got)
	}
	if v := rt.State().GetGlobal("hook_no_g"); v != golua.LTrue {
		t.Error("hook snapshot should not include _G")
	}
	// the counter itself advanced because the environment was retained
	if got := attrNumber(t, m, "counter"); got != 2 {
		t.Errorf("counter = %v after reload, want 2", got)
	}
}

// TestReloadHookUsesPreReloadDefinition verifies the hook fetched before a
// reload is the one that runs, even when the new source redefines it
func TestReloadHookUsesPreReloadDefinition(t *testing.T) {
	rt, dir := newTestRuntime(t, map[string]string{
		"hookmod.lua": `function __reload__(old)
	_G.which = "v1"
end`,
	})

	m, err := rt.ImportModule("hookmod")
	if err != nil {
		t.Fatalf("import hookmod: %v", err)
	}

	rewrite(t, dir, "hookmod.lua", `function __reload__(old)
	_G.which = "v2"
end`)

	hook, _ := rt.ReloadHook(m)
	snap := rt.Snapshot(m)
	if err := rt.ReloadModule(m); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := rt.CallReloadHook(hook, snap); err != nil {
		t.Fatalf("hook: %v", err)
	}

	if got := globalString(t, rt, "which"); got != "v1" {
		t.Errorf("hook version = %q, want the pre-reload v1", got)
	}
}
