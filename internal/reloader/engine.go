package reloader

import (
	"github.com/zot/lua-reload/internal/lua"
)

// ReloadOption configures a single Reload call.
type ReloadOption func(*reloadOptions)

type reloadOptions struct {
	scope   func(*lua.Module) bool
	notify  func(*lua.Module)
	verbose bool
}

// WithScope restricts which dependencies a reload recurses into. A
// dependency the predicate rejects is skipped along with its whole subtree;
// the module Reload was called on is always reloaded.
func WithScope(pred func(*lua.Module) bool) ReloadOption {
	return func(o *reloadOptions) { o.scope = pred }
}

// WithVerbose raises reload tracing from debug to info level.
func WithVerbose(verbose bool) ReloadOption {
	return func(o *reloadOptions) { o.verbose = verbose }
}

// WithNotify observes each module in the order it is about to re-execute.
func WithNotify(fn func(*lua.Module)) ReloadOption {
	return func(o *reloadOptions) { o.notify = fn }
}

// Reload re-executes a module, first reloading its recorded dependencies in
// reverse discovery order, recursively. Each module reloads at most once
// per call; blacklisted modules and their subtrees are skipped. A module's
// graph entry is cleared right before its re-execution and rebuilt from the
// imports the new code actually performs, so removed imports disappear from
// the graph.
//
// If a module defines a reload hook, the hook function in place before the
// reload is called afterwards with a snapshot of the module's pre-reload
// attributes.
//
// The first error stops the reload; modules already re-executed stay
// reloaded.
func (s *Session) Reload(m *lua.Module, opts ...ReloadOption) error {
	var o reloadOptions
	for _, opt := range opts {
		opt(&o)
	}
	trace := s.log.Debug
	if o.verbose {
		trace = s.log.Info
	}
	visited := make(map[*lua.Module]bool)
	return s.reloadOne(m, visited, &o, trace)
}

func (s *Session) reloadOne(m *lua.Module, visited map[*lua.Module]bool, o *reloadOptions, trace func(interface{}, ...interface{})) error {
	name := m.Name()
	if s.blacklisted(name) {
		return nil
	}
	visited[m] = true

	if deps, tracked := s.graph.Get(name); tracked {
		for i := len(deps) - 1; i >= 0; i-- {
			dep := deps[i]
			if visited[dep] {
				trace("dependency already visited, skipping", "module", dep.Name())
				continue
			}
			if o.scope != nil && !o.scope(dep) {
				trace("dependency out of scope, skipping", "module", dep.Name())
				continue
			}
			trace("reloading dependency", "module", dep.Name(), "of", name)
			if err := s.reloadOne(dep, visited, o, trace); err != nil {
				return err
			}
		}
	}

	// Old edges must not survive into the reloaded module; re-execution
	// rebuilds the list from the imports the new code performs.
	s.graph.Remove(name)

	hook, hasHook := s.rt.ReloadHook(m)

	// The re-execution bypasses the import entry point, so the imports
	// its body issues cannot learn their importer from the call itself.
	// The marker stands in for it, and is cleared even when the reload
	// or the hook fails.
	s.reloadParent = name
	defer func() { s.reloadParent = "" }()

	trace("reloading module", "module", name)
	if o.notify != nil {
		o.notify(m)
	}
	if hasHook {
		snap := s.rt.Snapshot(m)
		if err := s.rt.ReloadModule(m); err != nil {
			return err
		}
		return s.rt.CallReloadHook(hook, snap)
	}
	return s.rt.ReloadModule(m)
}
