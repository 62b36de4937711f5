// Package reloader tracks import relationships between Lua modules and
// reloads modules in dependency order. It layers on the runtime's import
// entry point: while tracking is enabled every import is observed and
// recorded as an edge from the importing module to the imported one, and a
// reload replays a module's recorded dependencies in reverse discovery
// order before re-executing the module itself.
package reloader

import (
	"io"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/zot/lua-reload/internal/lua"
)

// Session owns the tracking state for one runtime: the dependency graph,
// the blacklist, and the bookkeeping the interceptor needs to attribute
// imports. Like the runtime it wraps, a Session is single-threaded.
type Session struct {
	rt        *lua.Runtime
	graph     *Graph
	blacklist map[string]struct{}
	enabled   bool
	log       *log.Logger

	// ctx is the import currently being processed, saved and restored
	// around nested imports so each import knows its enclosing one.
	ctx importContext
	// reloadParent is set while a module re-executes during a reload, so
	// the imports its body issues are attributed to it. Reloads bypass
	// the import entry point, which is why the interceptor cannot learn
	// this from the call itself.
	reloadParent string
}

// Option configures a Session.
type Option func(*Session)

// WithLogger directs tracking and reload events to the given logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.log = l }
}

// NewSession creates a tracking session for a runtime. Tracking starts
// disabled; call Enable to install the interceptor.
func NewSession(rt *lua.Runtime, opts ...Option) *Session {
	s := &Session{
		rt:    rt,
		graph: NewGraph(),
		log:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Runtime returns the runtime this session tracks.
func (s *Session) Runtime() *lua.Runtime { return s.rt }

// Graph returns the live dependency graph.
func (s *Session) Graph() *Graph { return s.graph }

// Enabled reports whether the interceptor is installed.
func (s *Session) Enabled() bool { return s.enabled }

// Enable installs the import interceptor. A non-nil blacklist replaces the
// current one; nil keeps whatever blacklist is already in effect.
// Blacklisted modules still appear in the dependency graph, they are just
// skipped by reloads.
func (s *Session) Enable(blacklist []string) {
	s.rt.SetImportFunc(s.intercept)
	s.enabled = true
	if blacklist != nil {
		s.blacklist = make(map[string]struct{}, len(blacklist))
		for _, name := range blacklist {
			s.blacklist[name] = struct{}{}
		}
	}
	s.log.Debug("dependency tracking enabled", "blacklist", len(s.blacklist))
}

// Disable restores the base import and drops all tracking state: the
// graph, the blacklist, and any in-flight import context.
func (s *Session) Disable() {
	s.rt.SetImportFunc(nil)
	s.enabled = false
	s.blacklist = nil
	s.graph.RemoveAll()
	s.ctx = importContext{}
	s.reloadParent = ""
	s.log.Debug("dependency tracking disabled")
}

// Dependencies returns the recorded dependencies of a module name. The
// second result distinguishes "tracked with no dependencies" from "never
// seen as an importer".
func (s *Session) Dependencies(name string) ([]*lua.Module, bool) {
	return s.graph.Get(name)
}

// DependenciesOf is Dependencies keyed by module.
func (s *Session) DependenciesOf(m *lua.Module) ([]*lua.Module, bool) {
	return s.graph.Get(m.Name())
}

// Blacklist returns the blacklisted module names, sorted.
func (s *Session) Blacklist() []string {
	out := make([]string, 0, len(s.blacklist))
	for name := range s.blacklist {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *Session) blacklisted(name string) bool {
	_, ok := s.blacklist[name]
	return ok
}
