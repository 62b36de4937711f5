package reloader

import (
	"slices"

	golua "github.com/yuin/gopher-lua"
	"github.com/zot/lua-reload/internal/lua"
	"github.com/zot/lua-reload/internal/modname"
)

// importContext carries the state of one in-flight import so nested imports
// can be attributed to the module that triggered them.
type importContext struct {
	active    bool
	name      string
	fromNames []string
}

// intercept is the tracking import entry point. It defers the real work to
// the base import and records what was imported by whom: an edge from the
// attributed parent to the import's true target, plus edges for any
// from-list names that turn out to be modules. Failed imports record
// nothing, and the surrounding context is restored even then.
func (s *Session) intercept(spec lua.ImportSpec) (*lua.Module, error) {
	outer := s.ctx
	s.ctx = importContext{active: true, name: spec.Name, fromNames: spec.FromNames}
	defer func() { s.ctx = outer }()

	base, err := s.rt.BaseImport(spec)
	if err != nil {
		return nil, err
	}

	target, subs, err := s.resolveTarget(base, spec)
	if err != nil {
		return nil, err
	}

	// Modules without source files are not reloadable, so they never
	// enter the graph.
	if !target.Builtin() {
		if parent, ok := s.attributeParent(outer, spec); ok {
			s.graph.Add(parent, target)
			for _, sub := range subs {
				s.graph.Add(parent, sub)
			}
		}
	}
	return base, nil
}

// resolveTarget finds the module an import was really about. A plain dotted
// import returns its root package, so the dotted path is walked down to the
// leaf; a from-import already resolved to the named module, and its
// from-list is classified to find submodules pulled in alongside it.
// Submodules already recorded as dependencies of the target are not
// collected again.
func (s *Session) resolveTarget(base *lua.Module, spec lua.ImportSpec) (*lua.Module, []*lua.Module, error) {
	if len(spec.FromNames) == 0 {
		target := base
		for _, component := range modname.Split(spec.Name)[1:] {
			next, ok := s.walkChild(target, component)
			if !ok {
				err := &lua.AttributeError{Module: target.Name(), Name: component}
				s.log.Error("failed to resolve import target", "module", target.Name(), "name", component)
				return nil, nil, err
			}
			target = next
		}
		return target, nil, nil
	}

	if spec.Wildcard() {
		return base, nil, nil
	}

	existing, _ := s.graph.Get(base.Name())
	var subs []*lua.Module
	for _, name := range spec.FromNames {
		if sub, ok := s.classifyChild(base, name); ok && !slices.Contains(existing, sub) {
			subs = append(subs, sub)
		}
	}
	return base, subs, nil
}

// walkChild resolves one dotted-path component: an attribute that is a
// module wins, anything else falls back to the registry entry for
// parent.component.
func (s *Session) walkChild(m *lua.Module, component string) (*lua.Module, bool) {
	if sub, ok := s.moduleAttr(m, component); ok {
		return sub, true
	}
	return s.rt.Registry().Submodule(m, component)
}

// classifyChild decides whether a from-list name refers to a module. A
// present attribute is taken at face value, module or not; only an absent
// one falls back to the registry. An attribute shadowing a loaded submodule
// therefore hides it here, just as it does for the importer.
func (s *Session) classifyChild(m *lua.Module, name string) (*lua.Module, bool) {
	if _, present := m.Attr(name); present {
		return s.moduleAttr(m, name)
	}
	return s.rt.Registry().Submodule(m, name)
}

// moduleAttr returns the module an attribute refers to, if it is one.
func (s *Session) moduleAttr(m *lua.Module, name string) (*lua.Module, bool) {
	v, ok := m.Attr(name)
	if !ok {
		return nil, false
	}
	tbl, ok := v.(*golua.LTable)
	if !ok {
		return nil, false
	}
	return s.rt.Registry().ByEnv(tbl)
}

// attributeParent decides which module an import belongs to: the enclosing
// import if one is in flight, else the module currently being reloaded,
// else the calling module for run-time imports. Imports issued by the host
// outside all three contexts belong to nobody and record nothing.
func (s *Session) attributeParent(outer importContext, spec lua.ImportSpec) (string, bool) {
	if outer.active {
		parent := outer.name
		// A submodule named on its package's from-list executes while
		// the package import is still in flight. Imports issued by the
		// submodule's own body belong to the submodule, not the package.
		if spec.Caller != nil && len(outer.fromNames) > 0 {
			caller := spec.Caller.Name()
			if tail, ok := modname.ChildOf(caller, parent); ok && slices.Contains(outer.fromNames, tail) {
				parent = caller
			}
		}
		return parent, true
	}
	if s.reloadParent != "" {
		return s.reloadParent, true
	}
	if spec.Caller != nil {
		return spec.Caller.Name(), true
	}
	return "", false
}
