package reloader

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zot/lua-reload/internal/lua"
)

// Graph records which modules each importer pulled in, in discovery order.
// Keys are importer names; values hold the imported modules themselves, so
// a reload can reach their environments directly. Each list is
// identity-deduplicated: importing the same module twice records one edge.
type Graph struct {
	deps map[string][]*lua.Module
}

// NewGraph creates an empty dependency graph.
func NewGraph() *Graph {
	return &Graph{deps: make(map[string][]*lua.Module)}
}

// Add records an edge from a parent name to an imported module. Re-adding
// an existing edge is a no-op; order of first appearance is kept.
func (g *Graph) Add(parent string, m *lua.Module) {
	list := g.deps[parent]
	for _, dep := range list {
		if dep == m {
			return
		}
	}
	g.deps[parent] = append(list, m)
}

// Get returns a copy of the parent's dependency list. The second result is
// false when the parent was never recorded as an importer, which is
// distinct from a recorded importer with an empty list.
func (g *Graph) Get(parent string) ([]*lua.Module, bool) {
	list, ok := g.deps[parent]
	if !ok {
		return nil, false
	}
	out := make([]*lua.Module, len(list))
	copy(out, list)
	return out, true
}

// Remove forgets a parent's dependency list entirely.
func (g *Graph) Remove(parent string) {
	delete(g.deps, parent)
}

// RemoveAll clears the whole graph.
func (g *Graph) RemoveAll() {
	clear(g.deps)
}

// Parents lists all recorded importer names, sorted.
func (g *Graph) Parents() []string {
	out := make([]string, 0, len(g.deps))
	for name := range g.deps {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of recorded importers.
func (g *Graph) Len() int { return len(g.deps) }

// nodes lists every name appearing in the graph, sorted: importers first
// by name, then any imported modules not themselves importers.
func (g *Graph) nodes() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(name string) {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	for _, parent := range g.Parents() {
		add(parent)
		for _, dep := range g.deps[parent] {
			add(dep.Name())
		}
	}
	sort.Strings(out)
	return out
}

// DOT exports the graph as Graphviz DOT text. Edges point from importer to
// imported module.
func (g *Graph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph modules {\n")
	b.WriteString("  rankdir=LR;\n")

	aliases := make(map[string]string)
	for i, name := range g.nodes() {
		alias := fmt.Sprintf("n%d", i)
		aliases[name] = alias
		b.WriteString(fmt.Sprintf("  %s [label=\"%s\"];\n", alias, escapeDOT(name)))
	}
	for _, parent := range g.Parents() {
		for _, dep := range g.deps[parent] {
			b.WriteString(fmt.Sprintf("  %s -> %s;\n", aliases[parent], aliases[dep.Name()]))
		}
	}
	b.WriteString("}\n")
	return b.String()
}

// Mermaid exports the graph as Mermaid flowchart text.
func (g *Graph) Mermaid() string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	aliases := make(map[string]string)
	for i, name := range g.nodes() {
		alias := fmt.Sprintf("n%d", i)
		aliases[name] = alias
		b.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", alias, escapeMermaid(name)))
	}
	for _, parent := range g.Parents() {
		for _, dep := range g.deps[parent] {
			b.WriteString(fmt.Sprintf("    %s --> %s\n", aliases[parent], aliases[dep.Name()]))
		}
	}
	return b.String()
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}

func escapeMermaid(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}
