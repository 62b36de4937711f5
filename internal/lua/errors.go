package lua

import (
	"fmt"
	"strings"
)

// NotFoundError reports a module name that resolved to no source file under
// any search root.
type NotFoundError struct {
	Name  string
	Roots []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("module %q not found under %s", e.Name, strings.Join(e.Roots, ", "))
}

// NotLoadedError reports an operation on a module name that is not in the
// registry.
type NotLoadedError struct {
	Name string
}

func (e *NotLoadedError) Error() string {
	return fmt.Sprintf("module %q is not loaded", e.Name)
}

// NotReloadableError reports a reload attempt on a module with no source
// file backing it, such as a Go-registered builtin.
type NotReloadableError struct {
	Name string
}

func (e *NotReloadableError) Error() string {
	return fmt.Sprintf("module %q has no source file and cannot be reloaded", e.Name)
}

// AttributeError reports a name that could not be resolved against a module,
// neither as an attribute of its environment nor as a registered submodule.
type AttributeError struct {
	Module string
	Name   string
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("cannot resolve name %q in module %q", e.Name, e.Module)
}
