// Package modname handles dotted module names like "app", "app.util", or
// "app.net.client". A name is a dot-separated list of identifiers; each
// identifier starts with a letter or underscore and continues with letters,
// digits, or underscores.
package modname

import (
	"fmt"
	"strings"
)

const sep = "."

// InvalidNameError reports a module name that does not follow the dotted
// identifier syntax.
type InvalidNameError struct {
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid module name %q", e.Name)
}

// ValidComponent returns true if s is a single legal name component.
func ValidComponent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Check validates a full dotted name.
func Check(name string) error {
	if name == "" {
		return &InvalidNameError{Name: name}
	}
	for _, part := range strings.Split(name, sep) {
		if !ValidComponent(part) {
			return &InvalidNameError{Name: name}
		}
	}
	return nil
}

// Valid reports whether name is a legal dotted module name.
func Valid(name string) bool {
	return Check(name) == nil
}

// Split breaks a dotted name into its components.
// Examples:
//   - "app" -> ["app"]
//   - "app.net.client" -> ["app", "net", "client"]
func Split(name string) []string {
	return strings.Split(name, sep)
}

// Join builds a dotted name from components.
func Join(parts ...string) string {
	return strings.Join(parts, sep)
}

// Root returns the first component of a dotted name.
func Root(name string) string {
	if idx := strings.Index(name, sep); idx != -1 {
		return name[:idx]
	}
	return name
}

// Parent returns the enclosing package name, or "" for a top-level name.
func Parent(name string) string {
	if idx := strings.LastIndex(name, sep); idx != -1 {
		return name[:idx]
	}
	return ""
}

// Tail returns the last component of a dotted name.
func Tail(name string) string {
	if idx := strings.LastIndex(name, sep); idx != -1 {
		return name[idx+1:]
	}
	return name
}

// ChildOf returns the trailing component of name if name is an immediate
// child of parent ("a.b.c" is an immediate child of "a.b" with tail "c").
func ChildOf(name, parent string) (string, bool) {
	if parent == "" || !strings.HasPrefix(name, parent+sep) {
		return "", false
	}
	tail := name[len(parent)+1:]
	if strings.Contains(tail, sep) {
		return "", false
	}
	return tail, true
}

// Within reports whether name equals prefix or lies under it at any depth
// ("a.b.c" is within "a" and "a.b" but not within "a.bc").
func Within(name, prefix string) bool {
	return name == prefix || strings.HasPrefix(name, prefix+sep)
}

// Prefixes lists every ancestor of a dotted name, shortest first, ending
// with the name itself: "a.b.c" -> ["a", "a.b", "a.b.c"].
func Prefixes(name string) []string {
	parts := Split(name)
	out := make([]string, 0, len(parts))
	for i := range parts {
		out = append(out, Join(parts[:i+1]...))
	}
	return out
}
