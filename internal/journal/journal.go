// Package journal records module lifecycle operations so clients can inspect
// what was reloaded, when, and in what order.
package journal

import (
	"time"
)

// Operation names recorded in journal entries.
const (
	OpImport  = "import"
	OpReload  = "reload"
	OpEnable  = "enable"
	OpDisable = "disable"
)

// Entry is one recorded operation.
type Entry struct {
	Seq      int64         `json:"seq"`
	ID       string        `json:"id"`
	Time     time.Time     `json:"time"`
	Op       string        `json:"op"`
	Module   string        `json:"module,omitempty"`   // Operation target
	Modules  []string      `json:"modules,omitempty"`  // Modules re-executed, in execution order
	Duration time.Duration `json:"duration,omitempty"` // Nanoseconds
	Error    string        `json:"error,omitempty"`
}

// Backend defines the interface for journal backends.
type Backend interface {
	// Append records an entry, assigning its sequence number.
	Append(e *Entry) error

	// Recent returns up to limit entries, newest first.
	Recent(limit int) ([]Entry, error)

	// Clear removes all entries.
	Clear() error

	// Close closes the journal backend.
	Close() error
}

// Discard is a Backend that records nothing.
var Discard Backend = discard{}

type discard struct{}

func (discard) Append(*Entry) error         { return nil }
func (discard) Recent(int) ([]Entry, error) { return nil, nil }
func (discard) Clear() error                { return nil }
func (discard) Close() error                { return nil }
