package reloadclient

import (
	"fmt"
	"time"
)

// ReloadResult reports what a reload re-executed.
type ReloadResult struct {
	Module     string   `json:"module"`
	Reloaded   []string `json:"reloaded"` // In execution order
	DurationMS float64  `json:"durationMs"`
}

// ImportResult reports an imported module.
type ImportResult struct {
	Module string `json:"module"`
	File   string `json:"file,omitempty"`
}

// Module describes one loaded module.
type Module struct {
	Name    string `json:"name"`
	File    string `json:"file,omitempty"`
	Builtin bool   `json:"builtin,omitempty"`
}

// Dependencies lists a module's recorded imports in discovery order.
// Tracked is false when the module has never imported anything.
type Dependencies struct {
	Module       string   `json:"module"`
	Tracked      bool     `json:"tracked"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// JournalEntry is one recorded operation.
type JournalEntry struct {
	Seq      int64         `json:"seq"`
	ID       string        `json:"id"`
	Time     time.Time     `json:"time"`
	Op       string        `json:"op"`
	Module   string        `json:"module,omitempty"`
	Modules  []string      `json:"modules,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Status summarizes the runtime.
type Status struct {
	Tracking  bool     `json:"tracking"`
	Modules   int      `json:"modules"`
	Tracked   int      `json:"tracked"`
	Roots     []string `json:"roots"`
	Blacklist []string `json:"blacklist,omitempty"`
}

// Event is a server-push notification about a completed operation.
type Event struct {
	Kind    string   `json:"kind"` // "reload", "import", "enable", "disable"
	Module  string   `json:"module,omitempty"`
	Modules []string `json:"modules,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// APIError is an error response from the server.
type APIError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}
