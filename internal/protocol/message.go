// Package protocol defines the reload API messages shared by the WebSocket
// server and its clients, and the handler that dispatches them.
package protocol

import (
	"encoding/json"

	"github.com/zot/lua-reload/internal/journal"
)

// MessageType identifies the type of protocol message.
type MessageType string

const (
	// Requests (client -> server)
	MsgReload       MessageType = "reload"
	MsgImport       MessageType = "import"
	MsgModules      MessageType = "modules"
	MsgDependencies MessageType = "dependencies"
	MsgGraph        MessageType = "graph"
	MsgJournal      MessageType = "journal"
	MsgEnable       MessageType = "enable"
	MsgDisable      MessageType = "disable"
	MsgStatus       MessageType = "status"

	// Responses (server -> client)
	MsgResult MessageType = "result"
	MsgError  MessageType = "error"

	// Server-push notifications
	MsgEvent MessageType = "event"
)

// Error codes carried by ErrorMessage.
const (
	CodeBadRequest    = "bad-request"
	CodeNotFound      = "not-found"
	CodeNotReloadable = "not-reloadable"
	CodeUnknownType   = "unknown-type"
	CodeInternal      = "internal-error"
)

// Message is the base protocol message structure. ID correlates a response
// with its request; events carry no ID.
type Message struct {
	ID   string          `json:"id,omitempty"`
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ReloadRequest asks for a dependency-ordered reload of a module. A
// non-empty Scope limits which dependencies re-execute to those whose name
// lies under the given dotted prefix; the module itself always re-executes.
type ReloadRequest struct {
	Module  string `json:"module"`
	Verbose bool   `json:"verbose,omitempty"`
	Scope   string `json:"scope,omitempty"`
}

// ReloadResponse reports what a reload re-executed.
type ReloadResponse struct {
	Module     string   `json:"module"`
	Reloaded   []string `json:"reloaded"` // In execution order
	DurationMS float64  `json:"durationMs"`
}

// ImportRequest asks for a module to be imported.
type ImportRequest struct {
	Module string `json:"module"`
}

// ImportResponse reports the imported module.
type ImportResponse struct {
	Module string `json:"module"`
	File   string `json:"file,omitempty"`
}

// ModuleInfo describes one loaded module.
type ModuleInfo struct {
	Name    string `json:"name"`
	File    string `json:"file,omitempty"`
	Builtin bool   `json:"builtin,omitempty"`
}

// ModulesResponse lists loaded modules in load order.
type ModulesResponse struct {
	Modules []ModuleInfo `json:"modules"`
}

// DependenciesRequest asks for a module's recorded dependencies.
type DependenciesRequest struct {
	Module string `json:"module"`
}

// DependenciesResponse lists recorded dependencies in discovery order.
// Tracked is false when the module has never imported anything.
type DependenciesResponse struct {
	Module       string   `json:"module"`
	Tracked      bool     `json:"tracked"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// GraphRequest asks for the dependency graph in one of the export formats.
type GraphRequest struct {
	Format string `json:"format,omitempty"` // "dot", "mermaid", "json"
}

// GraphResponse carries the dependency graph. Text holds the dot/mermaid
// rendering; Edges holds the json form.
type GraphResponse struct {
	Format string              `json:"format"`
	Text   string              `json:"text,omitempty"`
	Edges  map[string][]string `json:"edges,omitempty"`
}

// JournalRequest asks for recent journal entries.
type JournalRequest struct {
	Limit int `json:"limit,omitempty"`
}

// JournalResponse lists journal entries, newest first.
type JournalResponse struct {
	Entries []journal.Entry `json:"entries"`
}

// EnableRequest turns dependency tracking on. A null blacklist keeps the
// current one; an array (even empty) replaces it.
type EnableRequest struct {
	Blacklist []string `json:"blacklist"`
}

// EnableResponse reports the effective blacklist after the change.
type EnableResponse struct {
	Blacklist []string `json:"blacklist"`
}

// StatusResponse summarizes the runtime.
type StatusResponse struct {
	Tracking  bool     `json:"tracking"`
	Modules   int      `json:"modules"`
	Tracked   int      `json:"tracked"`
	Roots     []string `json:"roots"`
	Blacklist []string `json:"blacklist,omitempty"`
}

// ErrorMessage represents an error response.
type ErrorMessage struct {
	Code        string `json:"code"`        // One-word error code (e.g. "not-found", "bad-request")
	Description string `json:"description"` // Human-readable error description
}

// Event is a server-push notification about a completed operation.
type Event struct {
	Kind    string   `json:"kind"` // "reload", "import", "enable", "disable"
	Module  string   `json:"module,omitempty"`
	Modules []string `json:"modules,omitempty"` // Re-executed modules, in execution order
	Error   string   `json:"error,omitempty"`
}

// ParseMessage parses a raw JSON message into a typed message.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// NewMessage creates a new message with the given ID, type, and data.
func NewMessage(id string, msgType MessageType, data interface{}) (*Message, error) {
	var raw json.RawMessage
	if data != nil {
		var err error
		raw, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}
	return &Message{
		ID:   id,
		Type: msgType,
		Data: raw,
	}, nil
}

// Encode serializes a message to JSON.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeData unmarshals the message payload into v. Empty data is left as
// the zero value.
func (m *Message) DecodeData(v interface{}) error {
	if len(m.Data) == 0 {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Result builds a result message carrying payload, correlated by id.
func Result(id string, payload interface{}) *Message {
	msg, err := NewMessage(id, MsgResult, payload)
	if err != nil {
		return ErrorResponse(id, CodeInternal, err.Error())
	}
	return msg
}

// ErrorResponse builds an error message, correlated by id.
func ErrorResponse(id, code, description string) *Message {
	data, _ := json.Marshal(ErrorMessage{Code: code, Description: description})
	return &Message{ID: id, Type: MsgError, Data: data}
}

// NewEvent builds a server-push event message.
func NewEvent(e Event) *Message {
	data, _ := json.Marshal(e)
	return &Message{Type: MsgEvent, Data: data}
}
