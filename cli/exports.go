// Package cli provides the command-line interface for lua-reload.
// This file re-exports internal types so wrapper projects can work with the
// runtime, session and server directly from their hooks.
package cli

import (
	"github.com/zot/lua-reload/internal/journal"
	"github.com/zot/lua-reload/internal/lua"
	"github.com/zot/lua-reload/internal/reloader"
	"github.com/zot/lua-reload/internal/server"
)

// Re-export runtime types for hooks
type (
	Runtime        = lua.Runtime
	RuntimeOptions = lua.Options
	Module         = lua.Module
	Session        = reloader.Session
	Graph          = reloader.Graph
	Server         = server.Server
	Service        = server.Service
	JournalEntry   = journal.Entry
)

// Re-export constructors
var (
	NewRuntime = lua.NewRuntime
	NewSession = reloader.NewSession
	NewServer  = server.New
)

// Re-export reload options for driving a Session directly
var (
	WithVerbose = reloader.WithVerbose
	WithScope   = reloader.WithScope
)
