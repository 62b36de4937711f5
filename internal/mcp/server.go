// Package mcp exposes the reload service to AI assistants over the Model
// Context Protocol. Tools mirror the WebSocket protocol operations and
// resources give read-only views of the dependency graph and the journal,
// so an assistant can edit Lua source, hot-reload it, and inspect what
// happened without restarting the runtime.
package mcp

import (
	"context"
	"encoding/json"
	"io"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/zot/lua-reload/internal/server"
)

const instructions = `This server controls a live Lua runtime with dependency-tracked module
reloading. Import modules with import_module, then use reload_module after
editing a module's source file: its recorded dependencies re-execute first,
in reverse discovery order, and the module itself re-executes last. Use
get_dependencies and the graph://dot resource to inspect recorded import
relationships, and reload_journal to review past operations.`

// Server wraps an MCP stdio server around the reload service.
type Server struct {
	mcp *mcpserver.MCPServer
	svc *server.Service
	log *log.Logger
}

// Options configures an MCP server.
type Options struct {
	// Version is reported to clients during initialization.
	Version string
	Logger  *log.Logger
}

// New builds an MCP server and registers the reload tools and resources.
func New(svc *server.Service, opts Options) *Server {
	if opts.Version == "" {
		opts.Version = "0.0.0"
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	s := &Server{
		svc: svc,
		log: opts.Logger,
	}
	s.mcp = mcpserver.NewMCPServer(
		"lua-reload", opts.Version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithResourceCapabilities(false, false),
		mcpserver.WithInstructions(instructions),
		mcpserver.WithRecovery(),
	)
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio processes MCP messages on stdin/stdout until the client
// disconnects.
func (s *Server) ServeStdio() error {
	s.log.Info("MCP server listening on stdio")
	return mcpserver.ServeStdio(s.mcp)
}

// HandleMessage processes one raw JSON-RPC message. It backs ServeStdio and
// lets alternative transports (and tests) drive the server directly.
func (s *Server) HandleMessage(ctx context.Context, raw json.RawMessage) mcp.JSONRPCMessage {
	return s.mcp.HandleMessage(ctx, raw)
}

// jsonResult marshals v as an indented JSON tool result.
func jsonResult(v interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(data))
}
