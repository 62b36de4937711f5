package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerTools declares one tool per protocol operation.
func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("reload_module",
		mcp.WithDescription("Reload a loaded module, re-executing its recorded dependencies first in reverse discovery order"),
		mcp.WithString("module",
			mcp.Required(),
			mcp.Description("Dotted module name, e.g. app.views"),
		),
		mcp.WithBoolean("verbose",
			mcp.Description("Log each re-executed module"),
		),
		mcp.WithString("scope_prefix",
			mcp.Description("Only re-execute dependencies under this dotted prefix; the module itself always reloads"),
		),
	), s.handleReload)

	s.mcp.AddTool(mcp.NewTool("import_module",
		mcp.WithDescription("Import a module by dotted name, loading it from the configured roots"),
		mcp.WithString("module",
			mcp.Required(),
			mcp.Description("Dotted module name, e.g. app.views"),
		),
	), s.handleImport)

	s.mcp.AddTool(mcp.NewTool("list_modules",
		mcp.WithDescription("List loaded modules in load order"),
	), s.handleListModules)

	s.mcp.AddTool(mcp.NewTool("get_dependencies",
		mcp.WithDescription("List a module's recorded imports in discovery order"),
		mcp.WithString("module",
			mcp.Required(),
			mcp.Description("Dotted module name"),
		),
	), s.handleDependencies)

	s.mcp.AddTool(mcp.NewTool("dependency_graph",
		mcp.WithDescription("Export the module dependency graph"),
		mcp.WithString("format",
			mcp.Description("Export format (default dot)"),
			mcp.Enum("dot", "mermaid", "json"),
		),
	), s.handleGraph)

	s.mcp.AddTool(mcp.NewTool("reload_journal",
		mcp.WithDescription("List recent reload and import operations, newest first"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum entries to return"),
		),
	), s.handleJournal)

	s.mcp.AddTool(mcp.NewTool("enable_tracking",
		mcp.WithDescription("Enable dependency tracking. Omit blacklist to keep the current one; pass an array (even empty) to replace it"),
		mcp.WithArray("blacklist",
			mcp.Description("Module names reloads should skip"),
			mcp.Items(map[string]interface{}{"type": "string"}),
		),
	), s.handleEnable)

	s.mcp.AddTool(mcp.NewTool("disable_tracking",
		mcp.WithDescription("Disable dependency tracking and clear the recorded graph"),
	), s.handleDisable)

	s.mcp.AddTool(mcp.NewTool("runtime_status",
		mcp.WithDescription("Summarize the runtime: tracking state, module counts, roots, blacklist"),
	), s.handleStatus)
}

func (s *Server) handleReload(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	module, err := req.RequireString("module")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := s.svc.Reload(module, req.GetBool("verbose", false), req.GetString("scope_prefix", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(resp), nil
}

func (s *Server) handleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	module, err := req.RequireString("module")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := s.svc.Import(module)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(resp), nil
}

func (s *Server) handleListModules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.svc.Modules()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(resp), nil
}

func (s *Server) handleDependencies(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	module, err := req.RequireString("module")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := s.svc.Dependencies(module)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(resp), nil
}

func (s *Server) handleGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.svc.DependencyGraph(req.GetString("format", "dot"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if resp.Text != "" {
		return mcp.NewToolResultText(resp.Text), nil
	}
	return jsonResult(resp.Edges), nil
}

func (s *Server) handleJournal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.svc.Journal(req.GetInt("limit", 0))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(resp), nil
}

func (s *Server) handleEnable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// absent means keep the current blacklist, present replaces it
	resp, err := s.svc.EnableTracking(req.GetStringSlice("blacklist", nil))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(resp), nil
}

func (s *Server) handleDisable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := s.svc.DisableTracking(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("dependency tracking disabled"), nil
}

func (s *Server) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.svc.Status()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(resp), nil
}
