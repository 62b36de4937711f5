package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	graphDOTURI     = "graph://dot"
	graphMermaidURI = "graph://mermaid"
	journalURI      = "journal://recent"
)

// registerResources declares read-only views of the runtime.
func (s *Server) registerResources() {
	s.mcp.AddResource(mcp.NewResource(
		graphDOTURI,
		"Dependency Graph (DOT)",
		mcp.WithResourceDescription("Recorded module dependency graph in Graphviz DOT format"),
		mcp.WithMIMEType("text/vnd.graphviz"),
	), s.readGraphDOT)

	s.mcp.AddResource(mcp.NewResource(
		graphMermaidURI,
		"Dependency Graph (Mermaid)",
		mcp.WithResourceDescription("Recorded module dependency graph as a Mermaid flowchart"),
		mcp.WithMIMEType("text/plain"),
	), s.readGraphMermaid)

	s.mcp.AddResource(mcp.NewResource(
		journalURI,
		"Reload Journal",
		mcp.WithResourceDescription("Recent reload and import operations, newest first"),
		mcp.WithMIMEType("application/json"),
	), s.readJournal)
}

func (s *Server) readGraphDOT(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	resp, err := s.svc.DependencyGraph("dot")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: graphDOTURI, MIMEType: "text/vnd.graphviz", Text: resp.Text},
	}, nil
}

func (s *Server) readGraphMermaid(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	resp, err := s.svc.DependencyGraph("mermaid")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: graphMermaidURI, MIMEType: "text/plain", Text: resp.Text},
	}, nil
}

func (s *Server) readJournal(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	resp, err := s.svc.Journal(0)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: journalURI, MIMEType: "application/json", Text: string(data)},
	}, nil
}
