// Package reloadclient provides a Go client for the reload server's HTTP
// API, plus a WebSocket subscription for server-push events.
package reloadclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to one reload server.
type Client struct {
	base string
	http *http.Client
}

// New creates a client for the server at baseURL, e.g. "http://127.0.0.1:7700".
func New(baseURL string) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// message mirrors the server's envelope.
type message struct {
	ID   string          `json:"id,omitempty"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// get performs a GET request and decodes the result payload into out.
func (c *Client) get(path string, query url.Values, out interface{}) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	resp, err := c.http.Get(u)
	if err != nil {
		return err
	}
	return c.decode(resp, out)
}

// post performs a POST request with a JSON body and decodes the result
// payload into out.
func (c *Client) post(path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.http.Post(c.base+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	return c.decode(resp, out)
}

// decode unwraps the response envelope, converting error messages into
// APIError.
func (c *Client) decode(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()

	var msg message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if msg.Type == "error" {
		apiErr := &APIError{}
		if err := json.Unmarshal(msg.Data, apiErr); err != nil {
			return fmt.Errorf("server error (status %d)", resp.StatusCode)
		}
		return apiErr
	}
	if out == nil || len(msg.Data) == 0 {
		return nil
	}
	return json.Unmarshal(msg.Data, out)
}

// Reload reloads a loaded module and its recorded dependencies.
func (c *Client) Reload(module string, verbose bool) (*ReloadResult, error) {
	body := struct {
		Module  string `json:"module"`
		Verbose bool   `json:"verbose,omitempty"`
	}{module, verbose}
	var result ReloadResult
	if err := c.post("/api/reload", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Import loads a module by dotted name.
func (c *Client) Import(module string) (*ImportResult, error) {
	body := struct {
		Module string `json:"module"`
	}{module}
	var result ImportResult
	if err := c.post("/api/import", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Modules lists loaded modules in load order.
func (c *Client) Modules() ([]Module, error) {
	var result struct {
		Modules []Module `json:"modules"`
	}
	if err := c.get("/api/modules", nil, &result); err != nil {
		return nil, err
	}
	return result.Modules, nil
}

// Dependencies reports a module's recorded imports.
func (c *Client) Dependencies(module string) (*Dependencies, error) {
	var result Dependencies
	if err := c.get("/api/dependencies", url.Values{"module": {module}}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GraphDOT exports the dependency graph in Graphviz DOT format.
func (c *Client) GraphDOT() (string, error) {
	return c.graphText("dot")
}

// GraphMermaid exports the dependency graph as a Mermaid flowchart.
func (c *Client) GraphMermaid() (string, error) {
	return c.graphText("mermaid")
}

func (c *Client) graphText(format string) (string, error) {
	var result struct {
		Text string `json:"text"`
	}
	if err := c.get("/api/graph", url.Values{"format": {format}}, &result); err != nil {
		return "", err
	}
	return result.Text, nil
}

// GraphEdges exports the dependency graph as a parent to dependencies map.
func (c *Client) GraphEdges() (map[string][]string, error) {
	var result struct {
		Edges map[string][]string `json:"edges"`
	}
	if err := c.get("/api/graph", url.Values{"format": {"json"}}, &result); err != nil {
		return nil, err
	}
	return result.Edges, nil
}

// Journal lists recent operations, newest first. A non-positive limit uses
// the server default.
func (c *Client) Journal(limit int) ([]JournalEntry, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var result struct {
		Entries []JournalEntry `json:"entries"`
	}
	if err := c.get("/api/journal", query, &result); err != nil {
		return nil, err
	}
	return result.Entries, nil
}

// EnableTracking turns dependency tracking on. A nil blacklist keeps the
// server's current one; a non-nil slice (even empty) replaces it.
func (c *Client) EnableTracking(blacklist []string) ([]string, error) {
	body := struct {
		Blacklist []string `json:"blacklist"`
	}{blacklist}
	var result struct {
		Blacklist []string `json:"blacklist"`
	}
	if err := c.post("/api/enable", body, &result); err != nil {
		return nil, err
	}
	return result.Blacklist, nil
}

// DisableTracking turns dependency tracking off and clears the graph.
func (c *Client) DisableTracking() error {
	return c.post("/api/disable", struct{}{}, nil)
}

// Status summarizes the runtime.
func (c *Client) Status() (*Status, error) {
	var result Status
	if err := c.get("/api/status", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
