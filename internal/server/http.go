package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/zot/lua-reload/internal/protocol"
)

// HTTPEndpoint handles HTTP requests. API requests are translated into
// protocol messages and dispatched through the same handler the WebSocket
// endpoint uses, so both surfaces behave identically.
type HTTPEndpoint struct {
	handler    *protocol.Handler
	wsEndpoint *WebSocketEndpoint
	svc        *Service
	mux        *http.ServeMux
}

// NewHTTPEndpoint creates a new HTTP endpoint.
func NewHTTPEndpoint(handler *protocol.Handler, wsEndpoint *WebSocketEndpoint, svc *Service) *HTTPEndpoint {
	h := &HTTPEndpoint{
		handler:    handler,
		wsEndpoint: wsEndpoint,
		svc:        svc,
		mux:        http.NewServeMux(),
	}
	h.setupRoutes()
	return h
}

// setupRoutes configures HTTP routes.
func (h *HTTPEndpoint) setupRoutes() {
	h.mux.HandleFunc("/", h.handleRoot)
	h.mux.HandleFunc("/api/", h.handleAPI)
	h.mux.HandleFunc("/ws", h.handleWebSocket)
}

// ServeHTTP implements http.Handler.
func (h *HTTPEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// handleWebSocket handles WebSocket upgrade requests.
func (h *HTTPEndpoint) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsEndpoint.HandleWebSocket(w, r)
}

// handleAPI handles REST API requests. Reads accept GET with query
// parameters; every endpoint accepts POST with a JSON body.
func (h *HTTPEndpoint) handleAPI(w http.ResponseWriter, r *http.Request) {
	endpoint := strings.TrimPrefix(r.URL.Path, "/api/")

	var msg *protocol.Message
	switch r.Method {
	case http.MethodGet:
		var err error
		msg, err = queryMessage(endpoint, r)
		if err != nil {
			h.writeMessage(w, protocol.ErrorResponse("", protocol.CodeBadRequest, err.Error()))
			return
		}
	case http.MethodPost:
		msg = &protocol.Message{Type: protocol.MessageType(endpoint)}
		if r.ContentLength != 0 {
			var data json.RawMessage
			if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
				h.writeMessage(w, protocol.ErrorResponse("", protocol.CodeBadRequest, "invalid JSON"))
				return
			}
			msg.Data = data
		}
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Synthetic connection ID for API calls
	resp := h.handler.HandleMessage("api-"+r.RemoteAddr, msg)
	h.writeMessage(w, resp)
}

// queryMessage builds a protocol message from URL query parameters.
func queryMessage(endpoint string, r *http.Request) (*protocol.Message, error) {
	q := r.URL.Query()
	params := map[string]interface{}{}
	if v := q.Get("module"); v != "" {
		params["module"] = v
	}
	if v := q.Get("format"); v != "" {
		params["format"] = v
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid limit %q", v)
		}
		params["limit"] = limit
	}
	if v := q.Get("scope"); v != "" {
		params["scope"] = v
	}
	if v := q.Get("verbose"); v == "true" || v == "1" {
		params["verbose"] = true
	}
	return protocol.NewMessage("", protocol.MessageType(endpoint), params)
}

// writeMessage writes a protocol message as the HTTP response, mapping error
// codes to HTTP statuses.
func (h *HTTPEndpoint) writeMessage(w http.ResponseWriter, resp *protocol.Message) {
	w.Header().Set("Content-Type", "application/json")
	if resp.Type == protocol.MsgError {
		var em protocol.ErrorMessage
		resp.DecodeData(&em)
		w.WriteHeader(statusForCode(em.Code))
	}
	json.NewEncoder(w).Encode(resp)
}

// statusForCode maps protocol error codes to HTTP statuses.
func statusForCode(code string) int {
	switch code {
	case protocol.CodeBadRequest:
		return http.StatusBadRequest
	case protocol.CodeNotFound, protocol.CodeUnknownType:
		return http.StatusNotFound
	case protocol.CodeNotReloadable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// handleRoot renders the status page.
func (h *HTTPEndpoint) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	status, err := h.svc.Status()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	modules, err := h.svc.Modules()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	graph, err := h.svc.DependencyGraph("json")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	var sb strings.Builder
	sb.WriteString(`<!DOCTYPE html>
<html>
<head>
  <title>Module Reload Server</title>
  <style>
    body { font-family: system-ui, sans-serif; padding: 20px; max-width: 1000px; margin: 0 auto; }
    h1 { color: #333; }
    .meta { color: #666; margin-bottom: 16px; }
    table { border-collapse: collapse; width: 100%; }
    th, td { text-align: left; padding: 6px 12px; border-bottom: 1px solid #ddd; }
    th { background: #f5f5f5; }
    .mod-file { color: #666; font-family: monospace; font-size: 0.9em; }
    .mod-deps { color: #0066cc; }
    .builtin { color: #888; font-style: italic; }
    .refresh-btn { margin-bottom: 16px; }
  </style>
</head>
<body>
  <h1>Module Reload Server</h1>
`)

	tracking := "off"
	if status.Tracking {
		tracking = "on"
	}
	fmt.Fprintf(&sb, `  <div class="meta">tracking %s &middot; %d modules loaded &middot; %d tracked &middot; roots: %s</div>
`, tracking, status.Modules, status.Tracked, escapeHTML(strings.Join(status.Roots, ", ")))
	if len(status.Blacklist) > 0 {
		fmt.Fprintf(&sb, `  <div class="meta">blacklist: %s</div>
`, escapeHTML(strings.Join(status.Blacklist, ", ")))
	}

	sb.WriteString(`  <button class="refresh-btn" onclick="location.reload()">Refresh</button>
  <table>
    <tr><th>Module</th><th>File</th><th>Dependencies</th></tr>
`)
	for _, m := range modules.Modules {
		file := m.File
		if m.Builtin {
			file = `<span class="builtin">builtin</span>`
		} else {
			file = `<span class="mod-file">` + escapeHTML(file) + `</span>`
		}
		deps := strings.Join(graph.Edges[m.Name], ", ")
		fmt.Fprintf(&sb, `    <tr><td>%s</td><td>%s</td><td class="mod-deps">%s</td></tr>
`, escapeHTML(m.Name), file, escapeHTML(deps))
	}
	sb.WriteString(`  </table>
</body></html>`)

	w.Write([]byte(sb.String()))
}

// escapeHTML escapes special HTML characters.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
