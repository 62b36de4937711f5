package server

import (
	"io"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zot/lua-reload/internal/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

// wsConnection is one client connection. All writes go through the send
// channel so responses and pushed events never interleave on the wire.
type wsConnection struct {
	id   string
	conn *websocket.Conn
	send chan *protocol.Message
	done chan struct{} // closed when the writer exits
}

// enqueue hands a message to the write pump, giving up if the writer is gone.
func (c *wsConnection) enqueue(msg *protocol.Message) {
	select {
	case c.send <- msg:
	case <-c.done:
	}
}

// WebSocketEndpoint handles WebSocket connections.
type WebSocketEndpoint struct {
	handler     *protocol.Handler
	events      *EventHub
	log         *log.Logger
	connections map[string]*wsConnection
	mu          sync.RWMutex
}

// NewWebSocketEndpoint creates a new WebSocket endpoint.
func NewWebSocketEndpoint(handler *protocol.Handler, events *EventHub, logger *log.Logger) *WebSocketEndpoint {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &WebSocketEndpoint{
		handler:     handler,
		events:      events,
		log:         logger,
		connections: make(map[string]*wsConnection),
	}
}

// HandleWebSocket handles incoming WebSocket connections.
func (ws *WebSocketEndpoint) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.log.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &wsConnection{
		id:   "conn-" + uuid.NewString(),
		conn: conn,
		send: make(chan *protocol.Message, eventBuffer),
		done: make(chan struct{}),
	}

	ws.mu.Lock()
	ws.connections[c.id] = c
	ws.mu.Unlock()

	ws.log.Debug("websocket connected", "conn", c.id)

	events := ws.events.Subscribe(c.id)
	go ws.writePump(c, events)
	go ws.readPump(c)
}

// readPump reads messages from a connection and dispatches them. Handler
// calls block on the runtime goroutine, so requests on one connection are
// processed in order.
func (ws *WebSocketEndpoint) readPump(c *wsConnection) {
	defer ws.closeConnection(c)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				ws.log.Error("websocket read failed", "conn", c.id, "error", err)
			}
			return
		}

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			ws.log.Error("failed to parse message", "conn", c.id, "error", err)
			c.enqueue(protocol.ErrorResponse("", protocol.CodeBadRequest, err.Error()))
			continue
		}

		if resp := ws.handler.HandleMessage(c.id, msg); resp != nil {
			c.enqueue(resp)
		}
	}
}

// writePump owns the connection's write side, draining responses and pushed
// events until either source closes or a write fails.
func (ws *WebSocketEndpoint) writePump(c *wsConnection, events <-chan *protocol.Message) {
	defer close(c.done)

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if ws.write(c, msg) != nil {
				return
			}
		case msg, ok := <-events:
			if !ok {
				return
			}
			if ws.write(c, msg) != nil {
				return
			}
		}
	}
}

// write encodes and sends one message.
func (ws *WebSocketEndpoint) write(c *wsConnection, msg *protocol.Message) error {
	data, err := msg.Encode()
	if err != nil {
		ws.log.Error("failed to encode message", "conn", c.id, "error", err)
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// closeConnection tears down a connection after its reader exits.
func (ws *WebSocketEndpoint) closeConnection(c *wsConnection) {
	ws.mu.Lock()
	_, ok := ws.connections[c.id]
	delete(ws.connections, c.id)
	ws.mu.Unlock()
	if !ok {
		return
	}

	ws.events.Unsubscribe(c.id)
	close(c.send)
	c.conn.Close()
	ws.log.Debug("websocket disconnected", "conn", c.id)
}

// CloseAll closes every open connection. Readers notice and clean up.
func (ws *WebSocketEndpoint) CloseAll() {
	ws.mu.Lock()
	conns := make([]*wsConnection, 0, len(ws.connections))
	for _, c := range ws.connections {
		conns = append(conns, c)
	}
	ws.mu.Unlock()

	for _, c := range conns {
		c.conn.Close()
	}
}

// ConnectionCount returns the number of open connections (for testing).
func (ws *WebSocketEndpoint) ConnectionCount() int {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return len(ws.connections)
}
