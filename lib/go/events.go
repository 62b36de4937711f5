package reloadclient

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gorilla/websocket"
)

// Events connects to the server's WebSocket endpoint and streams push
// events until the context is canceled or the connection drops. The
// returned channel is closed when the stream ends.
func (c *Client) Events(ctx context.Context) (<-chan Event, error) {
	wsURL := httpToWS(c.base) + "/ws"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}

	events := make(chan Event)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(events)
		defer conn.Close()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg message
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			if msg.Type != "event" {
				continue
			}
			var e Event
			if err := json.Unmarshal(msg.Data, &e); err != nil {
				continue
			}
			select {
			case events <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

func httpToWS(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}
