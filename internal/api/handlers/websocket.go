package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flight-logger/backend/internal/logger"
	ws "github.com/flight-logger/backend/internal/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The API sits behind the auth proxy, which enforces origin.
		return true
	},
}

// WebSocketUpgrade returns a handler that upgrades HTTP connections to WebSocket.
func WebSocketUpgrade(hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "error", err)
			return
		}

		client := ws.NewClient(hub)
		hub.Register(client)

		go writePump(conn, client)
		go readPump(conn, client, hub)
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
func writePump(conn *websocket.Conn, client *ws.Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send():
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Hub closed the channel
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump pumps messages from the WebSocket connection to the hub.
func readPump(conn *websocket.Conn, client *ws.Client, hub *ws.Hub) {
	defer func() {
		hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(65536)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("websocket read error", "error", err)
			}
			break
		}

		handleClientMessage(message, client, hub)
	}
}

// handleClientMessage answers client commands. Replies go through the hub
// so only writePump writes to the connection.
func handleClientMessage(message []byte, client *ws.Client, hub *ws.Hub) {
	var cmd struct {
		Type ws.MessageType `json:"type"`
	}

	var reply ws.Message
	switch err := json.Unmarshal(message, &cmd); {
	case err != nil:
		reply = ws.NewMessage(ws.TypeError, ws.ErrorPayload{Code: "bad_message", Message: "message is not valid JSON"})
	case cmd.Type == ws.TypePing:
		reply = ws.NewMessage(ws.TypePong, nil)
	default:
		reply = ws.NewMessage(ws.TypeError, ws.ErrorPayload{
			Code:         "unknown_type",
			Message:      "unsupported message type",
			OriginalType: string(cmd.Type),
		})
	}

	data, err := reply.JSON()
	if err != nil {
		return
	}
	hub.Send(client, data)
}
