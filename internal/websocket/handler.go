package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs attaches a websocket connection as an observer of one session.
func ServeWs(hub *Hub, c *websocket.Conn, sessionID string) {
	client := newClient(hub, c, sessionID)
	client.Hub.register <- client

	go client.writePump()
	client.readPump() // Run readPump in current goroutine (handler)
}
