package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// HTTP upgrade handler to WebSocket connections

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// dashboards are served from other origins on the line network
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler: upgrade the request and attach the connection to the hub
func WSHandler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error response
			hub.logger.Warn("ws_upgrade_failed", "error", err)
			return
		}

		client := NewClient(conn, hub)
		hub.Register(client)

		// start goroutines for read and write pumps
		go client.WritePump()
		go client.ReadPump()
	}
}

// RegisterRoutes mounts the feed endpoint
func RegisterRoutes(r gin.IRoutes, hub *Hub) {
	r.GET("/ws", WSHandler(hub))
}
