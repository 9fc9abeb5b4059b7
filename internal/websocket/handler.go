package websocket

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"slope-monitor-backend/internal/auth"
	"slope-monitor-backend/internal/dashboard"
	"slope-monitor-backend/internal/realtime"
	"slope-monitor-backend/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from a different origin than the API.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server upgrades dashboard connections and gives each one its own page.
type Server struct {
	Hub     *Hub
	Auth    *auth.Manager
	Store   store.Store
	Feed    *realtime.Feed
	Options dashboard.Options
}

// ServeWS handles GET /ws. The session token is taken from the "token" query
// parameter, since browsers cannot set headers on websocket requests, or from
// an Authorization header. Connections without an admin session are closed
// with a policy violation once upgraded.
func (s *Server) ServeWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token, _ = auth.BearerToken(c.GetHeader("Authorization"))
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection to WebSocket: %v", err)
		return
	}

	gate := auth.NewGate(s.Auth)
	if err := gate.Restore(token); err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	page := dashboard.NewPage(s.Store, s.Feed, gate, s.Options)
	client := NewClient(s.Hub, conn, gate, page)
	if !s.Hub.Register(client) {
		page.Close()
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
