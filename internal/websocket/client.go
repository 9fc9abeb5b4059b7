package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"slope-monitor-backend/internal/auth"
	"slope-monitor-backend/internal/dashboard"
	"slope-monitor-backend/internal/parse"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Command is an inbound client message.
type Command struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id,omitempty"`
	AlertID  string `json:"alert_id,omitempty"`
	parse.ThresholdForm
}

// Client is a middleman between the websocket connection and one dashboard page.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	gate *auth.Gate
	page *dashboard.Page

	// Buffered channel of outbound messages.
	send    chan []byte
	// Replies to this client's own commands.
	replies chan []byte
	// dirty is signalled when the page view should be re-sent.
	dirty   chan struct{}
}

// NewClient wires a page to a connection. The page is opened by ReadPump.
func NewClient(hub *Hub, conn *websocket.Conn, gate *auth.Gate, page *dashboard.Page) *Client {
	c := &Client{
		hub:     hub,
		conn:    conn,
		gate:    gate,
		page:    page,
		send:    make(chan []byte, 256),
		replies: make(chan []byte, 16),
		dirty:   make(chan struct{}, 1),
	}
	page.OnChange(c.markDirty)
	gate.OnChange(func(auth.Session) { c.markDirty() })
	return c
}

func (c *Client) markDirty() {
	select {
	case c.dirty <- struct{}{}:
	default:
	}
}

// ReadPump opens the page, then applies commands from the connection until it
// closes. The page and its subscriptions are released on return.
func (c *Client) ReadPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.page.Close()
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	c.page.Open(ctx)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}
		var cmd Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.reply(Message{Type: "error", Payload: "malformed command"})
			continue
		}
		if !c.handle(ctx, cmd) {
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "signed out"),
				time.Now().Add(writeWait))
			return
		}
	}
}

// handle applies one command. It returns false when the connection should end.
func (c *Client) handle(ctx context.Context, cmd Command) bool {
	switch cmd.Type {
	case "select_device":
		c.page.Select(ctx, cmd.DeviceID)
	case "acknowledge":
		c.page.Acknowledge(ctx, cmd.AlertID)
	case "save_thresholds":
		if cmd.DeviceID != "" && cmd.DeviceID != c.page.Selected() {
			c.reply(Message{Type: "error", Payload: fmt.Sprintf("device %q is not selected", cmd.DeviceID)})
			return true
		}
		// The outcome is reported through the view message.
		_ = c.page.SaveThresholds(ctx, cmd.ThresholdForm)
	case "dismiss_message":
		c.page.DismissMessage()
	case "logout":
		c.gate.Logout()
		return false
	default:
		c.reply(Message{Type: "error", Payload: fmt.Sprintf("unknown command %q", cmd.Type)})
	}
	return true
}

func (c *Client) reply(msg Message) {
	b, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshalling %s reply: %v", msg.Type, err)
		return
	}
	select {
	case c.replies <- b:
	default:
		log.Printf("WebSocket client %s send buffer full, dropping reply.", c.conn.RemoteAddr())
	}
}

// WritePump sends hub messages and page views to the connection. A page view
// is rebuilt once per burst of changes.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case message := <-c.replies:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-c.dirty:
			b, err := json.Marshal(Message{Type: "view", Payload: c.page.View()})
			if err != nil {
				log.Printf("Error marshalling view: %v", err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
