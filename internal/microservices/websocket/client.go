package websocket

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Individual subscriber connection

const ( // ping pong(2-way heartbeat) to keep connection alive
	WriteWait      = 10 * time.Second    // max time to write a message to the peer
	PongWait       = 60 * time.Second    // no pong within this window = dead connection
	PingPeriod     = (PongWait * 9) / 10 // ping at 90% of pong wait to absorb network jitter
	MaxMessageSize = 64 * 1024           // maximum inbound frame size
	SendBufferSize = 256                 // outbound frames queued per client
)

type Client struct {
	ID          string          // unique client ID
	Conn        *websocket.Conn // WebSocket connection
	SendChannel chan []byte     // channel for outbound(chan <-) messages
	Hub         *Hub            // reference to the central Hub
	Limiter     *rate.Limiter   // inbound frame rate limiter
}

// constructor new client
func NewClient(conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:          uuid.NewString(),
		Conn:        conn,
		SendChannel: make(chan []byte, SendBufferSize),
		Hub:         hub,
		Limiter:     rate.NewLimiter(rate.Limit(10), 20), // 10 msgs/sec with burst of 20
	}
}

func (c *Client) RemoteAddr() string {
	if c.Conn == nil {
		return ""
	}
	return c.Conn.RemoteAddr().String()
}

// ReadPump reads frames from the peer until the connection fails.
// Every valid JSON frame is echoed back; anything else is dropped.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(PongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(PongWait))
	})

	for {
		_, frame, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.Hub.logger.Warn("client_read_error",
					"client_id", c.ID,
					"error", err,
				)
			}
			return
		}

		// check rate limit
		if !c.Limiter.Allow() {
			c.Hub.logger.Warn("rate_limit_exceeded", "client_id", c.ID)
			c.reply(NewMessage(TypeError, map[string]string{"message": "Rate limit exceeded"}))
			continue
		}

		var data any
		if err := json.Unmarshal(frame, &data); err != nil {
			c.Hub.logger.Warn("invalid_json_received",
				"client_id", c.ID,
				"error", err.Error(),
			)
			continue
		}
		c.reply(NewMessage(TypeEcho, data))
	}
}

func (c *Client) reply(msg *Message) {
	payload, err := msg.ToJSON()
	if err != nil {
		return
	}
	if !c.Hub.Send(c, payload) {
		c.Hub.logger.Warn("client_reply_dropped", "client_id", c.ID, "type", msg.Type)
	}
}

// WritePump drains SendChannel to the peer and pings it periodically.
// It exits when the hub closes SendChannel or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(PingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.SendChannel:
			c.Conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if !ok {
				// hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.Hub.logger.Warn("client_write_error", "client_id", c.ID, "error", err)
				}
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
