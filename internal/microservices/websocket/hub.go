package websocket

import (
	"log/slog"
	"sync"
)

// Central hub holding every feed subscriber.
// Each connection runs its own read and write goroutine; the hub only
// hands them payloads through their buffered send channel.

type Hub struct {
	clients map[string]*Client // key: client ID
	mu      sync.RWMutex       // read lock for broadcast, write lock for register/unregister
	logger  *slog.Logger
}

// constructor for Hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds a client to the hub
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client_connected",
		"client_id", c.ID,
		"remote_addr", c.RemoteAddr(),
		"total", total,
	)
}

// Unregister removes the client and closes its send channel, which makes the
// write pump send a close frame and exit. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	current, ok := h.clients[c.ID]
	if ok && current == c {
		delete(h.clients, c.ID)
		close(c.SendChannel)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.logger.Info("client_disconnected",
			"client_id", c.ID,
			"total", total,
		)
	}
}

// Send queues payload for one client. Returns false when the client is gone
// or its buffer is full.
func (h *Hub) Send(c *Client, payload []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.clients[c.ID] != c {
		return false
	}
	select {
	case c.SendChannel <- payload:
		return true
	default:
		return false
	}
}

// Broadcast marshals msg once and queues it for every client.
func (h *Hub) Broadcast(msg *Message) error {
	payload, err := msg.ToJSON()
	if err != nil {
		return err
	}
	h.BroadcastRaw(payload)
	h.logger.Debug("message_broadcast", "type", msg.Type)
	return nil
}

// BroadcastRaw queues an already encoded frame for every client.
// Clients whose buffer is full are dropped.
func (h *Hub) BroadcastRaw(payload []byte) {
	var slow []*Client

	h.mu.RLock()
	for _, c := range h.clients {
		select {
		case c.SendChannel <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("client_send_buffer_full", "client_id", c.ID)
		h.Unregister(c)
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll disconnects every client, used on shutdown
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.SendChannel)
		h.logger.Info("client_connection_closed", "client_id", id)
	}
	h.clients = make(map[string]*Client) // reset the map, dropping all references
}
