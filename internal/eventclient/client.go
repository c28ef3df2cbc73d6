package eventclient

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// client.go = reconnecting WebSocket client for the live test-event feed.
// Socket callbacks and the reconnect timer all run on one loop goroutine per
// Start, so they never overlap. Stop is the only cancellation point.

const (
	DefaultReconnectDelay   = 3 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
)

// State is the lifecycle of the single owned connection.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Conn is the read side of an open socket. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens a connection to the feed. Dial must return once ctx is done.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type wsDialer struct {
	dialer *websocket.Dialer
}

func (d wsDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

type Client struct {
	dialer           Dialer
	handshakeTimeout time.Duration
	reconnectDelay   time.Duration
	logger           *slog.Logger
	observer         func(State)

	handler atomic.Pointer[Handler]
	state   atomic.Int32
	last    atomic.Pointer[Message]

	mu       sync.Mutex // guards cancel, conn, done, stopping
	cancel   context.CancelFunc
	conn     Conn
	done     chan struct{} // non-nil while active
	stopping chan struct{} // done of a loop a Stop is still waiting on
}

// New returns a stopped client.
func New(opts ...Option) *Client {
	c := &Client{
		reconnectDelay:   DefaultReconnectDelay,
		handshakeTimeout: DefaultHandshakeTimeout,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = wsDialer{dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: c.handshakeTimeout,
		}}
	}
	return c
}

// Start begins connecting to url and returns immediately. It is a no-op while
// the client is active, including while a reconnect is pending. If a Stop is
// still tearing down the previous loop, Start waits for it and then connects.
func (c *Client) Start(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.done == nil && c.stopping != nil {
		prev := c.stopping
		c.mu.Unlock()
		<-prev
		c.mu.Lock()
		if c.stopping == prev {
			c.stopping = nil
		}
	}
	if c.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.state.Store(int32(Connecting))

	go c.run(ctx, url, c.done)
}

// Stop cancels a pending reconnect or in-flight dial, closes the open
// connection and waits for the loop to exit. Safe to call repeatedly and
// from several goroutines. Handlers must not call Stop synchronously.
func (c *Client) Stop() {
	c.mu.Lock()
	done, cancel, conn := c.done, c.cancel, c.conn
	if done == nil {
		stopping := c.stopping
		c.mu.Unlock()
		if stopping != nil {
			<-stopping
		}
		return
	}
	cancel()
	c.done = nil
	c.cancel = nil
	c.stopping = done
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	<-done

	c.mu.Lock()
	if c.stopping == done {
		c.stopping = nil
	}
	c.mu.Unlock()
}

// SetHandler swaps the message callback. The next delivered message goes to h.
func (c *Client) SetHandler(h Handler) {
	c.handler.Store(&h)
}

func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) Connected() bool {
	return c.State() == Connected
}

// LastMessage returns the most recent successfully parsed message.
func (c *Client) LastMessage() (Message, bool) {
	msg := c.last.Load()
	if msg == nil {
		return Message{}, false
	}
	return *msg, true
}

func (c *Client) run(ctx context.Context, url string, done chan struct{}) {
	defer close(done)
	defer c.state.Store(int32(Disconnected))

	for attempt := 0; ; attempt++ {
		if attempt == 0 {
			c.notify(Connecting)
		} else {
			c.transition(Connecting)
		}

		c.connectAndRead(ctx, url)
		if ctx.Err() != nil {
			return
		}

		c.transition(Disconnected)
		c.logger.Info("ws_disconnected",
			"url", url,
			"retry_in", c.reconnectDelay.String(),
		)

		// exactly one pending reconnect, owned by this loop
		timer := time.NewTimer(c.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (c *Client) connectAndRead(ctx context.Context, url string) {
	conn, err := c.dialer.Dial(ctx, url)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("ws_connect_failed", "url", url, "error", err)
		}
		return
	}
	if !c.attach(ctx, conn) {
		conn.Close()
		return
	}
	defer c.detach(conn)

	c.transition(Connected)
	c.logger.Info("ws_connected", "url", url)

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("ws_read_error", "url", url, "error", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		c.deliver(frame)
	}
}

// attach publishes conn for Stop unless Stop already ran.
func (c *Client) attach(ctx context.Context, conn Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	c.conn = conn
	return true
}

func (c *Client) detach(conn Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close()
}

func (c *Client) deliver(frame []byte) {
	msg, err := ParseMessage(frame)
	if err != nil {
		c.logger.Warn("ws_message_parse_failed",
			"error", err,
			"size", len(frame),
		)
		return
	}
	c.last.Store(&msg)
	c.logger.Debug("ws_message_received",
		"type", msg.Type,
		"timestamp", msg.Timestamp,
	)

	h := c.handler.Load()
	if h == nil || *h == nil {
		return
	}
	c.invoke(*h, msg)
}

func (c *Client) invoke(h Handler, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("ws_handler_panic",
				"type", msg.Type,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	h(msg)
}

func (c *Client) transition(s State) {
	c.state.Store(int32(s))
	c.notify(s)
}

func (c *Client) notify(s State) {
	if c.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("ws_observer_panic", "state", s.String(), "panic", r)
		}
	}()
	c.observer(s)
}
