package eventclient

import (
	"log/slog"
	"time"
)

// Option configures a Client.
type Option func(*Client)

// WithReconnectDelay sets the fixed wait between a close and the next
// connection attempt. Non-positive values are ignored.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.reconnectDelay = d
		}
	}
}

// WithHandshakeTimeout bounds the opening handshake of the default dialer.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.handshakeTimeout = d
	}
}

// WithDialer replaces the gorilla/websocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHandler installs the initial handler, same as calling SetHandler.
func WithHandler(h Handler) Option {
	return func(c *Client) {
		c.handler.Store(&h)
	}
}

// WithStateObserver registers fn to be called on the connection loop after
// every lifecycle transition. Teardown caused by Stop is not reported.
func WithStateObserver(fn func(State)) Option {
	return func(c *Client) {
		c.observer = fn
	}
}
