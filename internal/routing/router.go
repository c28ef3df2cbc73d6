package routing

import (
	"log/slog"
	"sync"

	"linetest/internal/eventclient"
)

// Router dispatches feed messages by their type field.
// Its Dispatch method is meant to be installed as the client handler.
type Router struct {
	mu       sync.RWMutex
	handlers map[string][]eventclient.Handler
	logger   *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		handlers: make(map[string][]eventclient.Handler),
		logger:   logger,
	}
}

// Handle registers fn for msgType. Several handlers may share a type and run in
// registration order.
func (r *Router) Handle(msgType string, fn eventclient.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[msgType] = append(r.handlers[msgType], fn)
}

// Dispatch calls every handler registered for msg.Type. Unknown types are ignored.
func (r *Router) Dispatch(msg eventclient.Message) {
	r.mu.RLock()
	hs := r.handlers[msg.Type]
	r.mu.RUnlock()

	if len(hs) == 0 {
		r.logger.Debug("route_unhandled_type", "type", msg.Type)
		return
	}
	for _, h := range hs {
		h(msg)
	}
}
