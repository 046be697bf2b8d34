// Package hub fans narration events out to WebSocket subscribers
// using a channel-based broadcast loop.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-narrate/pkg/events"
)

// Hub maintains the set of active subscribers and broadcasts to them.
type Hub struct {
	name string
	log  *slog.Logger

	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	done    chan struct{}
	running bool
}

// New creates a hub. Call Run before serving clients.
func New(name string, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		name:       name,
		log:        log.With("component", "hub", "hub", name),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the hub's main loop. It returns when ctx is done, after closing
// every subscriber.
func (h *Hub) Run(ctx context.Context) {
	h.mu.Lock()
	h.running = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		for c := range h.clients {
			close(c.send)
			delete(h.clients, c)
		}
		h.running = false
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("subscriber connected", "total", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("subscriber disconnected", "remaining", count)

		case data := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					// too slow to keep up
					close(c.send)
					delete(h.clients, c)
					h.log.Warn("dropped slow subscriber")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues pre-encoded JSON for every subscriber.
// The message is dropped when the queue is full.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("broadcast queue full, dropping message")
	}
}

// Publish implements events.Publisher.
func (h *Hub) Publish(_ context.Context, evt events.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

var _ events.Publisher = (*Hub)(nil)
