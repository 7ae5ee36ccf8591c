package monitor

import (
	"sync"

	"github.com/go-outernet/receiver/internal/logging"
	"github.com/go-outernet/receiver/internal/metrics"
)

// BackpressurePolicy controls what happens when a client's outbound queue
// is full at broadcast time.
type BackpressurePolicy int

const (
	PolicyDrop BackpressurePolicy = iota
	PolicyKick
)

// Client is one connected monitor subscriber.
type Client struct {
	Out       chan Event
	Closed    chan struct{}
	closeOnce sync.Once
}

// Close signals the client is closed (idempotent).
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.Closed)
	})
}

// Hub fans out events to every connected client.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	OutBufSize int
	Policy     BackpressurePolicy
}

// NewHub creates a Hub with default settings.
func NewHub() *Hub { return &Hub{clients: make(map[*Client]struct{})} }

// Add registers a client with the hub.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	prev := len(h.clients)
	h.clients[c] = struct{}{}
	cur := len(h.clients)
	h.mu.Unlock()
	if prev == 0 && cur == 1 {
		logging.L().Info("monitor: first client connected")
	}
}

// Remove unregisters a client; safe to call multiple times.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	_, existed := h.clients[c]
	if existed {
		delete(h.clients, c)
	}
	cur := len(h.clients)
	h.mu.Unlock()
	select {
	case <-c.Closed:
	default:
		c.Close()
	}
	metrics.SetMonitorClients(cur)
	if existed && cur == 0 {
		logging.L().Info("monitor: last client disconnected")
	}
}

// Broadcast sends an event to all connected clients honoring the
// backpressure policy. It never blocks the caller (the carousel pipeline),
// which is why a full client queue is dropped or kicked rather than waited
// on.
func (h *Hub) Broadcast(e Event) {
	clients := h.Snapshot()
	metrics.SetMonitorClients(len(clients))
	for _, c := range clients {
		select {
		case c.Out <- e:
		default:
			if h.Policy == PolicyKick {
				metrics.IncMonitorKick()
				c.Close()
			} else {
				metrics.IncMonitorDrop()
			}
		}
	}
}

// Snapshot returns a slice copy of current clients (read-only use).
func (h *Hub) Snapshot() []*Client {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	return clients
}

// Count returns the number of active clients.
func (h *Hub) Count() int { h.mu.RLock(); n := len(h.clients); h.mu.RUnlock(); return n }
