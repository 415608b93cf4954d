package notifications

import (
	"context"
	"errors"
	"log"
	"sync"

	"reelshare/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

// ErrHubClosed is returned by Register after Shutdown.
var ErrHubClosed = errors.New("notification hub is shut down")

// Hub is a websocket hub that maps userID -> set of Clients.
type Hub struct {
	mu         sync.RWMutex
	conns      map[string]map[*Client]struct{}
	totalConns int
	closed     bool
}

// NewHub creates a new Hub instance for managing notifications.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[*Client]struct{})}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "notification hub" }

// Register a connection for a given userID. Returns the Client or error if limits exceeded.
func (h *Hub) Register(userID string, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if h.totalConns >= maxTotalConns {
		return nil, errors.New("server connection limit reached")
	}

	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		return nil, errors.New("user connection limit reached")
	}

	client := NewClient(h, conn, userID)
	m[client] = struct{}{}
	h.totalConns++
	observability.ActiveWebSockets.Inc()
	return client, nil
}

// UnregisterClient removes client and closes its send channel.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.conns[client.UserID]
	if !ok {
		return
	}
	if _, exists := m[client]; exists {
		delete(m, client)
		close(client.Send)
		h.totalConns--
		observability.ActiveWebSockets.Dec()
	}
	if len(m) == 0 {
		delete(h.conns, client.UserID)
	}
}

// Broadcast sends message to all connections for userID and returns how
// many accepted it.
func (h *Hub) Broadcast(userID string, message string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	data := []byte(message)
	for c := range h.conns[userID] {
		if c.TrySend(data) {
			delivered++
		}
	}
	return delivered
}

// BroadcastAll sends message to every connected websocket client.
func (h *Hub) BroadcastAll(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for _, clients := range h.conns {
		for c := range clients {
			c.TrySend(data)
		}
	}
}

// IsOnline reports whether a user currently has at least one active websocket connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID]) > 0
}

// StartWiring connects the Notifier to this hub: it subscribes to Redis pattern and
// forwards messages to matching userID connections.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, func(channel, payload string) {
		if channel == broadcastChannel {
			h.BroadcastAll(payload)
			return
		}
		userID, ok := UserFromChannel(channel)
		if !ok {
			log.Printf("invalid notification channel: %s", channel)
			return
		}
		h.Broadcast(userID, payload)
	})
}

// Shutdown gracefully closes all websocket connections
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	// Closing Send makes each WritePump send a close frame and exit.
	for _, userConns := range h.conns {
		for client := range userConns {
			close(client.Send)
			observability.ActiveWebSockets.Dec()
		}
	}
	h.conns = make(map[string]map[*Client]struct{})
	h.totalConns = 0
	return nil
}
