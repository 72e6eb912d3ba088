// Package notifications fans domain events out to websocket clients
// watching a profile's feed.
package notifications

import (
	"context"
	"errors"
	"strings"
	"sync"

	"askbox/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	maxConnsPerProfile = 8
	maxTotalConns      = 10000
)

var (
	ErrServerFull  = errors.New("server connection limit reached")
	ErrProfileFull = errors.New("profile connection limit reached")
	ErrHubClosed   = errors.New("feed hub is shut down")
)

// Subscriber delivers raw event payloads addressed to a profile.
// events.RedisPublisher satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context, onMessage func(profileID, payload string)) error
}

// Hub maps profile id to the clients watching that profile.
type Hub struct {
	mu         sync.RWMutex
	conns      map[string]map[*Client]struct{}
	totalConns int
	closed     bool
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[*Client]struct{})}
}

// Register adds a client for profileID. conn may be nil in tests.
// profileID is cloned: callers often pass strings backed by a request
// buffer that is reused once the handler returns.
func (h *Hub) Register(profileID string, userID uint, conn *websocket.Conn) (*Client, error) {
	profileID = strings.Clone(profileID)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if h.totalConns >= maxTotalConns {
		return nil, ErrServerFull
	}
	m, ok := h.conns[profileID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[profileID] = m
	}
	if len(m) >= maxConnsPerProfile {
		return nil, ErrProfileFull
	}

	client := newClient(h, conn, profileID, userID)
	m[client] = struct{}{}
	h.totalConns++
	observability.ActiveFeedConnections.Inc()
	return client, nil
}

// Unregister removes client and closes its send queue. Safe to call twice.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.conns[client.ProfileID]
	if !ok {
		return
	}
	if _, exists := m[client]; !exists {
		return
	}
	delete(m, client)
	if len(m) == 0 {
		delete(h.conns, client.ProfileID)
	}
	h.totalConns--
	observability.ActiveFeedConnections.Dec()
	close(client.Send)
}

// Broadcast queues message for every client watching profileID.
func (h *Hub) Broadcast(profileID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns[profileID] {
		c.TrySend(message)
	}
}

// Watchers returns the number of clients watching profileID.
func (h *Hub) Watchers(profileID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[profileID])
}

// DisconnectUser drops every client userID holds on profileID, used when the
// user stops managing that profile.
func (h *Hub) DisconnectUser(profileID string, userID uint) {
	h.mu.RLock()
	var victims []*Client
	for c := range h.conns[profileID] {
		if c.UserID == userID {
			victims = append(victims, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range victims {
		h.Unregister(c)
	}
}

// Close drops every client watching profileID, used when the profile is deleted.
func (h *Hub) Close(profileID string) {
	h.mu.RLock()
	victims := make([]*Client, 0, len(h.conns[profileID]))
	for c := range h.conns[profileID] {
		victims = append(victims, c)
	}
	h.mu.RUnlock()

	for _, c := range victims {
		h.Unregister(c)
	}
}

// StartWiring forwards everything sub delivers to the matching profile's clients
// until ctx is cancelled.
func (h *Hub) StartWiring(ctx context.Context, sub Subscriber) error {
	return sub.Subscribe(ctx, func(profileID, payload string) {
		h.Broadcast(profileID, []byte(payload))
	})
}

// Shutdown closes every send queue; each WritePump then sends the close frame
// and drops its socket.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, clients := range h.conns {
		for c := range clients {
			close(c.Send)
			observability.ActiveFeedConnections.Dec()
		}
	}
	h.conns = make(map[string]map[*Client]struct{})
	h.totalConns = 0
	return nil
}
