package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Message is a change notification pushed to a user's open views.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     string         `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action, id string, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub tracks connected clients per user key.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userKey]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userKey] = set
	}
	set[c] = struct{}{}
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.userKey]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userKey)
	}
}

// Publish sends msg to every client of userKey. Slow clients drop messages.
func (h *Hub) Publish(userKey string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[userKey] {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("dropped message", "user_key", userKey, "type", msg.Type)
		}
	}
}

// ClientCount returns the number of connected clients for userKey, or of
// all users when userKey is empty.
func (h *Hub) ClientCount(userKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if userKey != "" {
		return len(h.clients[userKey])
	}
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}
