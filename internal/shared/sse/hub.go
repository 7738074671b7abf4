package sse

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Event a server-sent event
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Client a connected event stream
type Client struct {
	ID     string
	UserID string
	Events chan Event
}

// Hub routes events to connected clients
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Debug("sse client registered",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.Int("total", len(h.clients)))
}

func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		h.logger.Debug("sse client unregistered", zap.String("client_id", clientID), zap.Int("total", len(h.clients)))
	}
}

// Count connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends to every client; full buffers drop the event
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		h.deliver(client, event)
	}
}

// SendToUser sends to every stream of one user. Reports whether any
// stream of that user is connected.
func (h *Hub) SendToUser(userID string, event Event) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	found := false
	for _, client := range h.clients {
		if client.UserID == userID {
			found = true
			h.deliver(client, event)
		}
	}
	return found
}

func (h *Hub) deliver(client *Client, event Event) {
	select {
	case client.Events <- event:
	default:
		h.logger.Warn("sse client buffer full, dropping event",
			zap.String("client_id", client.ID),
			zap.String("event", event.EventType))
	}
}

// TaskUpdate payload of task_update events
type TaskUpdate struct {
	TaskID   string `json:"task_id"`
	EntityID string `json:"entity_id,omitempty"`
	Action   string `json:"action"`
}

// PublishTaskUpdate broadcasts a task_update and sends my_task_update to the
// given users
func (h *Hub) PublishTaskUpdate(update TaskUpdate, userIDs ...string) {
	data, _ := json.Marshal(update)
	h.Broadcast(Event{EventType: "task_update", Data: string(data)})
	for _, uid := range userIDs {
		if uid == "" {
			continue
		}
		h.SendToUser(uid, Event{EventType: "my_task_update", Data: string(data)})
	}
}
