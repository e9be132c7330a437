package services

import (
	"sync"
	"time"
)

// ChangeEvent is a coarse, table-level change notification. Subscribers
// are expected to re-fetch their current scope rather than patch state
// from the event; the event carries just enough to decide relevance.
type ChangeEvent struct {
	Table      string    `json:"table"`  // projects, tasks, submissions, groups
	Action     string    `json:"action"` // insert, update, delete
	RecordID   uint      `json:"record_id,omitempty"`
	ProjectID  uint      `json:"project_id,omitempty"`
	GroupID    uint      `json:"group_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventHub fans change events out to SSE subscribers.
type EventHub struct {
	clients map[string]chan ChangeEvent
	mu      sync.RWMutex
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients: make(map[string]chan ChangeEvent),
	}
}

// Subscribe registers a new client and returns a channel for receiving events
func (h *EventHub) Subscribe(clientID string) <-chan ChangeEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Buffered channel so a slow reader cannot block publishers
	ch := make(chan ChangeEvent, 100)
	h.clients[clientID] = ch
	return ch
}

// Unsubscribe removes a client from the hub
func (h *EventHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.clients[clientID]; ok {
		close(ch)
		delete(h.clients, clientID)
	}
}

// Publish broadcasts an event to all connected clients
func (h *EventHub) Publish(event ChangeEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients {
		// Non-blocking send: a client that falls behind misses the event
		// and converges on its next re-fetch anyway.
		select {
		case ch <- event:
		default:
		}
	}
}

// ClientCount returns the number of connected clients
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Global event hub instance
var (
	globalEventHub *EventHub
	eventHubOnce   sync.Once
)

// GetEventHub returns the global change-event hub singleton
func GetEventHub() *EventHub {
	eventHubOnce.Do(func() {
		globalEventHub = NewEventHub()
	})
	return globalEventHub
}

// PublishChange is a convenience wrapper for publishing a table change.
func PublishChange(table, action string, recordID, projectID, groupID uint) {
	GetEventHub().Publish(ChangeEvent{
		Table:     table,
		Action:    action,
		RecordID:  recordID,
		ProjectID: projectID,
		GroupID:   groupID,
	})
}
