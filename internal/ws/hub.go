package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"alert-publisher/internal/logging"
	"alert-publisher/internal/models"
)

const maxConnections = 64

// Hub fans channel-completion events out to connected operator dashboards.
// It implements publisher.ResultSink alongside the Kafka producer.
type Hub struct {
	mu          sync.Mutex
	connections map[*websocket.Conn]bool
	logger      *logging.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		connections: make(map[*websocket.Conn]bool),
		logger:      logger,
	}
}

// Add registers a client connection.
func (h *Hub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.connections) >= maxConnections {
		h.logger.Warnf("Max WebSocket connections reached, rejecting client")
		_ = conn.Close()
		return
	}
	h.connections[conn] = true
	h.logger.Infof("Added WebSocket connection (total: %d)", len(h.connections))
}

// Remove drops a client connection.
func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, conn)
	h.logger.Infof("Removed WebSocket connection (remaining: %d)", len(h.connections))
}

// PublishResult broadcasts the event to every connected client. Clients that
// fail a write are dropped.
func (h *Hub) PublishResult(_ context.Context, event models.ResultEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Errorf("Failed to marshal result event for %s: %v", event.AlertID, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.connections {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Errorf("Failed to send WebSocket message: %v", err)
			_ = conn.Close()
			delete(h.connections, conn)
		}
	}
}
