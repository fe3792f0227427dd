// Package websocket pushes pipeline progress events to connected browsers.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"nsecli/pkg/contracts/domain"
)

// Message type constants mirrored by the frontend.
const (
	TypeConnection       = "connection"
	TypeBatchProgress    = "dashboard:progress"
	TypeDayEntry         = "acquisition:day"
	TypePipelineStage    = "pipeline:stage"
	TypePipelineComplete = "pipeline:complete"
)

// Message is the envelope for every event pushed over the socket.
type Message struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
// Slow clients are dropped rather than allowed to stall a broadcast.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	quit       chan struct{}

	mu      sync.RWMutex
	clients map[*Client]bool
	running bool

	logger *slog.Logger
}

// NewHub creates a hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		quit:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("component", "websocket_hub")),
	}
}

// Start launches the hub loop. Calling Start twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()
	go h.run()
}

// Stop shuts the hub down and closes every client connection.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()
	close(h.quit)
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			if data, err := json.Marshal(Message{
				Type:      TypeConnection,
				Timestamp: time.Now().UTC(),
				Payload:   map[string]string{"client_id": client.id},
			}); err == nil {
				select {
				case client.send <- data:
				default:
				}
			}
			h.logger.Debug("client connected",
				slog.String("client_id", client.id),
				slog.Int("clients", count))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client disconnected",
				slog.String("client_id", client.id),
				slog.Int("clients", count))

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast pushes a typed event to every connected client. Broadcasting on
// a stopped hub is a no-op.
func (h *Hub) Broadcast(messageType string, payload interface{}) {
	data, err := json.Marshal(Message{
		Type:      messageType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast", slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if !running {
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.quit:
	}
}

// BroadcastBatchProgress pushes one dashboard batch progress event.
func (h *Hub) BroadcastBatchProgress(progress domain.BatchProgress) {
	h.Broadcast(TypeBatchProgress, progress)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
