// Package websocket streams track status transitions to connected
// clients. The hub is purely observational; it never mutates track or
// job state.
package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/cravaudio/api/internal/model"
)

// Client represents a WebSocket client subscribed to one track.
type Client struct {
	TrackID string
	Conn    *websocket.Conn
	Send    chan []byte
}

// Hub maintains active WebSocket connections grouped by track id.
type Hub struct {
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	TrackID string
	Message []byte
}

// StatusMessage is the wire format of a status transition.
type StatusMessage struct {
	Type    string            `json:"type"`
	TrackID string            `json:"trackId"`
	Status  model.TrackStatus `json:"status"`
	Error   string            `json:"error,omitempty"`
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.TrackID] == nil {
				h.clients[client.TrackID] = make(map[*Client]bool)
			}
			h.clients[client.TrackID][client] = true
			h.mu.Unlock()
			log.Printf("Client subscribed to track %s", client.TrackID)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.TrackID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.TrackID)
					}
				}
			}
			h.mu.Unlock()
			log.Printf("Client unsubscribed from track %s", client.TrackID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.TrackID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.Message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// NotifyStatus broadcasts a status transition to the track's subscribers.
// It satisfies the orchestrator's notifier interface.
func (h *Hub) NotifyStatus(trackID string, status model.TrackStatus, errMsg string) {
	msg := StatusMessage{
		Type:    "status",
		TrackID: trackID,
		Status:  status,
		Error:   errMsg,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal status message: %v", err)
		return
	}

	h.broadcast <- &BroadcastMessage{
		TrackID: trackID,
		Message: data,
	}
}

// HandleConnection handles a WebSocket connection
func (h *Hub) HandleConnection(c *websocket.Conn, trackID string) {
	client := &Client{
		TrackID: trackID,
		Conn:    c,
		Send:    make(chan []byte, 256),
	}

	h.Register(client)
	defer h.Unregister(client)

	// Start writer goroutine
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				// Send ping for keep-alive
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		// Handle client ping messages
		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == "ping" {
			data, _ := json.Marshal(map[string]string{"type": "pong"})
			client.Send <- data
		}
	}
}
