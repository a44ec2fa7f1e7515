package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/domain"
)

// Conn is the part of a websocket connection the hub and the voice stream
// use.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type outbound struct {
	userID  string
	message []byte
}

// Hub fans recorded turn events out to the owning user's connections.
type Hub struct {
	// Registered clients, by user.
	clients map[string]map[*Client]bool

	broadcast chan outbound

	mu  sync.RWMutex
	log *zap.Logger
}

type Client struct {
	hub  *Hub
	conn Conn
	// Buffered channel of outbound messages.
	send   chan []byte
	userID string
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		broadcast: make(chan outbound, 64),
		clients:   make(map[string]map[*Client]bool),
		log:       log,
	}
}

// Run delivers queued messages until ctx is done, then closes every
// connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, set := range h.clients {
				for client := range set {
					close(client.send)
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.userID] {
				select {
				case client.send <- msg.message:
				default:
					// Slow consumer.
					close(client.send)
					delete(h.clients[msg.userID], client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[*Client]bool)
	}
	h.clients[client.userID][client] = true
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[client.userID]
	if _, ok := set[client]; ok {
		delete(set, client)
		close(client.send)
		if len(set) == 0 {
			delete(h.clients, client.userID)
		}
	}
}

// Send queues message for every connection of userID. Messages are
// dropped when the hub is backed up.
func (h *Hub) Send(userID string, message []byte) {
	select {
	case h.broadcast <- outbound{userID: userID, message: message}:
	default:
		h.log.Warn("Hub backlog full, dropping event", zap.String("user_id", userID))
	}
}

// Consume is a message queue handler for TurnRecorded events.
func (h *Hub) Consume(data []byte) error {
	var event domain.TurnRecorded
	if err := json.Unmarshal(data, &event); err != nil {
		h.log.Warn("Dropping undecodable turn event", zap.Error(err))
		return err
	}
	if event.UserID == "" {
		return nil
	}
	h.Send(event.UserID, data)
	return nil
}

// Connections returns how many connections userID has open.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Serve registers conn for userID and blocks until it closes.
func (h *Hub) Serve(conn Conn, userID string) {
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256), userID: userID}
	h.add(client)

	go client.writePump()
	client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()
	for {
		// The feed is push only; reads keep control frames flowing.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
