package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSEvent is the envelope for all WebSocket messages.
type WSEvent struct {
	Topic string `json:"topic"`
	Data  any    `json:"data"`
}

// ClientMessage is the envelope for messages sent from the client.
type ClientMessage struct {
	Action string `json:"action"` // subscribe, unsubscribe or heartbeat
	Tag    string `json:"tag"`
}

// WSConn wraps a WebSocket connection with its identity and subscriptions.
type WSConn struct {
	conn     *websocket.Conn
	clientID string
	userID   string // empty for anonymous watchers
	send     chan []byte
}

// Hub manages WebSocket connections and topic subscriptions. It implements
// service.Publisher.
type Hub struct {
	mu          sync.RWMutex
	connections map[*WSConn]bool
	topics      map[string]map[*WSConn]bool
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*WSConn]bool),
		topics:      make(map[string]map[*WSConn]bool),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = true
}

// Unregister removes a connection from the hub and all its subscriptions.
// It returns the topics the connection was subscribed to.
func (h *Hub) Unregister(c *WSConn) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connections[c] {
		return nil
	}
	delete(h.connections, c)
	var topics []string
	for topic, conns := range h.topics {
		if conns[c] {
			topics = append(topics, topic)
		}
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.topics, topic)
		}
	}
	close(c.send)
	return topics
}

// Subscribe adds a registered connection to a topic.
func (h *Hub) Subscribe(c *WSConn, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connections[c] {
		return
	}
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*WSConn]bool)
	}
	h.topics[topic][c] = true
}

// Unsubscribe removes a connection from a topic.
func (h *Hub) Unsubscribe(c *WSConn, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.topics[topic]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Publish sends payload to every connection subscribed to topic. Slow
// clients whose buffer is full miss the message.
func (h *Hub) Publish(_ context.Context, topic string, payload any) error {
	data, err := json.Marshal(WSEvent{Topic: topic, Data: payload})
	if err != nil {
		return fmt.Errorf("marshal ws event: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.topics[topic] {
		select {
		case c.send <- data:
		default:
			log.Warn().Str("clientId", c.clientID).Str("topic", topic).Msg("Dropping WebSocket message, buffer full")
		}
	}
	return nil
}

// SendTo delivers payload to a single connection.
func (h *Hub) SendTo(c *WSConn, topic string, payload any) {
	data, err := json.Marshal(WSEvent{Topic: topic, Data: payload})
	if err != nil {
		log.Error().Err(err).Str("clientId", c.clientID).Msg("Failed to marshal WebSocket event")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.connections[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// ConnectionCount returns the total number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// SubscriberCount returns the number of connections subscribed to a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
