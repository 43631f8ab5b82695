package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/qdice/internal/repository"
	"github.com/freeeve/qdice/internal/service"
	"github.com/freeeve/qdice/pkg/dice"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = 54 * time.Second // Must be less than pongWait
	maxMsgSize  = 4096
	sendBufSize = 256
	opTimeout   = 5 * time.Second
)

// Direct messages sent to a single client.
const (
	msgConnected   = "connected"
	msgChatHistory = "chat-history"
	msgError       = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS handled by middleware
	},
}

// WSHandler handles WebSocket connections. Subscribing to a table enters
// it as a watcher; closing the socket exits every entered table.
type WSHandler struct {
	hub    *Hub
	tables *service.TableService
	users  repository.UserRepository
}

// NewWSHandler creates a WSHandler.
func NewWSHandler(hub *Hub, tables *service.TableService, users repository.UserRepository) *WSHandler {
	return &WSHandler{hub: hub, tables: tables, users: users}
}

// ServeWS handles GET /api/v1/ws and upgrades to WebSocket. The optional
// tag query parameter subscribes to a table right away.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	user, err := actingUser(r.Context(), h.users)
	if err != nil {
		writeTableError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSConn{
		conn:     conn,
		clientID: uuid.NewString(),
		send:     make(chan []byte, sendBufSize),
	}
	if user != nil {
		client.userID = user.ID
	}
	h.hub.Register(client)
	h.hub.Subscribe(client, service.GlobalTopic)
	h.hub.SendTo(client, msgConnected, map[string]string{"clientId": client.clientID})

	go h.writePump(client)
	go h.readPump(client, user)

	if tag := r.URL.Query().Get("tag"); tag != "" {
		h.enter(client, user, tag)
	}

	log.Info().Str("clientId", client.clientID).Str("userId", client.userID).
		Int("total", h.hub.ConnectionCount()).Msg("WebSocket client connected")
}

func (h *WSHandler) execute(tag string, cmd dice.Command) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return h.tables.Execute(ctx, tag, cmd)
}

// enter subscribes the client to a table and sends it the current status
// and recent chat.
func (h *WSHandler) enter(c *WSConn, user *dice.User, tag string) {
	cmd := dice.Command{Type: dice.CmdEnter, User: user, ClientID: c.clientID}
	if err := h.execute(tag, cmd); err != nil {
		h.hub.SendTo(c, msgError, map[string]string{"tag": tag, "error": err.Error()})
		return
	}
	topic := service.TableTopic(tag)
	h.hub.Subscribe(c, topic)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if t, err := h.tables.Get(ctx, tag); err == nil {
		h.hub.SendTo(c, topic, dice.Event{Type: dice.EventUpdate, Table: tag, Payload: dice.Serialize(t)})
	}
	lines, err := h.tables.ChatHistory(ctx, tag)
	if err != nil {
		log.Warn().Err(err).Str("tag", tag).Msg("Failed to load chat history")
		return
	}
	h.hub.SendTo(c, msgChatHistory, map[string]any{"tag": tag, "lines": lines})
}

func (h *WSHandler) exit(c *WSConn, user *dice.User, tag string) {
	cmd := dice.Command{Type: dice.CmdExit, User: user, ClientID: c.clientID}
	if err := h.execute(tag, cmd); err != nil {
		log.Warn().Err(err).Str("tag", tag).Str("clientId", c.clientID).Msg("Exit failed")
	}
}

// readPump reads messages from the WebSocket connection.
func (h *WSHandler) readPump(c *WSConn, user *dice.User) {
	defer func() {
		for _, topic := range h.hub.Unregister(c) {
			if tag, ok := service.TagOfTopic(topic); ok {
				h.exit(c, user, tag)
			}
		}
		c.conn.Close()
		log.Info().Str("clientId", c.clientID).Msg("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("clientId", c.clientID).Msg("WebSocket unexpected close")
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Tag == "" {
			continue
		}

		switch msg.Action {
		case "subscribe":
			h.enter(c, user, msg.Tag)
		case "unsubscribe":
			h.hub.Unsubscribe(c, service.TableTopic(msg.Tag))
			h.exit(c, user, msg.Tag)
		case "heartbeat":
			cmd := dice.Command{Type: dice.CmdHeartbeat, User: user, ClientID: c.clientID}
			if err := h.execute(msg.Tag, cmd); err != nil {
				log.Debug().Err(err).Str("tag", msg.Tag).Msg("Heartbeat failed")
			}
		}
	}
}

// writePump writes messages to the WebSocket connection.
func (h *WSHandler) writePump(c *WSConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
