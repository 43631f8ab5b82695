package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/qdice/pkg/dice"
)

// WSEvent mirrors the server's WebSocket envelope.
type WSEvent struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// Client is an HTTP+WebSocket client for a single remote player.
type Client struct {
	name     string
	baseURL  string
	token    string
	userID   string
	wsConn   *websocket.Conn
	events   chan WSEvent
	httpC    *http.Client
	mu       sync.Mutex
	closedWS bool
}

// NewClient creates a new client targeting the given server URL.
func NewClient(name, baseURL string) *Client {
	return &Client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		events:  make(chan WSEvent, 64),
		httpC:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Name returns the player name.
func (c *Client) Name() string { return c.name }

// UserID returns the user ID after login.
func (c *Client) UserID() string { return c.userID }

// Login authenticates via the dev login endpoint.
func (c *Client) Login(ctx context.Context) error {
	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/dev?name="+url.QueryEscape(c.name), nil, &resp); err != nil {
		return fmt.Errorf("dev login: %w", err)
	}
	c.token = resp.Token
	c.userID = resp.User.ID
	log.Debug().Str("bot", c.name).Str("userId", c.userID).Msg("Bot logged in")
	return nil
}

// Status fetches the public snapshot of a table.
func (c *Client) Status(ctx context.Context, tag string) (*dice.TableStatus, error) {
	var st dice.TableStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/tables/"+url.PathEscape(tag), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Send posts a command to a table.
func (c *Client) Send(ctx context.Context, tag string, cmd dice.Command) error {
	body := map[string]string{
		"from":    string(cmd.From),
		"to":      string(cmd.To),
		"message": cmd.Message,
	}
	path := "/api/v1/tables/" + url.PathEscape(tag) + "/" + string(cmd.Type)
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// ConnectWS opens a WebSocket connection and starts listening for events.
func (c *Client) ConnectWS(ctx context.Context) error {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/api/v1/ws?token=" + url.QueryEscape(c.token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("ws dial: %w", err)
	}
	c.wsConn = conn

	go c.readWSLoop()
	return nil
}

// Subscribe enters a table over the WebSocket.
func (c *Client) Subscribe(tag string) error {
	msg := map[string]string{"action": "subscribe", "tag": tag}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wsConn.WriteJSON(msg)
}

// Events returns the channel of incoming WebSocket events. It is closed
// when the connection drops.
func (c *Client) Events() <-chan WSEvent { return c.events }

// CloseWS closes the WebSocket connection.
func (c *Client) CloseWS() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wsConn != nil && !c.closedWS {
		c.closedWS = true
		c.wsConn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.wsConn.Close()
	}
}

func (c *Client) readWSLoop() {
	defer close(c.events)
	for {
		_, msg, err := c.wsConn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closedWS
			c.mu.Unlock()
			if !closed {
				log.Debug().Err(err).Str("bot", c.name).Msg("WS read error")
			}
			return
		}
		var event WSEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			continue
		}
		select {
		case c.events <- event:
		default:
			// the player refetches status on the next event or poll
		}
	}
}

// do sends a request and decodes the JSON response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpC.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StatusError is a non-2xx server response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}
