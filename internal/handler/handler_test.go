package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/freeeve/qdice/internal/auth"
	"github.com/freeeve/qdice/internal/repository/sqlite"
	"github.com/freeeve/qdice/internal/service"
	"github.com/freeeve/qdice/pkg/dice"
)

type testEnv struct {
	router http.Handler
	tables *service.TableService
	store  *sqlite.Store
	hub    *Hub
	jwt    *auth.JWTManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "qdice.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	hub := NewHub()
	tables := service.NewTableService(service.Options{
		Configs: []dice.Config{{
			Tag: "Mino", Name: "Mino", MapName: "Mino",
			PlayerSlots: 4, StartSlots: 3, StackSize: 3, Points: 100,
		}},
		Store:       store,
		Users:       store,
		Engine:      dice.NewEngine(dice.DefaultRules(), dice.NewRand(1)),
		Publisher:   hub,
		AttackDelay: time.Hour,
	})
	t.Cleanup(tables.Stop)

	jwtMgr := auth.NewJWTManager("test-secret")
	return &testEnv{
		router: NewRouter(RouterConfig{Tables: tables, Users: store, Hub: hub, JWT: jwtMgr, DevLogin: true}),
		tables: tables,
		store:  store,
		hub:    hub,
		jwt:    jwtMgr,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, name string) (string, string) {
	t.Helper()
	rec := e.do(t, http.MethodGet, "/auth/dev?name="+url.QueryEscape(name), "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token, resp.User.ID
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) dice.TableStatus {
	t.Helper()
	var st dice.TableStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	return st
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ok"`)
}

func TestDevLoginAndMe(t *testing.T) {
	env := newTestEnv(t)
	token, id := env.login(t, "alice")

	rec := env.do(t, http.MethodGet, "/api/v1/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
		Level       int    `json:"level"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.Equal(t, id, me.ID)
	require.Equal(t, "alice", me.DisplayName)
	require.Equal(t, 1, me.Level)

	// logging in again keeps the same account
	_, again := env.login(t, "alice")
	require.Equal(t, id, again)

	require.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/v1/me", "", nil).Code)
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/auth/dev", "", nil).Code)
}

func TestDevLoginDisabled(t *testing.T) {
	env := newTestEnv(t)
	router := NewRouter(RouterConfig{Tables: env.tables, Users: env.store, Hub: env.hub, JWT: env.jwt})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/dev?name=bob", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJoinAndLeave(t *testing.T) {
	env := newTestEnv(t)
	token, id := env.login(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/v1/tables/Mino/Join", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decodeStatus(t, rec)
	require.Equal(t, dice.StatusPaused, st.Status)
	require.Len(t, st.Players, 1)
	require.Equal(t, id, st.Players[0].ID)
	require.Equal(t, "alice", st.Players[0].Name)

	rec = env.do(t, http.MethodPost, "/api/v1/tables/Mino/Join", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "already joined", errorOf(t, rec))

	rec = env.do(t, http.MethodPost, "/api/v1/tables/Mino/Leave", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decodeStatus(t, rec).Players)
}

func TestCommandRequiresLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/tables/Mino/Join", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/tables/Mino/Enter", "", map[string]string{"clientId": "c1"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, decodeStatus(t, rec).WatchCount)

	rec = env.do(t, http.MethodPost, "/api/v1/tables/Mino/Join", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCommandErrors(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.login(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/v1/tables/Mino/Dance", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/tables/Nope/Join", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/tables/Mino/Attack", token, map[string]string{"from": "🍋", "to": "🍒"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "attack while not STATUS_PLAYING", errorOf(t, rec))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tables/Mino/Chat", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+token)
	bad := httptest.NewRecorder()
	env.router.ServeHTTP(bad, req)
	require.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestListAndGetTables(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/tables", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var infos []dice.TableInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 1)
	require.Equal(t, "Mino", infos[0].Tag)
	require.Equal(t, dice.StatusFinished, infos[0].Status)
	require.Positive(t, infos[0].LandCount)

	rec = env.do(t, http.MethodGet, "/api/v1/tables/Mino", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeStatus(t, rec)
	require.Equal(t, "Mino", st.MapName)
	require.Len(t, st.Lands, infos[0].LandCount)

	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/tables/Nope", "", nil).Code)
}

func TestChatHistoryWithoutLog(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.login(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/v1/tables/Mino/Chat", token, map[string]string{"message": "hello"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/tables/Mino/chat", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())

	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/tables/Nope/chat", "", nil).Code)
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func topicOf(t *testing.T, ev map[string]json.RawMessage) string {
	t.Helper()
	var topic string
	require.NoError(t, json.Unmarshal(ev["topic"], &topic))
	return topic
}

func TestWebSocketSubscribeEntersTable(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Equal(t, msgConnected, topicOf(t, readEvent(t, conn)))

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "subscribe", Tag: "Mino"}))

	seen := map[string]bool{}
	for !seen[msgChatHistory] {
		seen[topicOf(t, readEvent(t, conn))] = true
	}
	require.True(t, seen[service.TableTopic("Mino")])

	tbl, err := env.tables.Get(context.Background(), "Mino")
	require.NoError(t, err)
	require.Len(t, tbl.Watching, 1)

	// events published on the table topic reach the subscriber
	require.NoError(t, env.hub.Publish(context.Background(), service.TableTopic("Mino"),
		dice.Event{Type: dice.EventChat, Table: "Mino", Payload: dice.ChatPayload{Message: "hi"}}))
	require.Equal(t, service.TableTopic("Mino"), topicOf(t, readEvent(t, conn)))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		tbl, err := env.tables.Get(context.Background(), "Mino")
		return err == nil && len(tbl.Watching) == 0
	}, 2*time.Second, 20*time.Millisecond)
}
