package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/qdice/internal/auth"
	"github.com/freeeve/qdice/internal/repository"
	"github.com/freeeve/qdice/internal/service"
	"github.com/freeeve/qdice/pkg/dice"
)

// TableHandler serves table status and command endpoints.
type TableHandler struct {
	tables *service.TableService
	users  repository.UserRepository
}

// NewTableHandler creates a TableHandler.
func NewTableHandler(tables *service.TableService, users repository.UserRepository) *TableHandler {
	return &TableHandler{tables: tables, users: users}
}

type commandRequest struct {
	ClientID string `json:"clientId"`
	From     string `json:"from"`
	To       string `json:"to"`
	Message  string `json:"message"`
}

// anonymousAllowed lists commands a watcher may send without logging in.
func anonymousAllowed(t dice.CommandType) bool {
	return t == dice.CmdEnter || t == dice.CmdExit || t == dice.CmdHeartbeat
}

// actingUser resolves the caller into an engine identity, or nil when the
// request is anonymous.
func actingUser(ctx context.Context, users repository.UserRepository) (*dice.User, error) {
	claims := auth.ClaimsFromContext(ctx)
	if claims == nil {
		return nil, nil
	}
	if users != nil {
		u, err := users.FindByID(ctx, claims.UserID)
		if err != nil {
			return nil, fmt.Errorf("find user %s: %w", claims.UserID, err)
		}
		if u != nil {
			return u.DiceUser(), nil
		}
	}
	return &dice.User{ID: claims.UserID, Name: claims.Name, Level: 1}, nil
}

// Command handles POST /api/v1/tables/{tag}/{command}
func (h *TableHandler) Command(w http.ResponseWriter, r *http.Request) {
	tag := r.PathValue("tag")
	typ, ok := dice.ParseCommandType(r.PathValue("command"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown command")
		return
	}

	var req commandRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := actingUser(r.Context(), h.users)
	if err != nil {
		writeTableError(w, err)
		return
	}
	if user == nil && !anonymousAllowed(typ) {
		writeError(w, http.StatusUnauthorized, "login required")
		return
	}

	cmd := dice.Command{
		Type:     typ,
		User:     user,
		ClientID: req.ClientID,
		From:     dice.Emoji(req.From),
		To:       dice.Emoji(req.To),
		Message:  req.Message,
	}
	if err := h.tables.Execute(r.Context(), tag, cmd); err != nil {
		writeTableError(w, err)
		return
	}

	t, err := h.tables.Get(r.Context(), tag)
	if err != nil {
		writeTableError(w, err)
		return
	}
	if user != nil {
		log.Debug().Str("tag", tag).Str("command", string(typ)).Str("userId", user.ID).Msg("Command applied")
	}
	writeJSON(w, http.StatusOK, dice.Serialize(t))
}

// ListTables handles GET /api/v1/tables
func (h *TableHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.tables.Tables(r.Context())
	if err != nil {
		writeTableError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dice.Infos(tables))
}

// GetTable handles GET /api/v1/tables/{tag}
func (h *TableHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	t, err := h.tables.Get(r.Context(), r.PathValue("tag"))
	if err != nil {
		writeTableError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dice.Serialize(t))
}

// Chat handles GET /api/v1/tables/{tag}/chat
func (h *TableHandler) Chat(w http.ResponseWriter, r *http.Request) {
	lines, err := h.tables.ChatHistory(r.Context(), r.PathValue("tag"))
	if err != nil {
		writeTableError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}
