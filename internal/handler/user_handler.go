package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/qdice/internal/auth"
	"github.com/freeeve/qdice/internal/model"
	"github.com/freeeve/qdice/internal/repository"
)

// UserHandler handles dev login and profile endpoints.
type UserHandler struct {
	jwtMgr   *auth.JWTManager
	userRepo repository.UserRepository
	devLogin bool
}

// NewUserHandler creates a UserHandler. Dev login answers 404 unless enabled.
func NewUserHandler(jwtMgr *auth.JWTManager, userRepo repository.UserRepository, devLogin bool) *UserHandler {
	return &UserHandler{jwtMgr: jwtMgr, userRepo: userRepo, devLogin: devLogin}
}

type profile struct {
	*model.User
	Level int `json:"level"`
}

type loginResponse struct {
	Token     string  `json:"token"`
	ExpiresIn int     `json:"expires_in"` // seconds
	User      profile `json:"user"`
}

// DevLogin handles GET /auth/dev?name=
func (h *UserHandler) DevLogin(w http.ResponseWriter, r *http.Request) {
	if !h.devLogin {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing name parameter")
		return
	}

	user, err := h.userRepo.Upsert(r.Context(), "dev", fmt.Sprintf("dev-%s", name), name, "")
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("Failed to upsert dev user")
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	token, err := h.jwtMgr.GenerateToken(user.ID, user.DisplayName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresIn: int(h.jwtMgr.Expiry().Seconds()),
		User:      profile{User: user, Level: user.Level()},
	})
}

// GetMe handles GET /api/v1/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "login required")
		return
	}
	user, err := h.userRepo.FindByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, profile{User: user, Level: user.Level()})
}
