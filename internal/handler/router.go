package handler

import (
	"net/http"

	"github.com/freeeve/qdice/internal/auth"
	"github.com/freeeve/qdice/internal/middleware"
	"github.com/freeeve/qdice/internal/repository"
	"github.com/freeeve/qdice/internal/service"
)

// RouterConfig wires the HTTP surface.
type RouterConfig struct {
	Tables     *service.TableService
	Users      repository.UserRepository
	Hub        *Hub
	JWT        *auth.JWTManager
	DevLogin   bool
	CORSOrigin string
}

// NewRouter builds the HTTP handler with global middleware applied.
func NewRouter(cfg RouterConfig) http.Handler {
	tableHandler := NewTableHandler(cfg.Tables, cfg.Users)
	userHandler := NewUserHandler(cfg.JWT, cfg.Users, cfg.DevLogin)
	wsHandler := NewWSHandler(cfg.Hub, cfg.Tables, cfg.Users)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /auth/dev", userHandler.DevLogin)

	// Identity is optional here; handlers decide which calls need a user.
	api := http.NewServeMux()
	api.HandleFunc("GET /me", userHandler.GetMe)
	api.HandleFunc("GET /tables", tableHandler.ListTables)
	api.HandleFunc("GET /tables/{tag}", tableHandler.GetTable)
	api.HandleFunc("GET /tables/{tag}/chat", tableHandler.Chat)
	api.HandleFunc("POST /tables/{tag}/{command}", tableHandler.Command)
	api.HandleFunc("GET /ws", wsHandler.ServeWS)

	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", auth.Optional(cfg.JWT)(api)))

	origin := cfg.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	return middleware.Chain(mux, middleware.Logger, middleware.Recover, middleware.CORS(origin))
}
