package ws

import (
	"log"
	nethttp "net/http"

	"github.com/gorilla/websocket"

	"agent-arena/server/internal/game"
	"agent-arena/server/internal/storage"
)

// Handler upgrades agent and spectator HTTP requests into websocket
// sessions. Agent connections authenticate with an API key before the
// upgrade so rejects stay plain HTTP errors.
type Handler struct {
	hub      *Hub
	engine   *game.Engine
	store    storage.Store
	logger   *log.Logger
	upgrader websocket.Upgrader
}

// NewHandler constructs the websocket handler.
func NewHandler(hub *Hub, engine *game.Engine, store storage.Store, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		hub:    hub,
		engine: engine,
		store:  store,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
	}
}

// HandleAgent serves GET /ws?token=<api key>.
func (h *Handler) HandleAgent(w nethttp.ResponseWriter, r *nethttp.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		nethttp.Error(w, "missing token", nethttp.StatusUnauthorized)
		return
	}

	agent, err := h.store.GetAgentByAPIKey(r.Context(), token)
	if err != nil {
		if err == storage.ErrNotFound {
			nethttp.Error(w, "invalid token", nethttp.StatusUnauthorized)
			return
		}
		h.logger.Printf("[ws] agent lookup failed: %v", err)
		nethttp.Error(w, "internal error", nethttp.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("[ws] upgrade failed for agent %s: %v", agent.Nickname, err)
		return
	}

	h.serveAgent(agent, conn)
}

// HandleSpectator serves GET /spectator.
func (h *Handler) HandleSpectator(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("[ws] spectator upgrade failed: %v", err)
		return
	}

	h.serveSpectator(conn)
}
