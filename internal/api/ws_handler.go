package api

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/loommail/backend/internal/auth"
	"github.com/loommail/backend/internal/realtime"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The socket is authenticated by token, not origin; the API is served
	// to browser clients on other hosts.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades authenticated connections and binds them to the
// caller's room so mailbox events reach every open tab.
type WSHandler struct {
	middleware *auth.Middleware
	hub        *realtime.Hub
}

// NewWSHandler creates a new WSHandler instance.
func NewWSHandler(middleware *auth.Middleware, hub *realtime.Hub) *WSHandler {
	return &WSHandler{middleware: middleware, hub: hub}
}

// Serve handles GET /api/v1/ws. Browsers cannot set headers on WebSocket
// requests, so the credentials arrive as query parameters.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = auth.BearerToken(r)
	}
	if token == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	identity, _, err := h.middleware.Authenticate(r.Context(), token, r.URL.Query().Get("refresh_token"))
	if err != nil {
		log.Printf("WSHandler: Credential validation failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WSHandler: Failed to upgrade connection: %v", err)
		return
	}

	client := h.hub.Bind(*identity, conn)
	if client == nil {
		conn.Close()
		return
	}
	defer h.hub.Unbind(client)

	// The server never consumes client frames; the read loop exists to
	// detect close and to answer pings.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
