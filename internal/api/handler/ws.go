package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"pulse/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// ServeWebSocket authenticates the handshake and upgrades it. Rejected
// attempts get a 401 and never reach the hub.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	if h.gate == nil || h.sessions == nil {
		fail(c, http.StatusServiceUnavailable, "Realtime channel unavailable")
		return
	}

	identity, err := h.gate.Authenticate(c.Request)
	if err != nil {
		msg := "Invalid token"
		if errors.Is(err, chathub.ErrMissingToken) {
			msg = "Authentication required"
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": msg})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already answered the client.
		log.Printf("WebSocket upgrade failed for user %s: %v", identity.UserID, err)
		return
	}

	// The session outlives this handler.
	ctx := context.WithoutCancel(c.Request.Context())

	client := chathub.NewWebSocketClient(conn, identity.UserID)
	session, err := h.sessions.Open(ctx, identity, client)
	if err != nil {
		log.Printf("Refusing websocket for user %s: %v", identity.UserID, err)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}
	client.Run(ctx, session)
}
