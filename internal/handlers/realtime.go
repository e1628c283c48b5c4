package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/evanmori/neighborlink/internal/realtime"
)

// RealtimeHandler upgrades authenticated clients onto the WebSocket hub.
type RealtimeHandler struct {
	hub *realtime.Hub
}

// NewRealtimeHandler constructs a realtime handler.
func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// Serve hands the connection to the hub. Authentication has already happened
// in middleware; the hub only needs the verified identity.
func (h *RealtimeHandler) Serve(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	h.hub.Serve(userID, c.Writer, c.Request)
}
