package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gapchat/internal/sync"
)

// Heartbeat marks the current user online and refreshes last_seen. Clients
// call it on entering the app and every 30 seconds thereafter.
func (h *MessageHandler) Heartbeat(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": __("unauthorized")})
		return
	}

	if err := h.presence.SetVisible(c.Request.Context(), userID, true); err != nil {
		respondError(c, err, "failed to update presence")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type visibilityRequest struct {
	Visible *bool `json:"visible" binding:"required"`
}

// UpdateVisibility mirrors a tab hidden/shown transition into presence.
func (h *MessageHandler) UpdateVisibility(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": __("unauthorized")})
		return
	}

	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("invalid request")})
		return
	}

	if err := h.presence.SetVisible(c.Request.Context(), userID, *req.Visible); err != nil {
		respondError(c, err, "failed to update presence")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Beacon is the page-teardown endpoint (navigator.sendBeacon): the offline
// write happens in the background and the response never blocks on it.
func (h *MessageHandler) Beacon(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": __("unauthorized")})
		return
	}

	h.presence.Beacon(userID)
	c.Status(http.StatusNoContent)
}

// GetPresence returns the presence snapshot with the liveness rule already
// applied, so a crashed session never reads as online.
func (h *MessageHandler) GetPresence(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": __("unauthorized")})
		return
	}

	presences, err := h.presence.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to fetch presence")
		return
	}

	now := time.Now().UTC()
	for i := range presences {
		presences[i].IsOnline = sync.IsUserOnline(presences[i], now)
	}

	c.JSON(http.StatusOK, gin.H{"presence": presences})
}
