package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gapchat/internal/store"
)

type pushSubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256dh   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}

// SubscribePush stores a browser push subscription for the current user.
func (h *MessageHandler) SubscribePush(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": __("unauthorized")})
		return
	}

	var req pushSubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("invalid request")})
		return
	}

	err := h.store.SavePushSubscription(c.Request.Context(), store.PushSubscription{
		UserID:    userID,
		Endpoint:  req.Endpoint,
		KeyP256dh: req.P256dh,
		KeyAuth:   req.Auth,
	})
	if err != nil {
		respondError(c, err, "invalid request")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "subscribed"})
}

// GetVAPIDKey returns the public VAPID key, or 404 when push is disabled.
func (h *MessageHandler) GetVAPIDKey(c *gin.Context) {
	if h.notifier == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": __("not found")})
		return
	}
	c.JSON(http.StatusOK, gin.H{"vapid_public_key": h.notifier.VAPIDPublicKey()})
}
