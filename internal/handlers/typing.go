package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type typingRequest struct {
	IsTyping *bool `json:"is_typing" binding:"required"`
}

// UpdateTyping records a typing transition for the current user. Starting
// arms the idle timer that clears the flag automatically; stopping clears
// it immediately.
func (h *MessageHandler) UpdateTyping(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": __("unauthorized")})
		return
	}

	var req typingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("invalid request")})
		return
	}

	conversationID := c.Param("id")
	ctx := c.Request.Context()

	isMember, err := h.store.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		respondError(c, err, "failed to update typing status")
		return
	}
	if !isMember {
		c.JSON(http.StatusForbidden, gin.H{"error": __("not a participant")})
		return
	}

	if *req.IsTyping {
		err = h.typing.Start(ctx, conversationID, userID)
	} else {
		err = h.typing.Stop(ctx, conversationID, userID)
	}
	if err != nil {
		respondError(c, err, "failed to update typing status")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetTyping reports whether any other participant is actively typing,
// stale rows excluded.
func (h *MessageHandler) GetTyping(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": __("unauthorized")})
		return
	}

	conversationID := c.Param("id")
	ctx := c.Request.Context()

	isMember, err := h.store.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		respondError(c, err, "failed to fetch typing status")
		return
	}
	if !isMember {
		c.JSON(http.StatusForbidden, gin.H{"error": __("not a participant")})
		return
	}

	typers, err := h.typing.ActiveTypers(ctx, conversationID, userID)
	if err != nil {
		respondError(c, err, "failed to fetch typing status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"typing_users":  typers,
		"anyone_typing": len(typers) > 0,
	})
}
