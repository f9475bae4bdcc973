package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gapchat/internal/sync"
)

// GetConversations returns every conversation of the current user with the
// other participant's profile, last message and unread count, sorted by
// last-message recency.
func (h *MessageHandler) GetConversations(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": __("unauthorized")})
		return
	}

	conversations, err := h.conversations.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "failed to fetch conversations")
		return
	}

	// The cached aggregation may carry a stale online flag.
	now := time.Now().UTC()
	for i := range conversations {
		p := &conversations[i].Participant
		p.IsOnline = p.IsOnline && now.Sub(p.LastSeen) < sync.PresenceStaleAfter
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

type startConversationRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
}

// StartConversation returns the existing conversation with the participant
// when one exists, otherwise creates it. Calling it twice for the same pair
// yields the same conversation id.
func (h *MessageHandler) StartConversation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": __("unauthorized")})
		return
	}

	var req startConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("invalid request")})
		return
	}

	ctx := c.Request.Context()
	conversation, created, err := h.store.StartConversation(ctx, userID, req.ParticipantID)
	if err != nil {
		respondError(c, err, "failed to create conversation")
		return
	}

	if created {
		h.conversations.Invalidate(ctx, userID, req.ParticipantID)
		c.JSON(http.StatusCreated, conversation)
		return
	}

	c.JSON(http.StatusOK, conversation)
}
