package handlers

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"gapchat/internal/models"
	"gapchat/internal/push"
	"gapchat/internal/queue"
	"gapchat/internal/store"
	"gapchat/internal/sync"
)

type MessageHandler struct {
	store         *store.Store
	messages      *sync.Messages
	conversations *sync.Conversations
	typing        *sync.Typing
	presence      *sync.Presence
	dispatcher    *queue.Dispatcher
	notifier      *push.Notifier

	fileStoragePath string
	maxUploadSize   int64
}

func NewMessageHandler(
	st *store.Store,
	messages *sync.Messages,
	conversations *sync.Conversations,
	typing *sync.Typing,
	presence *sync.Presence,
	dispatcher *queue.Dispatcher,
	notifier *push.Notifier,
	fileStoragePath string,
	maxUploadSize int64,
) *MessageHandler {
	return &MessageHandler{
		store:           st,
		messages:        messages,
		conversations:   conversations,
		typing:          typing,
		presence:        presence,
		dispatcher:      dispatcher,
		notifier:        notifier,
		fileStoragePath: fileStoragePath,
		maxUploadSize:   maxUploadSize,
	}
}

// messageView decorates a message with the derived flags the client would
// otherwise compute ad hoc at render time.
type messageView struct {
	models.Message
	IsEdited   bool `json:"is_edited"`
	IsEditable bool `json:"is_editable"`
}

func (h *MessageHandler) messageViews(messages []models.Message, userID string) []messageView {
	now := time.Now().UTC()
	views := make([]messageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, messageView{
			Message:    m,
			IsEdited:   sync.IsEdited(m),
			IsEditable: sync.IsEditable(m, userID, now),
		})
	}
	return views
}

// GetMessages retrieves the message history of a conversation, ordered by
// creation time ascending. Reads go through the conversation's live feed:
// the first fetch is the bulk load, later fetches serve the sequence the
// feed keeps merging from change events.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": __("unauthorized")})
		return
	}

	conversationID := c.Param("id")
	ctx := c.Request.Context()

	isMember, err := h.store.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		respondError(c, err, "failed to fetch messages")
		return
	}
	if !isMember {
		c.JSON(http.StatusForbidden, gin.H{"error": __("not a participant")})
		return
	}

	messages, err := h.messages.History(ctx, conversationID)
	if err != nil {
		respondError(c, err, "failed to fetch messages")
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": h.messageViews(messages, userID)})
}

type sendMessageRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
	Content        string `json:"content"`
	MessageType    string `json:"message_type"`
	FileURL        string `json:"file_url"`
	FileName       string `json:"file_name"`
	FileSize       int64  `json:"file_size"`
}

// SendMessage creates a message. The response carries the stored row, but
// clients are expected to merge it from the echoed realtime INSERT rather
// than from this response; see sync.MessageFeed.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": __("unauthorized")})
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("invalid request")})
		return
	}

	messageType := models.MessageType(req.MessageType)
	if req.MessageType == "" {
		messageType = models.MessageTypeText
	}

	ctx := c.Request.Context()
	message, err := h.store.CreateMessage(ctx, store.NewMessage{
		ConversationID: req.ConversationID,
		SenderID:       userID,
		Content:        req.Content,
		MessageType:    messageType,
		FileURL:        req.FileURL,
		FileName:       req.FileName,
		FileSize:       req.FileSize,
	})
	if err != nil {
		respondError(c, err, "failed to send message")
		return
	}

	// Sending a typed message implies typing has stopped.
	if err := h.typing.Stop(ctx, req.ConversationID, userID); err != nil {
		log.Printf("failed to clear typing for user %s: %v", userID, err)
	}

	h.notifyRecipient(c, message)

	c.JSON(http.StatusCreated, message)
}

// notifyRecipient pushes a notification to the other participant when they
// have no live session.
func (h *MessageHandler) notifyRecipient(c *gin.Context, message models.Message) {
	ctx := c.Request.Context()

	participants, err := h.store.Participants(ctx, message.ConversationID)
	if err != nil {
		return
	}

	senderName, _ := c.Get("username")
	sender, _ := senderName.(string)

	for _, uid := range participants {
		if uid == message.SenderID {
			continue
		}
		online, err := h.presence.IsOnline(ctx, uid)
		if err != nil || online {
			continue
		}
		if h.dispatcher != nil {
			if err := h.dispatcher.EnqueueNewMessagePush(ctx, uid, sender); err != nil {
				log.Printf("failed to enqueue push for user %s: %v", uid, err)
			}
		} else if h.notifier != nil {
			h.notifier.SendNewMessageNotification(ctx, uid, sender)
		}
	}
}

type editMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// EditMessage updates a text message's content within the edit window.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": __("unauthorized")})
		return
	}

	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("invalid request")})
		return
	}

	message, err := h.store.EditMessage(c.Request.Context(), c.Param("id"), userID, req.Content)
	if err != nil {
		respondError(c, err, "failed to update message")
		return
	}

	c.JSON(http.StatusOK, message)
}

// MarkConversationRead bulk-flags every unread message addressed to the
// current user in the conversation.
func (h *MessageHandler) MarkConversationRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": __("unauthorized")})
		return
	}

	conversationID := c.Param("id")
	ctx := c.Request.Context()

	isMember, err := h.store.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		respondError(c, err, "failed to mark messages as read")
		return
	}
	if !isMember {
		c.JSON(http.StatusForbidden, gin.H{"error": __("not a participant")})
		return
	}

	updated, err := h.store.MarkConversationRead(ctx, conversationID, userID)
	if err != nil {
		respondError(c, err, "failed to mark messages as read")
		return
	}

	// Unread counts depend on this, drop the cached lists right away.
	h.conversations.Invalidate(ctx, userID)

	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// UploadFile stores a blob and returns its public URL. No message row is
// created here; a failed upload therefore aborts the send flow without
// partial state.
func (h *MessageHandler) UploadFile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": __("unauthorized")})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("file is required")})
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("file too large")})
		return
	}

	filename := userID + "_" + strconv.FormatInt(time.Now().UnixNano(), 10) + "_" + sanitizeFilename(header.Filename)
	filepath := h.fileStoragePath + "/" + filename

	if err := c.SaveUploadedFile(header, filepath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": __("failed to save file")})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"file_url":  "/api/files/" + filename,
		"file_name": header.Filename,
		"file_size": header.Size,
	})
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	return strings.TrimSpace(name)
}
