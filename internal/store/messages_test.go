package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gapchat/internal/models"
	"gapchat/internal/realtime"
	"gapchat/pkg/apperr"
)

func startConversation(t *testing.T, userA, userB string) string {
	t.Helper()

	conv, _, err := testStore.StartConversation(context.Background(), userA, userB)
	require.NoError(t, err)
	return conv.ID
}

func sendText(t *testing.T, conversationID, senderID, content string) models.Message {
	t.Helper()

	m, err := testStore.CreateMessage(context.Background(), NewMessage{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		MessageType:    models.MessageTypeText,
	})
	require.NoError(t, err)
	return m
}

func TestCreateMessageValidation(t *testing.T) {
	clearTestData()
	ctx := context.Background()

	alice := createTestUser(t, "msg_alice")
	bob := createTestUser(t, "msg_bob")
	mallory := createTestUser(t, "msg_mallory")
	conversationID := startConversation(t, alice, bob)

	tests := []struct {
		name     string
		message  NewMessage
		wantCode apperr.Code
	}{
		{
			name:     "unknown type",
			message:  NewMessage{ConversationID: conversationID, SenderID: alice, MessageType: "video", Content: "x"},
			wantCode: apperr.CodeInvalidArgument,
		},
		{
			name:     "text without content",
			message:  NewMessage{ConversationID: conversationID, SenderID: alice, MessageType: models.MessageTypeText},
			wantCode: apperr.CodeInvalidArgument,
		},
		{
			name:     "image without file",
			message:  NewMessage{ConversationID: conversationID, SenderID: alice, MessageType: models.MessageTypeImage},
			wantCode: apperr.CodeInvalidArgument,
		},
		{
			name:     "non-participant",
			message:  NewMessage{ConversationID: conversationID, SenderID: mallory, MessageType: models.MessageTypeText, Content: "hi"},
			wantCode: apperr.CodePermissionDenied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testStore.CreateMessage(ctx, tt.message)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperr.CodeOf(err))
		})
	}
}

func TestCreateMessagePublishesInsertEvent(t *testing.T) {
	clearTestData()

	alice := createTestUser(t, "ev_alice")
	bob := createTestUser(t, "ev_bob")
	conversationID := startConversation(t, alice, bob)

	sub := testFeed.Subscribe(TableMessages, conversationID)
	defer sub.Close()

	sent := sendText(t, conversationID, alice, "hello")

	select {
	case ev := <-sub.Events():
		assert.Equal(t, realtime.EventInsert, ev.Type)
		row, ok := ev.Row.(models.Message)
		require.True(t, ok)
		assert.Equal(t, sent.ID, row.ID)
	case <-time.After(time.Second):
		t.Fatal("No INSERT event published")
	}
}

func TestListMessagesOrderedByCreation(t *testing.T) {
	clearTestData()
	ctx := context.Background()

	alice := createTestUser(t, "order_alice")
	bob := createTestUser(t, "order_bob")
	conversationID := startConversation(t, alice, bob)

	first := sendText(t, conversationID, alice, "first")
	time.Sleep(5 * time.Millisecond)
	second := sendText(t, conversationID, bob, "second")
	time.Sleep(5 * time.Millisecond)
	third := sendText(t, conversationID, alice, "third")

	messages, err := testStore.ListMessages(ctx, conversationID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, first.ID, messages[0].ID)
	assert.Equal(t, second.ID, messages[1].ID)
	assert.Equal(t, third.ID, messages[2].ID)
}

func TestMarkConversationRead(t *testing.T) {
	clearTestData()
	ctx := context.Background()

	alice := createTestUser(t, "read_alice")
	bob := createTestUser(t, "read_bob")
	conversationID := startConversation(t, alice, bob)

	fromBob := sendText(t, conversationID, bob, "one")
	sendText(t, conversationID, bob, "two")
	fromAlice := sendText(t, conversationID, alice, "mine")

	updated, err := testStore.MarkConversationRead(ctx, conversationID, alice)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	// Only bob's messages flip; alice's own stays untouched.
	got, err := testStore.GetMessage(ctx, fromBob.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
	require.NotNil(t, got.ReadAt)

	own, err := testStore.GetMessage(ctx, fromAlice.ID)
	require.NoError(t, err)
	assert.False(t, own.IsRead)
	assert.Nil(t, own.ReadAt)

	unread, err := testStore.UnreadCount(ctx, conversationID, alice)
	require.NoError(t, err)
	assert.Equal(t, 0, unread)

	// Re-running is a no-op.
	updated, err = testStore.MarkConversationRead(ctx, conversationID, alice)
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
}

func TestEditMessage(t *testing.T) {
	clearTestData()
	ctx := context.Background()

	alice := createTestUser(t, "edit_alice")
	bob := createTestUser(t, "edit_bob")
	conversationID := startConversation(t, alice, bob)
	sent := sendText(t, conversationID, alice, "orignal")

	edited, err := testStore.EditMessage(ctx, sent.ID, alice, "original")
	require.NoError(t, err)
	require.NotNil(t, edited.Content)
	assert.Equal(t, "original", *edited.Content)
	assert.True(t, edited.UpdatedAt.After(edited.CreatedAt))

	t.Run("only the sender may edit", func(t *testing.T) {
		_, err := testStore.EditMessage(ctx, sent.ID, bob, "hijack")
		assert.Equal(t, apperr.CodePermissionDenied, apperr.CodeOf(err))
	})

	t.Run("empty content rejected", func(t *testing.T) {
		_, err := testStore.EditMessage(ctx, sent.ID, alice, "")
		assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
	})

	t.Run("unknown message", func(t *testing.T) {
		_, err := testStore.EditMessage(ctx, "no-such-id", alice, "x")
		assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	})

	t.Run("only text messages", func(t *testing.T) {
		img, err := testStore.CreateMessage(ctx, NewMessage{
			ConversationID: conversationID,
			SenderID:       alice,
			MessageType:    models.MessageTypeImage,
			FileURL:        "/api/files/pic.jpg",
		})
		require.NoError(t, err)

		_, err = testStore.EditMessage(ctx, img.ID, alice, "caption")
		assert.Equal(t, apperr.CodePermissionDenied, apperr.CodeOf(err))
	})
}

func TestEditMessageWindowExpired(t *testing.T) {
	clearTestData()
	ctx := context.Background()

	alice := createTestUser(t, "window_alice")
	bob := createTestUser(t, "window_bob")
	conversationID := startConversation(t, alice, bob)
	sent := sendText(t, conversationID, alice, "too late")

	// Age the message past the edit window.
	_, err := testDB.GetConn().Exec(
		"UPDATE messages SET created_at = ? WHERE id = ?",
		time.Now().UTC().Add(-11*time.Minute), sent.ID,
	)
	require.NoError(t, err)

	_, err = testStore.EditMessage(ctx, sent.ID, alice, "changed")
	assert.Equal(t, apperr.CodePermissionDenied, apperr.CodeOf(err))

	got, err := testStore.GetMessage(ctx, sent.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Content)
	assert.Equal(t, "too late", *got.Content)
}

func TestLastMessage(t *testing.T) {
	clearTestData()
	ctx := context.Background()

	alice := createTestUser(t, "last_alice")
	bob := createTestUser(t, "last_bob")
	conversationID := startConversation(t, alice, bob)

	last, err := testStore.LastMessage(ctx, conversationID)
	require.NoError(t, err)
	assert.Nil(t, last)

	sendText(t, conversationID, alice, "first")
	time.Sleep(5 * time.Millisecond)
	newest := sendText(t, conversationID, bob, "newest")

	last, err = testStore.LastMessage(ctx, conversationID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, newest.ID, last.ID)
}
