package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gapchat/internal/cache/adapter"
	"gapchat/internal/models"
	"gapchat/internal/store"
)

func TestConversationsListCacheAside(t *testing.T) {
	clearTestData()
	ctx := context.Background()

	alice := createTestUser(t, "conv_alice")
	bob := createTestUser(t, "conv_bob")
	conversationID := createTestConversation(t, alice, bob)

	_, err := testStore.CreateMessage(ctx, store.NewMessage{
		ConversationID: conversationID,
		SenderID:       bob,
		Content:        "hey",
		MessageType:    models.MessageTypeText,
	})
	require.NoError(t, err)

	conversations := NewConversations(testStore, adapter.NewMemoryCache())

	list, err := conversations.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, conversationID, list[0].ID)
	assert.Equal(t, "conv_bob", list[0].Participant.Username)
	assert.Equal(t, 1, list[0].UnreadCount)
	require.NotNil(t, list[0].LastMessage)

	// Drop the rows underneath: a hit must still serve the cached copy.
	_, err = testDB.GetConn().Exec("DELETE FROM messages")
	require.NoError(t, err)

	cached, err := conversations.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.NotNil(t, cached[0].LastMessage)

	conversations.Invalidate(ctx, alice)

	fresh, err := conversations.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Nil(t, fresh[0].LastMessage)
	assert.Equal(t, 0, fresh[0].UnreadCount)
}

func TestConversationsRunInvalidatesOnNewMessage(t *testing.T) {
	clearTestData()

	alice := createTestUser(t, "run_alice")
	bob := createTestUser(t, "run_bob")
	conversationID := createTestConversation(t, alice, bob)

	conversations := NewConversations(testStore, adapter.NewMemoryCache())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go conversations.Run(ctx)

	// Let Run subscribe before the first write.
	time.Sleep(20 * time.Millisecond)

	list, err := conversations.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].LastMessage)

	_, err = testStore.CreateMessage(ctx, store.NewMessage{
		ConversationID: conversationID,
		SenderID:       bob,
		Content:        "ping",
		MessageType:    models.MessageTypeText,
	})
	require.NoError(t, err)

	ok := waitFor(t, 2*time.Second, func() bool {
		list, err := conversations.List(ctx, alice)
		return err == nil && len(list) == 1 && list[0].LastMessage != nil
	})
	assert.True(t, ok, "cached list was not invalidated by the message event")
}
