package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertTypingLastWriteWins(t *testing.T) {
	clearTestData()
	ctx := context.Background()

	alice := createTestUser(t, "up_alice")
	bob := createTestUser(t, "up_bob")
	conversationID := startConversation(t, alice, bob)

	require.NoError(t, testStore.UpsertTyping(ctx, conversationID, alice, true))
	require.NoError(t, testStore.UpsertTyping(ctx, conversationID, alice, true))
	require.NoError(t, testStore.UpsertTyping(ctx, conversationID, alice, false))

	// One row per (conversation, user), carrying the last written flag.
	var count int
	err := testDB.GetConn().QueryRow(
		"SELECT COUNT(*) FROM typing_status WHERE conversation_id = ?", conversationID,
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	statuses, err := testStore.ListTyping(ctx, conversationID, bob)
	require.NoError(t, err)
	assert.Empty(t, statuses)

	require.NoError(t, testStore.UpsertTyping(ctx, conversationID, alice, true))
	statuses, err = testStore.ListTyping(ctx, conversationID, bob)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, alice, statuses[0].UserID)
	assert.True(t, statuses[0].IsTyping)
}

func TestUpsertPresenceLastWriteWins(t *testing.T) {
	clearTestData()
	ctx := context.Background()

	alice := createTestUser(t, "pres_alice")

	require.NoError(t, testStore.UpsertPresence(ctx, alice, true))
	first, err := testStore.ListPresence(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.True(t, first[0].IsOnline)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, testStore.UpsertPresence(ctx, alice, false))

	second, err := testStore.ListPresence(ctx)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.False(t, second[0].IsOnline)
	assert.True(t, second[0].LastSeen.After(first[0].LastSeen))
}

func TestListProfilesSearch(t *testing.T) {
	clearTestData()
	ctx := context.Background()

	alice := createTestUser(t, "search_alice")
	createTestUser(t, "search_bob")
	createTestUser(t, "search_bobby")
	createTestUser(t, "other_carol")

	all, err := testStore.ListProfiles(ctx, alice, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	matches, err := testStore.ListProfiles(ctx, alice, "bob")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "search_bob", matches[0].Username)
	assert.Equal(t, "search_bobby", matches[1].Username)

	// The requester never shows up in their own list.
	self, err := testStore.ListProfiles(ctx, alice, "alice")
	require.NoError(t, err)
	assert.Empty(t, self)
}

func TestPushSubscriptionLifecycle(t *testing.T) {
	clearTestData()
	ctx := context.Background()

	alice := createTestUser(t, "push_alice")
	bob := createTestUser(t, "push_bob")

	sub := PushSubscription{
		UserID:    alice,
		Endpoint:  "https://push.example.com/ep-1",
		KeyP256dh: "p256dh-key",
		KeyAuth:   "auth-key",
	}
	require.NoError(t, testStore.SavePushSubscription(ctx, sub))

	// The endpoint is the natural key: re-registering from another account
	// moves it instead of duplicating it.
	sub.UserID = bob
	require.NoError(t, testStore.SavePushSubscription(ctx, sub))

	aliceSubs, err := testStore.ActivePushSubscriptions(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, aliceSubs)

	bobSubs, err := testStore.ActivePushSubscriptions(ctx, bob)
	require.NoError(t, err)
	require.Len(t, bobSubs, 1)
	assert.Equal(t, "https://push.example.com/ep-1", bobSubs[0].Endpoint)

	require.NoError(t, testStore.DeletePushSubscription(ctx, sub.Endpoint))
	bobSubs, err = testStore.ActivePushSubscriptions(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, bobSubs)
}
