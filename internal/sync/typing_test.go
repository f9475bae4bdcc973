package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedTypingFlag(t *testing.T, conversationID, userID string) bool {
	t.Helper()

	var isTyping bool
	err := testDB.GetConn().QueryRow(
		"SELECT is_typing FROM typing_status WHERE conversation_id = ? AND user_id = ?",
		conversationID, userID,
	).Scan(&isTyping)
	require.NoError(t, err)
	return isTyping
}

func TestTypingStartAndStop(t *testing.T) {
	clearTestData()
	ctx := context.Background()

	alice := createTestUser(t, "typing_alice")
	bob := createTestUser(t, "typing_bob")
	conversationID := createTestConversation(t, alice, bob)

	typing := NewTyping(testStore)

	require.NoError(t, typing.Start(ctx, conversationID, alice))
	assert.True(t, storedTypingFlag(t, conversationID, alice))

	anyone, err := typing.AnyoneTyping(ctx, conversationID, bob)
	require.NoError(t, err)
	assert.True(t, anyone)

	// The own flag never shows up as a remote typer.
	anyone, err = typing.AnyoneTyping(ctx, conversationID, alice)
	require.NoError(t, err)
	assert.False(t, anyone)

	require.NoError(t, typing.Stop(ctx, conversationID, alice))
	assert.False(t, storedTypingFlag(t, conversationID, alice))
}

func TestTypingIdleTimeout(t *testing.T) {
	clearTestData()
	ctx := context.Background()

	alice := createTestUser(t, "idle_alice")
	bob := createTestUser(t, "idle_bob")
	conversationID := createTestConversation(t, alice, bob)

	typing := NewTyping(testStore)
	typing.idleTimeout = 50 * time.Millisecond

	require.NoError(t, typing.Start(ctx, conversationID, alice))
	assert.True(t, storedTypingFlag(t, conversationID, alice))

	ok := waitFor(t, 2*time.Second, func() bool {
		return !storedTypingFlag(t, conversationID, alice)
	})
	assert.True(t, ok, "idle timer did not clear the typing flag")
}

func TestTypingKeystrokesExtendIdleTimer(t *testing.T) {
	clearTestData()
	ctx := context.Background()

	alice := createTestUser(t, "extend_alice")
	bob := createTestUser(t, "extend_bob")
	conversationID := createTestConversation(t, alice, bob)

	typing := NewTyping(testStore)
	typing.idleTimeout = 80 * time.Millisecond

	// Repeated keystrokes keep rearming the timer.
	for i := 0; i < 4; i++ {
		require.NoError(t, typing.Start(ctx, conversationID, alice))
		time.Sleep(40 * time.Millisecond)
		assert.True(t, storedTypingFlag(t, conversationID, alice))
	}

	ok := waitFor(t, 2*time.Second, func() bool {
		return !storedTypingFlag(t, conversationID, alice)
	})
	assert.True(t, ok)
}

func TestTypingRestartOnExpiryBoundary(t *testing.T) {
	clearTestData()
	ctx := context.Background()

	alice := createTestUser(t, "race_alice")
	bob := createTestUser(t, "race_bob")
	conversationID := createTestConversation(t, alice, bob)

	typing := NewTyping(testStore)
	typing.idleTimeout = 10 * time.Millisecond

	// Keystrokes landing right on the expiry boundary race the firing
	// timer's callback. A replaced timer that fires anyway must not clear
	// the flag the newer keystroke just set.
	for i := 0; i < 20; i++ {
		require.NoError(t, typing.Start(ctx, conversationID, alice))
		time.Sleep(10 * time.Millisecond)
	}

	require.NoError(t, typing.Start(ctx, conversationID, alice))
	time.Sleep(5 * time.Millisecond)
	assert.True(t, storedTypingFlag(t, conversationID, alice))

	ok := waitFor(t, 2*time.Second, func() bool {
		return !storedTypingFlag(t, conversationID, alice)
	})
	assert.True(t, ok)
}

func TestActiveTypersExcludesStaleRows(t *testing.T) {
	clearTestData()
	ctx := context.Background()

	alice := createTestUser(t, "stale_alice")
	bob := createTestUser(t, "stale_bob")
	conversationID := createTestConversation(t, alice, bob)

	typing := NewTyping(testStore)
	require.NoError(t, typing.Start(ctx, conversationID, bob))

	// Simulate a stuck flag: bob's tab died six seconds ago.
	_, err := testDB.GetConn().Exec(
		"UPDATE typing_status SET updated_at = ? WHERE conversation_id = ? AND user_id = ?",
		time.Now().UTC().Add(-6*time.Second), conversationID, bob,
	)
	require.NoError(t, err)

	typers, err := typing.ActiveTypers(ctx, conversationID, alice)
	require.NoError(t, err)
	assert.Empty(t, typers)
}
