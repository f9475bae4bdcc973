package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedPresence(t *testing.T, userID string) (bool, time.Time) {
	t.Helper()

	var isOnline bool
	var lastSeen time.Time
	err := testDB.GetConn().QueryRow(
		"SELECT is_online, last_seen FROM user_presence WHERE user_id = ?", userID,
	).Scan(&isOnline, &lastSeen)
	require.NoError(t, err)
	return isOnline, lastSeen
}

func TestPresenceEnterAndLeave(t *testing.T) {
	clearTestData()
	ctx := context.Background()

	alice := createTestUser(t, "presence_alice")
	presence := NewPresence(testStore)

	require.NoError(t, presence.Enter(ctx, alice))
	online, _ := storedPresence(t, alice)
	assert.True(t, online)

	isOnline, err := presence.IsOnline(ctx, alice)
	require.NoError(t, err)
	assert.True(t, isOnline)

	presence.Leave(alice)
	online, _ = storedPresence(t, alice)
	assert.False(t, online)
}

func TestPresenceHeartbeatRefreshesLastSeen(t *testing.T) {
	clearTestData()
	ctx := context.Background()

	alice := createTestUser(t, "beat_alice")
	presence := NewPresence(testStore)
	presence.heartbeatInterval = 30 * time.Millisecond

	require.NoError(t, presence.Enter(ctx, alice))
	defer presence.Leave(alice)

	_, before := storedPresence(t, alice)

	ok := waitFor(t, 2*time.Second, func() bool {
		_, after := storedPresence(t, alice)
		return after.After(before)
	})
	assert.True(t, ok, "heartbeat never refreshed last_seen")
}

func TestPresenceStaleHeartbeatReadsOffline(t *testing.T) {
	clearTestData()
	ctx := context.Background()

	alice := createTestUser(t, "crash_alice")
	presence := NewPresence(testStore)

	require.NoError(t, presence.SetVisible(ctx, alice, true))

	// The offline write was lost (crash); only the heartbeat age tells.
	_, err := testDB.GetConn().Exec(
		"UPDATE user_presence SET last_seen = ? WHERE user_id = ?",
		time.Now().UTC().Add(-3*time.Minute), alice,
	)
	require.NoError(t, err)

	isOnline, err := presence.IsOnline(ctx, alice)
	require.NoError(t, err)
	assert.False(t, isOnline)
}

func TestPresenceBeacon(t *testing.T) {
	clearTestData()
	ctx := context.Background()

	alice := createTestUser(t, "beacon_alice")
	presence := NewPresence(testStore)

	require.NoError(t, presence.SetVisible(ctx, alice, true))
	presence.Beacon(alice)

	ok := waitFor(t, 2*time.Second, func() bool {
		online, _ := storedPresence(t, alice)
		return !online
	})
	assert.True(t, ok, "beacon write never landed")
}
