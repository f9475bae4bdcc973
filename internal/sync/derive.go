// Package sync is the reconciliation layer between the store, the realtime
// change feed and the caches. Realtime push and periodic polling are two
// independent, redundant update paths; every write they race on is an
// idempotent upsert keyed by a natural unique key, so the last write wins
// and no coordination is needed beyond that.
package sync

import (
	"time"

	"gapchat/internal/models"
	"gapchat/internal/store"
)

const (
	// EditedThreshold separates a real edit from the insert itself: the
	// edited state is derived, not stored.
	EditedThreshold = time.Second

	// TypingStaleAfter guards against a peer's flag being stuck true after
	// a missed stop event (tab closed without cleanup).
	TypingStaleAfter = 5 * time.Second

	// TypingIdleTimeout auto-clears the own typing flag when no further
	// keystroke arrives.
	TypingIdleTimeout = 3 * time.Second

	// PresenceStaleAfter bounds how long a stored online flag is trusted
	// without a fresh heartbeat.
	PresenceStaleAfter = 2 * time.Minute

	// HeartbeatInterval is how often an active session refreshes last_seen.
	HeartbeatInterval = 30 * time.Second
)

// IsEditable reports whether userID may still edit m at instant now: only
// the original sender, only text messages, only within the edit window.
func IsEditable(m models.Message, userID string, now time.Time) bool {
	if m.SenderID != userID {
		return false
	}
	if m.MessageType != models.MessageTypeText {
		return false
	}
	return now.Sub(m.CreatedAt) <= store.EditWindow
}

// IsEdited reports whether m was changed after creation.
func IsEdited(m models.Message) bool {
	return m.UpdatedAt.Sub(m.CreatedAt) > EditedThreshold
}

// IsTypingActive reports whether a typing row should still count as typing
// at instant now.
func IsTypingActive(t models.TypingStatus, now time.Time) bool {
	if !t.IsTyping {
		return false
	}
	return now.Sub(t.UpdatedAt) < TypingStaleAfter
}

// IsUserOnline applies the liveness rule: a user is online only if the
// stored flag is set AND the last heartbeat is recent. This reconciles the
// case where an offline write was never delivered (crash, network loss).
func IsUserOnline(p models.UserPresence, now time.Time) bool {
	if !p.IsOnline {
		return false
	}
	return now.Sub(p.LastSeen) < PresenceStaleAfter
}

// OverlayLiveness rewrites the is_online flag of profiles with the liveness
// rule so stale heartbeats never surface as online.
func OverlayLiveness(profiles []models.Profile, now time.Time) {
	for i := range profiles {
		p := &profiles[i]
		p.IsOnline = p.IsOnline && now.Sub(p.LastSeen) < PresenceStaleAfter
	}
}
