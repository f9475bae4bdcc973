package sync

import (
	"context"
	stdsync "sync"
	"time"

	"gapchat/internal/models"
	"gapchat/internal/store"
)

type typingKey struct {
	conversationID string
	userID         string
}

// Typing tracks composition state per conversation. A keystroke upserts the
// own flag true and arms an idle timer that flips it back to false when no
// further keystroke arrives; an explicit stop cancels the timer. Remote
// state is read through ActiveTypers, which discards stale rows.
type Typing struct {
	store       *store.Store
	idleTimeout time.Duration

	mu     stdsync.Mutex
	timers map[typingKey]*time.Timer
}

func NewTyping(st *store.Store) *Typing {
	return &Typing{
		store:       st,
		idleTimeout: TypingIdleTimeout,
		timers:      make(map[typingKey]*time.Timer),
	}
}

// Start records that userID is typing in the conversation and (re)arms the
// idle timer.
func (t *Typing) Start(ctx context.Context, conversationID, userID string) error {
	if err := t.store.UpsertTyping(ctx, conversationID, userID, true); err != nil {
		return err
	}

	key := typingKey{conversationID, userID}

	t.mu.Lock()
	if timer, ok := t.timers[key]; ok {
		timer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(t.idleTimeout, func() {
		t.mu.Lock()
		// A fired timer may have been replaced by a newer keystroke while
		// its callback waited on the lock; only the current timer clears.
		if t.timers[key] != timer {
			t.mu.Unlock()
			return
		}
		delete(t.timers, key)
		t.mu.Unlock()
		// Idle expiry runs off any request context.
		_ = t.store.UpsertTyping(context.Background(), conversationID, userID, false)
	})
	t.timers[key] = timer
	t.mu.Unlock()

	return nil
}

// Stop cancels the idle timer and clears the flag immediately (blur, send).
func (t *Typing) Stop(ctx context.Context, conversationID, userID string) error {
	t.cancel(conversationID, userID)
	return t.store.UpsertTyping(ctx, conversationID, userID, false)
}

// Leave is the best-effort cleanup when a user leaves the conversation;
// a failed write is acceptable because readers discard stale rows anyway.
func (t *Typing) Leave(conversationID, userID string) {
	t.cancel(conversationID, userID)
	_ = t.store.UpsertTyping(context.Background(), conversationID, userID, false)
}

func (t *Typing) cancel(conversationID, userID string) {
	key := typingKey{conversationID, userID}

	t.mu.Lock()
	if timer, ok := t.timers[key]; ok {
		timer.Stop()
		delete(t.timers, key)
	}
	t.mu.Unlock()
}

// ActiveTypers returns the other participants currently typing, excluding
// rows older than the staleness window.
func (t *Typing) ActiveTypers(ctx context.Context, conversationID, selfID string) ([]models.TypingStatus, error) {
	statuses, err := t.store.ListTyping(ctx, conversationID, selfID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	active := statuses[:0]
	for _, status := range statuses {
		if IsTypingActive(status, now) {
			active = append(active, status)
		}
	}
	return active, nil
}

// AnyoneTyping reports whether any other participant is actively typing.
func (t *Typing) AnyoneTyping(ctx context.Context, conversationID, selfID string) (bool, error) {
	active, err := t.ActiveTypers(ctx, conversationID, selfID)
	if err != nil {
		return false, err
	}
	return len(active) > 0, nil
}
