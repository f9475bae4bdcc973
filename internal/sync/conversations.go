package sync

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"gapchat/internal/cache/port"
	"gapchat/internal/models"
	"gapchat/internal/realtime"
	"gapchat/internal/store"
)

// conversationsTTL bounds how stale a cached conversation list may get when
// an invalidation event is lost; it mirrors the short-interval poll of the
// list view.
const conversationsTTL = 5 * time.Second

// Conversations serves the per-user conversation list through the request
// cache. The list is recomputed per fetch on a miss and invalidated by
// message and conversation change events; the TTL is the polling backstop.
type Conversations struct {
	store *store.Store
	cache port.Cache
}

func NewConversations(st *store.Store, cache port.Cache) *Conversations {
	return &Conversations{store: st, cache: cache}
}

func conversationsKey(userID string) string {
	return "conversations:" + userID
}

// List returns the aggregated conversation list for userID, cache-aside.
func (c *Conversations) List(ctx context.Context, userID string) ([]models.ConversationWithDetails, error) {
	key := conversationsKey(userID)

	if data, err := c.cache.Get(ctx, key); err == nil {
		var cached []models.ConversationWithDetails
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
	} else if !errors.Is(err, port.ErrMiss) {
		log.Printf("conversation cache read failed for user %s: %v", userID, err)
	}

	conversations, err := c.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(conversations); err == nil {
		if err := c.cache.Set(ctx, key, data, conversationsTTL); err != nil {
			log.Printf("conversation cache write failed for user %s: %v", userID, err)
		}
	}

	return conversations, nil
}

// Invalidate drops the cached list of the given users.
func (c *Conversations) Invalidate(ctx context.Context, userIDs ...string) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, conversationsKey(id))
	}
	if err := c.cache.Del(ctx, keys...); err != nil {
		log.Printf("conversation cache invalidation failed: %v", err)
	}
}

// Run consumes message and conversation change events and invalidates the
// cached lists of the affected participants until ctx is done. Lost events
// are tolerated: the TTL refetch catches up.
func (c *Conversations) Run(ctx context.Context) {
	messages := c.store.Feed().Subscribe(store.TableMessages, "")
	conversations := c.store.Feed().Subscribe(store.TableConversation, "")
	defer messages.Close()
	defer conversations.Close()

	for {
		select {
		case ev, ok := <-messages.Events():
			if !ok {
				return
			}
			c.invalidateParticipants(ctx, ev)
		case ev, ok := <-conversations.Events():
			if !ok {
				return
			}
			c.invalidateParticipants(ctx, ev)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Conversations) invalidateParticipants(ctx context.Context, ev realtime.Event) {
	if ev.ConversationID == "" {
		return
	}
	participants, err := c.store.Participants(ctx, ev.ConversationID)
	if err != nil {
		log.Printf("failed to resolve participants of conversation %s: %v", ev.ConversationID, err)
		return
	}
	c.Invalidate(ctx, participants...)
}
