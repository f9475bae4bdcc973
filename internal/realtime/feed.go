package realtime

import (
	"sync"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Event is a row-level change notification. ConversationID is empty for
// tables that are not scoped to a conversation (user_presence).
type Event struct {
	Table          string      `json:"table"`
	Type           EventType   `json:"event"`
	ConversationID string      `json:"conversation_id,omitempty"`
	Row            interface{} `json:"row"`
}

// Feed is the in-process change feed. Store writes publish events here;
// the websocket hub and the sync layer subscribe with a table name and an
// optional conversation filter.
type Feed struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*Subscription
}

type Subscription struct {
	id             int
	table          string
	conversationID string
	ch             chan Event
	feed           *Feed
	closeOnce      sync.Once
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[int]*Subscription)}
}

// Subscribe registers interest in changes to table. An empty table matches
// every table; an empty conversationID matches every conversation.
func (f *Feed) Subscribe(table, conversationID string) *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	sub := &Subscription{
		id:             f.nextID,
		table:          table,
		conversationID: conversationID,
		ch:             make(chan Event, 64),
		feed:           f,
	}
	f.subs[sub.id] = sub
	return sub
}

// Publish delivers ev to every matching subscriber. Delivery is
// non-blocking: a subscriber that cannot keep up loses events, which is
// acceptable because every consumer also refreshes by polling.
func (f *Feed) Publish(ev Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, sub := range f.subs {
		if sub.table != "" && sub.table != ev.Table {
			continue
		}
		if sub.conversationID != "" && sub.conversationID != ev.ConversationID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s.id)
		s.feed.mu.Unlock()
		close(s.ch)
	})
}
