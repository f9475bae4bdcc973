// Package store exposes the relational backend capabilities consumed by the
// handlers and the sync layer: filtered reads, conflict-keyed upserts and
// row-level change events published to the realtime feed.
package store

import (
	"database/sql"

	"gapchat/internal/realtime"
)

const (
	TableMessages     = "messages"
	TableTyping       = "typing_status"
	TablePresence     = "user_presence"
	TableConversation = "conversations"
)

type Store struct {
	db   *sql.DB
	feed *realtime.Feed
}

func New(db *sql.DB, feed *realtime.Feed) *Store {
	return &Store{db: db, feed: feed}
}

func (s *Store) Feed() *realtime.Feed {
	return s.feed
}

func (s *Store) publish(ev realtime.Event) {
	if s.feed != nil {
		s.feed.Publish(ev)
	}
}
