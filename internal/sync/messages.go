package sync

import (
	"context"
	stdsync "sync"
	"time"

	"gapchat/internal/models"
	"gapchat/internal/realtime"
	"gapchat/internal/store"
)

const (
	// feedIdleAfter is how long a conversation feed survives without a
	// reader before the sweep closes it and its subscription.
	feedIdleAfter     = 2 * time.Minute
	feedSweepInterval = 30 * time.Second
)

// Messages hands out the live per-conversation feeds that back message
// reads. The first fetch of a conversation opens its feed; later fetches
// return the merged sequence the feed has been keeping current. Feeds
// nobody reads go idle and are closed by Run's sweep.
type Messages struct {
	store     *store.Store
	idleAfter time.Duration

	mu    stdsync.Mutex
	feeds map[string]*feedEntry
}

type feedEntry struct {
	feed     *MessageFeed
	lastRead time.Time
}

func NewMessages(st *store.Store) *Messages {
	return &Messages{
		store:     st,
		idleAfter: feedIdleAfter,
		feeds:     make(map[string]*feedEntry),
	}
}

// History returns the conversation's message sequence, ordered by creation
// time, served from its live feed.
func (m *Messages) History(ctx context.Context, conversationID string) ([]models.Message, error) {
	now := time.Now()

	m.mu.Lock()
	if entry, ok := m.feeds[conversationID]; ok {
		entry.lastRead = now
		feed := entry.feed
		m.mu.Unlock()
		return feed.Messages(), nil
	}
	m.mu.Unlock()

	opened, err := NewMessageFeed(ctx, m.store, conversationID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if entry, ok := m.feeds[conversationID]; ok {
		// A concurrent reader opened the feed first; keep theirs.
		entry.lastRead = now
		feed := entry.feed
		m.mu.Unlock()
		opened.Close()
		return feed.Messages(), nil
	}
	m.feeds[conversationID] = &feedEntry{feed: opened, lastRead: now}
	m.mu.Unlock()

	return opened.Messages(), nil
}

// Run sweeps idle feeds until ctx is done, then closes the rest.
func (m *Messages) Run(ctx context.Context) {
	ticker := time.NewTicker(feedSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep(time.Now())
		case <-ctx.Done():
			m.closeAll()
			return
		}
	}
}

func (m *Messages) sweep(now time.Time) {
	var closing []*MessageFeed

	m.mu.Lock()
	for id, entry := range m.feeds {
		if now.Sub(entry.lastRead) > m.idleAfter {
			closing = append(closing, entry.feed)
			delete(m.feeds, id)
		}
	}
	m.mu.Unlock()

	for _, feed := range closing {
		feed.Close()
	}
}

func (m *Messages) closeAll() {
	m.mu.Lock()
	feeds := make([]*MessageFeed, 0, len(m.feeds))
	for _, entry := range m.feeds {
		feeds = append(feeds, entry.feed)
	}
	m.feeds = make(map[string]*feedEntry)
	m.mu.Unlock()

	for _, feed := range feeds {
		feed.Close()
	}
}

func (m *Messages) feedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.feeds)
}

// MessageFeed keeps the ordered-by-creation-time message sequence of one
// conversation current through two channels: an initial bulk fetch and the
// live change subscription. INSERT events append (deduplicated by id),
// UPDATE events replace the matching entry in place, preserving order.
//
// Sending a message never writes this cache directly; the sequence only
// picks the message up from the echoed INSERT event. If the feed is down a
// sent message stays invisible until the next Refresh.
type MessageFeed struct {
	store          *store.Store
	conversationID string

	mu       stdsync.Mutex
	messages []models.Message

	sub  *realtime.Subscription
	done chan struct{}
}

// NewMessageFeed bulk-fetches the conversation history, subscribes to its
// change events and starts merging them until Close is called.
func NewMessageFeed(ctx context.Context, st *store.Store, conversationID string) (*MessageFeed, error) {
	messages, err := st.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	f := &MessageFeed{
		store:          st,
		conversationID: conversationID,
		messages:       messages,
		sub:            st.Feed().Subscribe(store.TableMessages, conversationID),
		done:           make(chan struct{}),
	}

	go f.run()
	return f, nil
}

func (f *MessageFeed) run() {
	for {
		select {
		case ev, ok := <-f.sub.Events():
			if !ok {
				return
			}
			f.merge(ev)
		case <-f.done:
			return
		}
	}
}

func (f *MessageFeed) merge(ev realtime.Event) {
	m, ok := ev.Row.(models.Message)
	if !ok {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch ev.Type {
	case realtime.EventInsert:
		for _, existing := range f.messages {
			if existing.ID == m.ID {
				return
			}
		}
		f.messages = append(f.messages, m)
	case realtime.EventUpdate:
		for i := range f.messages {
			if f.messages[i].ID == m.ID {
				f.messages[i] = m
				return
			}
		}
	}
}

// Messages returns a copy of the current cached sequence.
func (f *MessageFeed) Messages() []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]models.Message, len(f.messages))
	copy(out, f.messages)
	return out
}

// Refresh replaces the cached sequence with a full refetch. This is the
// recovery path for events lost while the subscription was down.
func (f *MessageFeed) Refresh(ctx context.Context) error {
	messages, err := f.store.ListMessages(ctx, f.conversationID)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.messages = messages
	f.mu.Unlock()
	return nil
}

func (f *MessageFeed) Close() {
	select {
	case <-f.done:
	default:
		close(f.done)
	}
	f.sub.Close()
}
