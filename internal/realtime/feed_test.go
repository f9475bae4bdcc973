package realtime

import (
	"testing"
)

func TestSubscribeReceivesMatchingEvents(t *testing.T) {
	feed := NewFeed()
	sub := feed.Subscribe("messages", "conv-1")
	defer sub.Close()

	feed.Publish(Event{Table: "messages", Type: EventInsert, ConversationID: "conv-1", Row: "a"})

	select {
	case ev := <-sub.Events():
		if ev.Type != EventInsert {
			t.Errorf("Expected INSERT event, got %s", ev.Type)
		}
		if ev.Row != "a" {
			t.Errorf("Expected row 'a', got %v", ev.Row)
		}
	default:
		t.Fatal("Subscriber did not receive matching event")
	}
}

func TestSubscribeFiltersOtherConversations(t *testing.T) {
	feed := NewFeed()
	sub := feed.Subscribe("messages", "conv-1")
	defer sub.Close()

	feed.Publish(Event{Table: "messages", Type: EventInsert, ConversationID: "conv-2"})
	feed.Publish(Event{Table: "typing_status", Type: EventUpdate, ConversationID: "conv-1"})

	select {
	case ev := <-sub.Events():
		t.Errorf("Expected no events, received %s on %s", ev.Type, ev.Table)
	default:
	}
}

func TestSubscribeEmptyTableMatchesEverything(t *testing.T) {
	feed := NewFeed()
	sub := feed.Subscribe("", "")
	defer sub.Close()

	feed.Publish(Event{Table: "messages", Type: EventInsert, ConversationID: "conv-1"})
	feed.Publish(Event{Table: "user_presence", Type: EventUpdate})

	received := 0
	for {
		select {
		case <-sub.Events():
			received++
			continue
		default:
		}
		break
	}

	if received != 2 {
		t.Errorf("Expected 2 events, got %d", received)
	}
}

func TestPublishDropsWhenSubscriberIsFull(t *testing.T) {
	feed := NewFeed()
	sub := feed.Subscribe("messages", "")
	defer sub.Close()

	// One more than the channel buffer; the overflow must not block.
	for i := 0; i < 65; i++ {
		feed.Publish(Event{Table: "messages", Type: EventInsert, ConversationID: "conv-1"})
	}

	received := 0
	for {
		select {
		case <-sub.Events():
			received++
			continue
		default:
		}
		break
	}

	if received != 64 {
		t.Errorf("Expected 64 buffered events, got %d", received)
	}
}

func TestCloseRemovesSubscriber(t *testing.T) {
	feed := NewFeed()
	sub := feed.Subscribe("messages", "")
	sub.Close()
	sub.Close() // closing twice must not panic

	// Publishing after close must not panic either.
	feed.Publish(Event{Table: "messages", Type: EventInsert})

	if _, ok := <-sub.Events(); ok {
		t.Error("Expected closed events channel")
	}
}
