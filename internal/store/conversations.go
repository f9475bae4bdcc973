package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"gapchat/internal/models"
	"gapchat/internal/realtime"
	"gapchat/pkg/apperr"
)

func (s *Store) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id = ? AND user_id = ?)
	`, conversationID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query participants: %w", err)
	}
	return exists, nil
}

// Participants returns the user ids of the conversation members.
func (s *Store) Participants(ctx context.Context, conversationID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM conversation_participants WHERE conversation_id = ?
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// StartConversation returns the existing pairwise conversation between the
// two users if one exists (first match wins), otherwise it creates a fresh
// conversation with both participant rows in a single transaction. The
// boolean result reports whether a new conversation was created.
func (s *Store) StartConversation(ctx context.Context, userID, otherUserID string) (models.Conversation, bool, error) {
	if userID == otherUserID {
		return models.Conversation{}, false, apperr.InvalidArgument("cannot start conversation with yourself")
	}

	var otherExists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)", otherUserID,
	).Scan(&otherExists)
	if err != nil {
		return models.Conversation{}, false, fmt.Errorf("failed to query user: %w", err)
	}
	if !otherExists {
		return models.Conversation{}, false, apperr.NotFound("participant not found")
	}

	var conv models.Conversation
	err = s.db.QueryRowContext(ctx, `
		SELECT c.id, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants a ON a.conversation_id = c.id AND a.user_id = ?
		JOIN conversation_participants b ON b.conversation_id = c.id AND b.user_id = ?
		ORDER BY c.created_at ASC
		LIMIT 1
	`, userID, otherUserID).Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
	if err == nil {
		return conv, false, nil
	}
	if err != sql.ErrNoRows {
		return models.Conversation{}, false, fmt.Errorf("failed to query conversations: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Conversation{}, false, fmt.Errorf("failed to create conversation: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	conv = models.Conversation{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO conversations (id, created_at, updated_at) VALUES (?, ?, ?)",
		conv.ID, conv.CreatedAt, conv.UpdatedAt,
	); err != nil {
		return models.Conversation{}, false, fmt.Errorf("failed to create conversation: %w", err)
	}

	for _, uid := range []string{userID, otherUserID} {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO conversation_participants (conversation_id, user_id, joined_at) VALUES (?, ?, ?)",
			conv.ID, uid, now,
		); err != nil {
			return models.Conversation{}, false, fmt.Errorf("failed to create conversation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Conversation{}, false, fmt.Errorf("failed to create conversation: %w", err)
	}

	s.publish(realtime.Event{
		Table:          TableConversation,
		Type:           realtime.EventInsert,
		ConversationID: conv.ID,
		Row:            conv,
	})

	return conv, true, nil
}

// ListConversations produces the conversation list view for userID: every
// conversation they participate in, annotated with the other participant's
// profile, the last message and the unread count. The view is recomputed on
// every call and sorted by last-message recency; conversations without any
// message sort last.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]models.ConversationWithDetails, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_id FROM conversation_participants WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}

	var conversationIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversationIDs = append(conversationIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	conversations := []models.ConversationWithDetails{}
	for _, convID := range conversationIDs {
		var otherUserID string
		err := s.db.QueryRowContext(ctx, `
			SELECT user_id FROM conversation_participants
			WHERE conversation_id = ? AND user_id != ?
			LIMIT 1
		`, convID, userID).Scan(&otherUserID)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query participants: %w", err)
		}

		profile, err := s.GetProfileByUserID(ctx, otherUserID)
		if err != nil {
			// Orphaned participant rows should not break the whole list.
			continue
		}

		lastMessage, err := s.LastMessage(ctx, convID)
		if err != nil {
			return nil, err
		}

		unread, err := s.UnreadCount(ctx, convID, userID)
		if err != nil {
			return nil, err
		}

		conversations = append(conversations, models.ConversationWithDetails{
			ID:          convID,
			Participant: profile,
			LastMessage: lastMessage,
			UnreadCount: unread,
		})
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		a, b := conversations[i].LastMessage, conversations[j].LastMessage
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})

	return conversations, nil
}

// GetConversation fetches a single conversation row.
func (s *Store) GetConversation(ctx context.Context, id string) (models.Conversation, error) {
	var conv models.Conversation
	err := s.db.QueryRowContext(ctx,
		"SELECT id, created_at, updated_at FROM conversations WHERE id = ?", id,
	).Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return conv, apperr.NotFound("conversation not found")
	}
	if err != nil {
		return conv, fmt.Errorf("failed to query conversation: %w", err)
	}
	return conv, nil
}
