package store

import (
	"context"
	"fmt"
	"time"

	"gapchat/internal/models"
	"gapchat/internal/realtime"
)

// UpsertTyping writes the per-conversation typing flag for userID, keyed on
// (conversation_id, user_id). Concurrent writers converge on the last write.
func (s *Store) UpsertTyping(ctx context.Context, conversationID, userID string, isTyping bool) error {
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO typing_status (conversation_id, user_id, is_typing, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_id, user_id)
		DO UPDATE SET is_typing = excluded.is_typing, updated_at = excluded.updated_at
	`, conversationID, userID, isTyping, now)
	if err != nil {
		return fmt.Errorf("failed to update typing status: %w", err)
	}

	s.publish(realtime.Event{
		Table:          TableTyping,
		Type:           realtime.EventUpdate,
		ConversationID: conversationID,
		Row: models.TypingStatus{
			ConversationID: conversationID,
			UserID:         userID,
			IsTyping:       isTyping,
			UpdatedAt:      now,
		},
	})

	return nil
}

// ListTyping returns the stored typing rows of the other participants with
// the flag still set. Staleness filtering is the reader's concern, see
// sync.ActiveTypers.
func (s *Store) ListTyping(ctx context.Context, conversationID, excludeUserID string) ([]models.TypingStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_id, user_id, is_typing, updated_at
		FROM typing_status
		WHERE conversation_id = ? AND user_id != ? AND is_typing = 1
	`, conversationID, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to query typing status: %w", err)
	}
	defer rows.Close()

	statuses := []models.TypingStatus{}
	for rows.Next() {
		var t models.TypingStatus
		if err := rows.Scan(&t.ConversationID, &t.UserID, &t.IsTyping, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan typing status: %w", err)
		}
		statuses = append(statuses, t)
	}
	return statuses, rows.Err()
}
