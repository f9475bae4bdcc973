package store

import (
	"context"
	"fmt"
	"time"

	"gapchat/internal/models"
	"gapchat/internal/realtime"
)

// UpsertPresence writes the online flag and refreshes last_seen, keyed on
// user_id. Every call is a whole-row overwrite, never an increment.
func (s *Store) UpsertPresence(ctx context.Context, userID string, isOnline bool) error {
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_presence (user_id, is_online, last_seen)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id)
		DO UPDATE SET is_online = excluded.is_online, last_seen = excluded.last_seen
	`, userID, isOnline, now)
	if err != nil {
		return fmt.Errorf("failed to update presence: %w", err)
	}

	s.publish(realtime.Event{
		Table: TablePresence,
		Type:  realtime.EventUpdate,
		Row: models.UserPresence{
			UserID:   userID,
			IsOnline: isOnline,
			LastSeen: now,
		},
	})

	return nil
}

// ListPresence returns the stored presence snapshot for all known users.
// A stored online flag alone does not make a user online; readers apply
// the last_seen liveness rule on top, see sync.IsUserOnline.
func (s *Store) ListPresence(ctx context.Context) ([]models.UserPresence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, is_online, last_seen FROM user_presence
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query presence: %w", err)
	}
	defer rows.Close()

	presences := []models.UserPresence{}
	for rows.Next() {
		var p models.UserPresence
		if err := rows.Scan(&p.UserID, &p.IsOnline, &p.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan presence: %w", err)
		}
		presences = append(presences, p)
	}
	return presences, rows.Err()
}
