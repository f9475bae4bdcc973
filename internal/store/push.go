package store

import (
	"context"
	"fmt"
	"time"
)

// PushSubscription is a stored Web Push endpoint for a user.
type PushSubscription struct {
	UserID    string `json:"user_id"`
	Endpoint  string `json:"endpoint"`
	KeyP256dh string `json:"p256dh"`
	KeyAuth   string `json:"auth"`
}

// SavePushSubscription upserts a browser push subscription keyed by endpoint.
func (s *Store) SavePushSubscription(ctx context.Context, sub PushSubscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(endpoint)
		DO UPDATE SET user_id = excluded.user_id, p256dh = excluded.p256dh,
			auth = excluded.auth, revoked_at = NULL
	`, sub.UserID, sub.Endpoint, sub.KeyP256dh, sub.KeyAuth, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save push subscription: %w", err)
	}
	return nil
}

// ActivePushSubscriptions lists the non-revoked subscriptions of a user.
func (s *Store) ActivePushSubscriptions(ctx context.Context, userID string) ([]PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, endpoint, p256dh, auth FROM push_subscriptions
		WHERE user_id = ? AND revoked_at IS NULL
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []PushSubscription
	for rows.Next() {
		var sub PushSubscription
		if err := rows.Scan(&sub.UserID, &sub.Endpoint, &sub.KeyP256dh, &sub.KeyAuth); err != nil {
			continue
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// DeletePushSubscription removes an expired or unsubscribed endpoint.
func (s *Store) DeletePushSubscription(ctx context.Context, endpoint string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM push_subscriptions WHERE endpoint = ?", endpoint)
	if err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	return nil
}
