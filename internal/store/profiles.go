package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gapchat/internal/models"
	"gapchat/pkg/apperr"
)

const profileColumns = `p.id, p.user_id, p.username, p.display_name, p.avatar_url, p.bio,
	COALESCE(up.is_online, 0), COALESCE(up.last_seen, p.created_at), p.created_at, p.updated_at`

const profileJoin = `FROM profiles p LEFT JOIN user_presence up ON up.user_id = p.user_id`

func scanProfile(row interface{ Scan(...any) error }) (models.Profile, error) {
	var p models.Profile
	var displayName, avatarURL, bio sql.NullString

	err := row.Scan(&p.ID, &p.UserID, &p.Username, &displayName, &avatarURL, &bio,
		&p.IsOnline, &p.LastSeen, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}

	if displayName.Valid {
		p.DisplayName = &displayName.String
	}
	if avatarURL.Valid {
		p.AvatarURL = &avatarURL.String
	}
	if bio.Valid {
		p.Bio = &bio.String
	}
	return p, nil
}

func (s *Store) GetProfileByUserID(ctx context.Context, userID string) (models.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` `+profileJoin+` WHERE p.user_id = ?`, userID)

	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return p, apperr.NotFound("user not found")
	}
	if err != nil {
		return p, fmt.Errorf("failed to query profile: %w", err)
	}
	return p, nil
}

func (s *Store) GetProfileByUsername(ctx context.Context, username string) (models.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` `+profileJoin+` WHERE p.username = ?`, username)

	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return p, apperr.NotFound("user not found")
	}
	if err != nil {
		return p, fmt.Errorf("failed to query profile: %w", err)
	}
	return p, nil
}

// ListProfiles returns every profile except the requester's, optionally
// filtered by a username/display-name search term.
func (s *Store) ListProfiles(ctx context.Context, excludeUserID, search string) ([]models.Profile, error) {
	var rows *sql.Rows
	var err error

	if search != "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+profileColumns+` `+profileJoin+`
			 WHERE p.user_id != ? AND (p.username LIKE ? OR p.display_name LIKE ?)
			 ORDER BY p.username LIMIT 20`,
			excludeUserID, "%"+search+"%", "%"+search+"%")
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+profileColumns+` `+profileJoin+`
			 WHERE p.user_id != ? ORDER BY p.username LIMIT 20`, excludeUserID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	profiles := []models.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// ProfileUpdate carries the mutable profile fields. Nil means leave as is.
type ProfileUpdate struct {
	DisplayName *string
	Bio         *string
}

// UpdateProfile mutates the owning user's profile only.
func (s *Store) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (models.Profile, error) {
	now := time.Now().UTC()

	if upd.DisplayName != nil {
		if _, err := s.db.ExecContext(ctx,
			"UPDATE profiles SET display_name = ?, updated_at = ? WHERE user_id = ?",
			*upd.DisplayName, now, userID,
		); err != nil {
			return models.Profile{}, fmt.Errorf("failed to update profile: %w", err)
		}
	}
	if upd.Bio != nil {
		if _, err := s.db.ExecContext(ctx,
			"UPDATE profiles SET bio = ?, updated_at = ? WHERE user_id = ?",
			*upd.Bio, now, userID,
		); err != nil {
			return models.Profile{}, fmt.Errorf("failed to update profile: %w", err)
		}
	}

	return s.GetProfileByUserID(ctx, userID)
}

func (s *Store) UpdateAvatar(ctx context.Context, userID, avatarURL string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE profiles SET avatar_url = ?, updated_at = ? WHERE user_id = ?",
		avatarURL, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update avatar: %w", err)
	}
	return nil
}
