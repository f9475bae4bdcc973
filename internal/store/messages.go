package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gapchat/internal/models"
	"gapchat/internal/realtime"
	"gapchat/pkg/apperr"
)

// EditWindow is how long after creation the sender may still edit a text
// message.
const EditWindow = 10 * time.Minute

// NewMessage is the payload for CreateMessage. Exactly one of Content or
// FileURL must be set depending on the message type.
type NewMessage struct {
	ConversationID string
	SenderID       string
	Content        string
	MessageType    models.MessageType
	FileURL        string
	FileName       string
	FileSize       int64
}

const messageColumns = `id, conversation_id, sender_id, content, message_type,
	file_url, file_name, file_size, is_read, read_at, delivered_at, created_at, updated_at`

func scanMessage(row interface{ Scan(...any) error }) (models.Message, error) {
	var m models.Message
	var content, fileURL, fileName sql.NullString
	var fileSize sql.NullInt64
	var readAt, deliveredAt sql.NullTime

	err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &content, &m.MessageType,
		&fileURL, &fileName, &fileSize, &m.IsRead, &readAt, &deliveredAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return m, err
	}

	if content.Valid {
		m.Content = &content.String
	}
	if fileURL.Valid {
		m.FileURL = &fileURL.String
	}
	if fileName.Valid {
		m.FileName = &fileName.String
	}
	if fileSize.Valid {
		m.FileSize = &fileSize.Int64
	}
	if readAt.Valid {
		t := readAt.Time
		m.ReadAt = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		m.DeliveredAt = &t
	}
	return m, nil
}

// ListMessages returns every message in the conversation ordered by creation
// time ascending.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *Store) GetMessage(ctx context.Context, id string) (models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+` FROM messages WHERE id = ?
	`, id)

	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return m, apperr.NotFound("message not found")
	}
	if err != nil {
		return m, fmt.Errorf("failed to query message: %w", err)
	}
	return m, nil
}

// CreateMessage inserts a message and publishes the INSERT change event.
// Callers do not get the message merged into any cache directly; the cached
// sequence picks it up from the echoed event.
func (s *Store) CreateMessage(ctx context.Context, nm NewMessage) (models.Message, error) {
	if !nm.MessageType.Valid() {
		return models.Message{}, apperr.InvalidArgument("invalid message type")
	}
	if nm.MessageType == models.MessageTypeText && nm.Content == "" {
		return models.Message{}, apperr.InvalidArgument("text message requires content")
	}
	if nm.MessageType != models.MessageTypeText && nm.FileURL == "" {
		return models.Message{}, apperr.InvalidArgument("file message requires an uploaded file")
	}

	ok, err := s.IsParticipant(ctx, nm.ConversationID, nm.SenderID)
	if err != nil {
		return models.Message{}, err
	}
	if !ok {
		return models.Message{}, apperr.PermissionDenied("not a participant")
	}

	m := models.Message{
		ID:             uuid.NewString(),
		ConversationID: nm.ConversationID,
		SenderID:       nm.SenderID,
		MessageType:    nm.MessageType,
		CreatedAt:      time.Now().UTC(),
	}
	m.UpdatedAt = m.CreatedAt
	if nm.Content != "" {
		m.Content = &nm.Content
	}
	if nm.FileURL != "" {
		m.FileURL = &nm.FileURL
	}
	if nm.FileName != "" {
		m.FileName = &nm.FileName
	}
	if nm.FileSize > 0 {
		m.FileSize = &nm.FileSize
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, message_type,
			file_url, file_name, file_size, is_read, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`, m.ID, m.ConversationID, m.SenderID, m.Content, m.MessageType,
		m.FileURL, m.FileName, m.FileSize, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to insert message: %w", err)
	}

	s.publish(realtime.Event{
		Table:          TableMessages,
		Type:           realtime.EventInsert,
		ConversationID: m.ConversationID,
		Row:            m,
	})

	return m, nil
}

// MarkConversationRead flags every unread message in the conversation that
// was not sent by userID. Each updated row is published as an UPDATE event
// so subscribed caches replace their copy in place.
func (s *Store) MarkConversationRead(ctx context.Context, conversationID, userID string) (int, error) {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET is_read = 1, read_at = ?, updated_at = ?
		WHERE conversation_id = ? AND sender_id != ? AND is_read = 0
	`, now, now, conversationID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages as read: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return 0, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = ? AND read_at = ?
	`, conversationID, now)
	if err != nil {
		return int(affected), nil
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			continue
		}
		s.publish(realtime.Event{
			Table:          TableMessages,
			Type:           realtime.EventUpdate,
			ConversationID: conversationID,
			Row:            m,
		})
	}

	return int(affected), nil
}

// EditMessage updates the content of a text message. Only the original
// sender may edit, and only within EditWindow of creation. The edited state
// is never stored; it is derived from updated_at moving past created_at.
func (s *Store) EditMessage(ctx context.Context, messageID, userID, content string) (models.Message, error) {
	m, err := s.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}

	if m.SenderID != userID {
		return models.Message{}, apperr.PermissionDenied("can only edit own messages")
	}
	if m.MessageType != models.MessageTypeText {
		return models.Message{}, apperr.PermissionDenied("only text messages can be edited")
	}
	if time.Since(m.CreatedAt) > EditWindow {
		return models.Message{}, apperr.PermissionDenied("edit window has expired")
	}
	if content == "" {
		return models.Message{}, apperr.InvalidArgument("text message requires content")
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		UPDATE messages SET content = ?, updated_at = ? WHERE id = ?
	`, content, now, messageID)
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to update message: %w", err)
	}

	m.Content = &content
	m.UpdatedAt = now

	s.publish(realtime.Event{
		Table:          TableMessages,
		Type:           realtime.EventUpdate,
		ConversationID: m.ConversationID,
		Row:            m,
	})

	return m, nil
}

// UnreadCount counts messages in the conversation addressed to userID that
// have not been read yet.
func (s *Store) UnreadCount(ctx context.Context, conversationID, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE conversation_id = ? AND sender_id != ? AND is_read = 0
	`, conversationID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}

// LastMessage returns the most recent message of the conversation, or nil
// when there is none.
func (s *Store) LastMessage(ctx context.Context, conversationID string) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, conversationID)

	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last message: %w", err)
	}
	return &m, nil
}
