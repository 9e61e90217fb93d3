package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"
)

func scanMessage(row rowScanner) (*models.ChatMessage, error) {
	var m models.ChatMessage
	var sender string
	if err := row.Scan(&m.Id, &m.UserId, &sender, &m.Text, &m.Timestamp, &m.Read, &m.UserName, &m.UserEmail); err != nil {
		return nil, err
	}
	m.Sender = models.Sender(sender)
	return &m, nil
}

func (s *Service) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	_, err := s.db.ExecContext(ctx, queryInsertMessage,
		msg.Id, msg.UserId, string(msg.Sender), msg.Text, msg.Timestamp.UTC(), msg.Read, msg.UserName, msg.UserEmail)
	if err != nil {
		return insertError("chat message", msg.UserId, err)
	}
	return nil
}

func (s *Service) ListMessages(ctx context.Context, userId string) ([]models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, queryListMessages, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer closeRows(rows)

	var out []models.ChatMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// ListConversations summarizes every mailbox, most recently active first.
func (s *Service) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, queryListAllMessages)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer closeRows(rows)

	byUser := map[string]*models.Conversation{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		c, ok := byUser[m.UserId]
		if !ok {
			c = &models.Conversation{UserId: m.UserId}
			byUser[m.UserId] = c
		}
		c.UserName, c.UserEmail = m.UserName, m.UserEmail
		c.LastMessage, c.LastTimestamp = m.Text, m.Timestamp
		if m.Sender == models.SenderUser && !m.Read {
			c.UnreadCount++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return store.SortConversations(byUser), nil
}

// MarkRead flips the read flag on messages written by the reader's counterpart.
func (s *Service) MarkRead(ctx context.Context, userId string, reader models.Sender) (int, error) {
	res, err := s.db.ExecContext(ctx, queryMarkRead, userId, string(reader.Counterpart()))
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return int(n), nil
}

// CountUnread counts unread messages from sender; an empty userId counts across all mailboxes.
func (s *Service) CountUnread(ctx context.Context, userId string, sender models.Sender) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, queryCountUnread, userId, userId, string(sender)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return n, nil
}

func (s *Service) SaveSession(ctx context.Context, sess *models.Session) error {
	_, err := s.db.ExecContext(ctx, queryInsertSession, sess.Id, sess.UserId, string(sess.Role), sess.IssuedAt.UTC(), sess.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *Service) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var sess models.Session
	var role string
	err := s.db.QueryRowContext(ctx, queryGetSession, id).Scan(&sess.Id, &sess.UserId, &role, &sess.IssuedAt, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	sess.Role = models.Role(role)
	return &sess, nil
}

func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, queryDeleteSession, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
