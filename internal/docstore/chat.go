package docstore

import (
	"context"
	"fmt"

	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"
)

func (s *Service) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	return s.mutate(func(doc *document) error {
		if err := doc.requireUser(msg.UserId); err != nil {
			return err
		}
		doc.ChatMessages = append(doc.ChatMessages, *msg)
		return nil
	})
}

func (s *Service) ListMessages(ctx context.Context, userId string) ([]models.ChatMessage, error) {
	var out []models.ChatMessage
	err := s.view(func(doc *document) error {
		for _, m := range doc.ChatMessages {
			if m.UserId == userId {
				out = append(out, m)
			}
		}
		return nil
	})
	return out, err
}

func (s *Service) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	byUser := map[string]*models.Conversation{}
	err := s.view(func(doc *document) error {
		for _, m := range doc.ChatMessages {
			c, ok := byUser[m.UserId]
			if !ok {
				c = &models.Conversation{UserId: m.UserId}
				if i := doc.userIndex(m.UserId); i >= 0 {
					c.UserName, c.UserEmail = doc.Users[i].FullName, doc.Users[i].Email
				}
				byUser[m.UserId] = c
			}
			if c.UserEmail == "" {
				c.UserName, c.UserEmail = m.UserName, m.UserEmail
			}
			c.LastMessage, c.LastTimestamp = m.Text, m.Timestamp
			if m.Sender == models.SenderUser && !m.Read {
				c.UnreadCount++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store.SortConversations(byUser), nil
}

func (s *Service) MarkRead(ctx context.Context, userId string, reader models.Sender) (int, error) {
	from := reader.Counterpart()
	n := 0
	err := s.mutate(func(doc *document) error {
		for i := range doc.ChatMessages {
			m := &doc.ChatMessages[i]
			if m.UserId == userId && m.Sender == from && !m.Read {
				m.Read = true
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *Service) CountUnread(ctx context.Context, userId string, sender models.Sender) (int, error) {
	n := 0
	err := s.view(func(doc *document) error {
		for _, m := range doc.ChatMessages {
			if (userId == "" || m.UserId == userId) && m.Sender == sender && !m.Read {
				n++
			}
		}
		return nil
	})
	return n, err
}

// Sessions live in their own file so clearing the document does not log everyone out.

func (s *Service) SaveSession(ctx context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]models.Session, len(s.sessions)+1)
	for k, v := range s.sessions {
		next[k] = v
	}
	next[sess.Id] = *sess
	if err := writeJSON(s.sessionPath, next); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	s.sessions = next
	return nil
}

func (s *Service) GetSession(ctx context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sess, nil
}

func (s *Service) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return nil
	}
	next := make(map[string]models.Session, len(s.sessions))
	for k, v := range s.sessions {
		if k != id {
			next[k] = v
		}
	}
	if err := writeJSON(s.sessionPath, next); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.sessions = next
	return nil
}
