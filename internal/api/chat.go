package api

import (
	"context"
	"strings"

	"brokerdesk-go/internal/chat"
	"brokerdesk-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// mailbox resolves which mailbox the principal may touch. Users only reach their own.
func mailbox(p models.Principal, userId string) (string, models.Sender, error) {
	if err := requireUser(p); err != nil {
		return "", "", err
	}
	if !p.IsAdmin() {
		if userId != "" && userId != p.UserId {
			return "", "", &Error{Code: CodeForbidden, Message: "You can only access your own conversation"}
		}
		return p.UserId, models.SenderUser, nil
	}
	if userId == "" {
		return "", "", &Error{Code: CodeValidation, Message: "User id is required"}
	}
	return userId, models.SenderAdmin, nil
}

// SendMessage appends to a mailbox and pushes the message to subscribers.
func (s *BrokerService) SendMessage(ctx context.Context, p models.Principal, userId, text string) (*Result[models.ChatMessage], error) {
	box, sender, err := mailbox(p, userId)
	if err != nil {
		return reject[models.ChatMessage](err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fail[models.ChatMessage](CodeValidation, "Message cannot be empty", nil)
	}
	owner, err := s.store.GetUserById(ctx, box)
	if err != nil {
		return failWith[models.ChatMessage](err, "User not found", "Failed to send message")
	}

	msg := &models.ChatMessage{
		Id:        uuid.New().String(),
		UserId:    box,
		Sender:    sender,
		Text:      text,
		Timestamp: s.now().UTC(),
		UserName:  owner.FullName,
		UserEmail: owner.Email,
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return failWith[models.ChatMessage](err, "User not found", "Failed to send message")
	}

	if s.metrics != nil {
		s.metrics.ChatMessages.WithLabelValues(string(sender)).Inc()
	}
	if s.hub != nil {
		s.hub.Publish(chat.Event{Type: chat.EventMessage, UserId: box, Message: msg})
	}
	zap.L().Debug("Chat message sent",
		zap.String("user_id", box),
		zap.String("sender", string(sender)))
	return ok("Message sent", msg)
}

// Messages returns one mailbox in chronological order.
func (s *BrokerService) Messages(ctx context.Context, p models.Principal, userId string) ([]models.ChatMessage, error) {
	box, _, err := mailbox(p, userId)
	if err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, box)
}

// Conversations lists every mailbox for the admin inbox, latest activity first.
func (s *BrokerService) Conversations(ctx context.Context, p models.Principal) ([]models.Conversation, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	return s.store.ListConversations(ctx)
}

// MarkAsRead flips the counterpart's unread messages in the mailbox.
func (s *BrokerService) MarkAsRead(ctx context.Context, p models.Principal, userId string) (int, error) {
	box, reader, err := mailbox(p, userId)
	if err != nil {
		return 0, err
	}
	n, err := s.store.MarkRead(ctx, box, reader)
	if err != nil {
		return 0, err
	}
	if n > 0 && s.hub != nil {
		s.hub.Publish(chat.Event{Type: chat.EventRead, UserId: box, Reader: reader, Count: n})
	}
	return n, nil
}

// UnreadCount is the admin's unread user messages across mailboxes, or a user's unread
// support replies.
func (s *BrokerService) UnreadCount(ctx context.Context, p models.Principal) (int, error) {
	if err := requireUser(p); err != nil {
		return 0, err
	}
	if p.IsAdmin() {
		return s.store.CountUnread(ctx, "", models.SenderUser)
	}
	return s.store.CountUnread(ctx, p.UserId, models.SenderAdmin)
}

// Subscribe opens a push subscription scoped to what the principal may read.
func (s *BrokerService) Subscribe(p models.Principal) (*chat.Subscription, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	if s.hub == nil {
		return nil, &Error{Code: CodeInternal, Message: "Chat push is not available"}
	}
	if p.IsAdmin() {
		return s.hub.Subscribe(""), nil
	}
	return s.hub.Subscribe(p.UserId), nil
}
