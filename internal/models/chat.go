package models

import "time"

type Sender string

const (
	SenderUser  Sender = "user"
	SenderAdmin Sender = "admin"
)

// Counterpart returns the other side of the conversation.
func (s Sender) Counterpart() Sender {
	if s == SenderAdmin {
		return SenderUser
	}
	return SenderAdmin
}

// ChatMessage is one entry in a user's support mailbox
type ChatMessage struct {
	Id        string    `json:"id"`
	UserId    string    `json:"userId"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
	UserName  string    `json:"userName,omitempty"`
	UserEmail string    `json:"userEmail,omitempty"`
}

// Conversation summarizes one mailbox for the admin inbox
type Conversation struct {
	UserId        string    `json:"userId"`
	UserName      string    `json:"userName"`
	UserEmail     string    `json:"userEmail"`
	LastMessage   string    `json:"lastMessage"`
	LastTimestamp time.Time `json:"lastTimestamp"`
	UnreadCount   int       `json:"unreadCount"`
}
