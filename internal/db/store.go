// Package db holds the conversation store: the only component allowed to
// mutate conversations and messages.
//
// Lookups that find nothing return a nil pointer and a nil error; absence is a
// normal result, not a failure.
package db

import (
	"time"

	"github.com/RichardoC/threadchat/internal/models"
)

type Store interface {
	CreateConversation(title string) (*models.Conversation, error)
	GetConversation(id string) (*models.Conversation, error)
	// ListConversations returns every conversation, most recently updated first.
	ListConversations() ([]models.Conversation, error)
	UpdateConversationTitle(id, title string) (*models.Conversation, error)
	// DeleteConversation removes the conversation and all of its messages.
	DeleteConversation(id string) (bool, error)
	// CreateMessage bumps the owning conversation's UpdatedAt when it exists.
	// It does not reject an unknown conversation id.
	CreateMessage(conversationID string, role models.Role, content string) (*models.Message, error)
	// ListMessages returns a conversation's messages oldest first, ties in
	// insertion order.
	ListMessages(conversationID string) ([]models.Message, error)
	Close() error
}

type options struct {
	now func() time.Time
}

type Option func(*options)

// WithClock overrides the time source used for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
