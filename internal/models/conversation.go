package models

import "time"

// Role tags who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ChatTurn is the minimal view of a message handed to a completion provider.
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Turns maps stored messages to provider turns, preserving order.
func Turns(msgs []Message) []ChatTurn {
	turns := make([]ChatTurn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, ChatTurn{Role: m.Role, Content: m.Content})
	}
	return turns
}
