package chat

import "time"

// Role labels one side of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one role-labeled unit of conversational content after
// extraction. Turns are derived from stored records on demand and never
// persisted themselves.
type ConversationTurn struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}
