package entities

import (
	"time"
)

// MessageRole represents the role of a message in a conversation
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// IsValid reports whether the role is one of the known roles
func (r MessageRole) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// Message represents a single message in a conversation
type Message struct {
	Text      string      `json:"text"`
	Role      MessageRole `json:"role"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage creates a new message stamped with the current time
func NewMessage(role MessageRole, text string) *Message {
	return &Message{
		Text:      text,
		Role:      role,
		Timestamp: time.Now(),
	}
}

// IsSystem returns true for local annotations that are never sent to a provider
func (m *Message) IsSystem() bool {
	return m.Role == RoleSystem
}
