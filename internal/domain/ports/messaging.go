package ports

import (
	"context"
	"time"
)

// EventPublisher receives change notifications from the conversation store.
// Delivery is best effort.
type EventPublisher interface {
	PublishJSON(ctx context.Context, subject string, obj interface{}) error
}

// Subjects for change events
const (
	SubjectConversationUpdated = "conversation.%d.updated" // conversation_id
	SubjectConversationDeleted = "conversation.%d.deleted" // conversation_id
	SubjectModelsUpdated       = "models.updated"
)

// Event types carried in ChangeEvent.Type
const (
	EventConversationUpdated = "conversation.updated"
	EventConversationDeleted = "conversation.deleted"
	EventModelsUpdated       = "models.updated"
)

// ChangeEvent is the payload published for every state change
type ChangeEvent struct {
	Type           string    `json:"type"`
	ConversationID int64     `json:"conversation_id,omitempty"`
	Title          string    `json:"title,omitempty"`
	MessageCount   int       `json:"message_count"`
	Timestamp      time.Time `json:"timestamp"`
}

// MultiPublisher fans an event out to several publishers and returns the first error
type MultiPublisher []EventPublisher

// PublishJSON implements EventPublisher
func (m MultiPublisher) PublishJSON(ctx context.Context, subject string, obj interface{}) error {
	var first error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.PublishJSON(ctx, subject, obj); err != nil && first == nil {
			first = err
		}
	}
	return first
}
