package entities

import (
	"time"
	"unicode/utf8"
)

const (
	// DefaultTitle is the title every new conversation starts with
	DefaultTitle = "New Chat"

	// autoTitleRunes is the length of a derived title before the ellipsis
	autoTitleRunes = 30
)

// Conversation represents a chat conversation with its full message history
type Conversation struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	TitleLocked bool      `json:"title_locked,omitempty"`
	Messages    []Message `json:"messages"`
	Timestamp   time.Time `json:"timestamp"`
	LastEdited  time.Time `json:"last_edited"`
}

// NewConversation creates an empty conversation with a fresh id
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:         NextID(now),
		Title:      DefaultTitle,
		Messages:   make([]Message, 0),
		Timestamp:  now,
		LastEdited: now,
	}
}

// AddMessage appends a message, bumps LastEdited and derives the title when eligible
func (c *Conversation) AddMessage(msg Message) {
	c.Messages = append(c.Messages, msg)
	c.LastEdited = msg.Timestamp
	if c.LastEdited.IsZero() {
		c.LastEdited = time.Now()
	}
	c.deriveTitle()
}

// Rename sets an explicit title and disables auto-derivation for good.
// It reports whether anything changed.
func (c *Conversation) Rename(title string) bool {
	if title == "" || title == c.Title {
		return false
	}
	c.Title = title
	c.TitleLocked = true
	return true
}

// deriveTitle runs only at the moment the second message lands
func (c *Conversation) deriveTitle() {
	if len(c.Messages) != 2 || c.TitleLocked || c.Title != DefaultTitle {
		return
	}
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			c.Title = TruncateTitle(m.Text)
			return
		}
	}
}

// TruncateTitle shortens text to the derived-title length, appending "..." when cut
func TruncateTitle(text string) string {
	if utf8.RuneCountInString(text) <= autoTitleRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:autoTitleRunes]) + "..."
}

// MessageCount returns the number of messages in the conversation
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// Clone returns a deep copy that shares no message storage with c
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Messages = make([]Message, len(c.Messages))
	copy(cp.Messages, c.Messages)
	return &cp
}
