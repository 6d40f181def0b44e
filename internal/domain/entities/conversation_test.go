package entities

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextID_Monotonic(t *testing.T) {
	now := time.Now()
	first := NextID(now)
	second := NextID(now)
	third := NextID(now.Add(-time.Hour))

	assert.Greater(t, second, first)
	assert.Greater(t, third, second)
}

func TestObserveID(t *testing.T) {
	future := time.Now().Add(24 * time.Hour).UnixMilli()
	ObserveID(future)

	assert.Greater(t, NextID(time.Now()), future)
}

func TestConversation_TitleDerivation(t *testing.T) {
	tests := []struct {
		name     string
		first    Message
		second   Message
		expected string
	}{
		{
			name:     "short_user_text",
			first:    Message{Role: RoleUser, Text: "Hello"},
			second:   Message{Role: RoleAssistant, Text: "Hi"},
			expected: "Hello",
		},
		{
			name:     "long_user_text_truncated",
			first:    Message{Role: RoleUser, Text: strings.Repeat("a", 45)},
			second:   Message{Role: RoleAssistant, Text: "ok"},
			expected: strings.Repeat("a", 30) + "...",
		},
		{
			name:     "system_first_then_user",
			first:    Message{Role: RoleSystem, Text: "New chat started"},
			second:   Message{Role: RoleUser, Text: "What is Go?"},
			expected: "What is Go?",
		},
		{
			name:     "no_user_message",
			first:    Message{Role: RoleSystem, Text: "New chat started"},
			second:   Message{Role: RoleSystem, Text: "Model switched to GPT-4"},
			expected: DefaultTitle,
		},
		{
			name:     "multibyte_runes",
			first:    Message{Role: RoleUser, Text: strings.Repeat("é", 31)},
			second:   Message{Role: RoleAssistant, Text: "ok"},
			expected: strings.Repeat("é", 30) + "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConversation()
			c.AddMessage(tt.first)
			assert.Equal(t, DefaultTitle, c.Title)
			c.AddMessage(tt.second)
			assert.Equal(t, tt.expected, c.Title)
		})
	}
}

func TestConversation_TitleDerivedOnlyOnce(t *testing.T) {
	c := NewConversation()
	c.AddMessage(Message{Role: RoleUser, Text: "first question"})
	c.AddMessage(Message{Role: RoleAssistant, Text: "answer"})
	require.Equal(t, "first question", c.Title)

	c.AddMessage(Message{Role: RoleUser, Text: "second question"})
	c.AddMessage(Message{Role: RoleAssistant, Text: "answer"})
	assert.Equal(t, "first question", c.Title)
}

func TestConversation_RenameLocksTitle(t *testing.T) {
	c := NewConversation()
	c.AddMessage(Message{Role: RoleUser, Text: "hello"})

	assert.True(t, c.Rename("Custom"))
	assert.True(t, c.TitleLocked)

	c.AddMessage(Message{Role: RoleAssistant, Text: "hi"})
	assert.Equal(t, "Custom", c.Title)

	assert.False(t, c.Rename(""))
	assert.False(t, c.Rename("Custom"))
}

func TestConversation_RenameToDefaultStillLocks(t *testing.T) {
	c := NewConversation()
	c.Title = "Something"
	require.True(t, c.Rename(DefaultTitle))

	c.AddMessage(Message{Role: RoleUser, Text: "hello"})
	c.AddMessage(Message{Role: RoleAssistant, Text: "hi"})
	assert.Equal(t, DefaultTitle, c.Title)
}

func TestConversation_Clone(t *testing.T) {
	c := NewConversation()
	c.AddMessage(Message{Role: RoleUser, Text: "hello", Timestamp: time.Now()})

	cp := c.Clone()
	cp.Messages[0].Text = "changed"
	cp.AddMessage(Message{Role: RoleAssistant, Text: "x"})

	assert.Equal(t, "hello", c.Messages[0].Text)
	assert.Equal(t, 1, c.MessageCount())
}

func TestNewExportRecord(t *testing.T) {
	c := NewConversation()
	c.Title = "Trip plans"

	rec := NewExportRecord(c, "# Trip plans")
	assert.Equal(t, c.ID, rec.ID)
	assert.Equal(t, "Trip plans", rec.Title)
	assert.True(t, strings.HasPrefix(rec.Filename, "chat-"))
	assert.True(t, strings.HasSuffix(rec.Filename, ".md"))
}
